package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hackgods/dental-booking/internal/booking"
	"github.com/hackgods/dental-booking/internal/config"
	"github.com/hackgods/dental-booking/internal/db"
	"github.com/hackgods/dental-booking/internal/logging"
	"github.com/hackgods/dental-booking/internal/metrics"
	"github.com/hackgods/dental-booking/internal/slotlock"
)

func main() {
	cfg, err := config.Load()
	logger := logging.New("expiry-worker", cfg.Env, cfg.LogLevel)
	if err != nil {
		logger.Fatal().Err(err).Msg("config load error")
	}
	if cfg.StoreBackend == "memory" {
		logger.Fatal().Msg("expiry worker needs the postgres store")
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 2})
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()

	bcfg := booking.DefaultConfig()
	bcfg.Location = cfg.Location()
	svc := booking.NewService(booking.NewPgRepository(pgPool), slotlock.NewMemory(cfg.LockTTL), bcfg,
		booking.WithLogger(logger),
		booking.WithMetrics(metrics.NewBookingMetrics(nil)),
	)

	if cfg.WorkerAddr != "" {
		r := chi.NewRouter()
		r.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: cfg.WorkerAddr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics listener stopped")
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	w := &worker{sweeper: svc, interval: cfg.WorkerInterval, timeout: 20 * time.Second, logger: logger}
	logger.Info().Dur("interval", cfg.WorkerInterval).Str("metrics_addr", cfg.WorkerAddr).Msg("expiry-worker started")
	w.run(rootCtx)
	logger.Info().Msg("expiry-worker stopped")
}
