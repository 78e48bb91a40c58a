package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/dental-booking/internal/api"
	"github.com/hackgods/dental-booking/internal/booking"
	"github.com/hackgods/dental-booking/internal/chatbot"
	"github.com/hackgods/dental-booking/internal/config"
	"github.com/hackgods/dental-booking/internal/db"
	"github.com/hackgods/dental-booking/internal/logging"
	"github.com/hackgods/dental-booking/internal/metrics"
	"github.com/hackgods/dental-booking/internal/notify"
	redisclient "github.com/hackgods/dental-booking/internal/redis"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	logger := logging.New("api-server", cfg.Env, cfg.LogLevel)
	if err != nil {
		logger.Fatal().Err(err).Msg("config load error")
	}
	logger.Info().
		Str("env", cfg.Env).
		Str("http_port", cfg.HTTPPort).
		Str("store", cfg.StoreBackend).
		Str("locks", cfg.LockBackend).
		Str("sessions", cfg.SessionBackend).
		Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		repo   booking.Repository
		pinger api.Pinger
	)
	if cfg.StoreBackend == "memory" {
		mem := booking.NewMemoryRepository()
		seedDemo(mem)
		repo = mem
		logger.Warn().Msg("using in-memory store with demo dentists; data is lost on restart")
	} else {
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
		cancelPg()
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection error")
		}
		defer pgPool.Close()
		logger.Info().Msg("connected to Postgres")
		repo = booking.NewPgRepository(pgPool)
		pinger = pgPool
	}

	var rdb *redis.Client
	if cfg.NeedsRedis() {
		rdb, err = redisclient.NewRedisClient(rootCtx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
			TLS:      cfg.RedisTLS,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection error")
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing redis")
			}
		}()
		logger.Info().Msg("connected to Redis")
	}

	loader := &awsLoader{cfg: cfg}

	store, err := newObjectStore(rootCtx, cfg, loader, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("object store setup error")
	}
	dispatcher, err := newNotifier(rootCtx, cfg, loader, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("notifier setup error")
	}
	notifier := notify.NewAsync(dispatcher, 256, 10*time.Second, logger)

	svc := booking.NewService(repo, newLocker(cfg, rdb), booking.Config{
		ReservationTTL:   cfg.ReservationTTL,
		SlotQueryTimeout: cfg.SlotQueryTimeout,
		Retry: booking.RetryPolicy{
			MaxAttempts:  cfg.RetryMaxAttempts,
			InitialDelay: cfg.RetryInitialDelay,
			Multiplier:   2,
		},
		Location: cfg.Location(),
	},
		booking.WithLogger(logger),
		booking.WithNotifier(notifier),
		booking.WithObjectStore(store),
		booking.WithMetrics(metrics.NewBookingMetrics(nil)),
	)

	model, closeModel, err := newLanguageModel(rootCtx, cfg, loader, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("language model setup error")
	}
	defer closeModel()

	chatOpts := []chatbot.Option{
		chatbot.WithLogger(logger),
		chatbot.WithMetrics(metrics.NewChatMetrics(nil)),
	}
	if model != nil {
		chatOpts = append(chatOpts,
			chatbot.WithExtractor(chatbot.NewLLMExtractor(model, logger)),
			chatbot.WithAnswerer(model),
		)
		logger.Info().Str("provider", cfg.LLMProvider).Msg("chat assistant uses a language model")
	}
	engine := chatbot.NewEngine(svc, newSessionStore(cfg, rdb), chatOpts...)

	srv := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: api.NewRouter(api.RouterConfig{
			Booking:   svc,
			Chat:      engine,
			PgPool:    pinger,
			Redis:     rdb,
			JWTSecret: cfg.JWTSecret,
			Logger:    logger,
			Env:       cfg.Env,
			Version:   version,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			stop()
		}
	}()

	<-rootCtx.Done()
	logger.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
	drain(shutdownCtx, notifier, logger)
}

func drain(ctx context.Context, n *notify.Async, logger zerolog.Logger) {
	if err := n.Close(ctx); err != nil {
		logger.Warn().Err(err).Msg("pending notifications dropped on shutdown")
	}
}
