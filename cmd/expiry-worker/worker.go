package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

type sweeper interface {
	SweepExpiredReservations(ctx context.Context) (int64, error)
}

// worker marks lapsed reservations expired on a fixed interval. Reads already
// ignore rows past expires_at, so a late or failed sweep only leaves clutter.
type worker struct {
	sweeper  sweeper
	interval time.Duration
	timeout  time.Duration
	logger   zerolog.Logger
}

// run sweeps once immediately and then on every tick until ctx is done.
func (w *worker) run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.sweep(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *worker) sweep(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	start := time.Now()
	n, err := w.sweeper.SweepExpiredReservations(ctx)
	if err != nil {
		w.logger.Error().Err(err).Msg("sweep failed")
		return
	}
	event := w.logger.Debug()
	if n > 0 {
		event = w.logger.Info()
	}
	event.Int64("expired", n).Dur("took", time.Since(start)).Msg("sweep complete")
}
