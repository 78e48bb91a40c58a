package main

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type countingSweeper struct {
	calls atomic.Int32
	err   error
	stop  func()
	after int32
}

func (c *countingSweeper) SweepExpiredReservations(ctx context.Context) (int64, error) {
	if c.calls.Add(1) >= c.after {
		c.stop()
	}
	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("sweep ran without a deadline")
	}
	return 2, c.err
}

func TestWorkerSweepsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &countingSweeper{stop: cancel, after: 3}
	w := &worker{sweeper: s, interval: time.Millisecond, timeout: time.Second, logger: zerolog.Nop()}

	done := make(chan struct{})
	go func() {
		w.run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
	assert.GreaterOrEqual(t, s.calls.Load(), int32(3))
}

func TestWorkerKeepsGoingAfterFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &countingSweeper{stop: cancel, after: 2, err: errors.New("db down")}
	w := &worker{sweeper: s, interval: time.Millisecond, timeout: time.Second, logger: zerolog.Nop()}

	w.run(ctx)
	assert.GreaterOrEqual(t, s.calls.Load(), int32(2))
}
