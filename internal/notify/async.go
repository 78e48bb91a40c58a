package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/dental-booking/internal/booking"
)

var (
	ErrQueueFull   = errors.New("notify: queue full")
	ErrQueueClosed = errors.New("notify: queue closed")
)

type job struct {
	kind booking.NotificationKind
	appt booking.Appointment
}

// Async hands notifications to a background worker so booking calls never
// wait on email or queue latency. Delivery is best effort: a full buffer
// drops the job and failures are only logged.
type Async struct {
	next    booking.Notifier
	jobs    chan job
	timeout time.Duration
	logger  zerolog.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewAsync(next booking.Notifier, buffer int, timeout time.Duration, logger zerolog.Logger) *Async {
	if buffer <= 0 {
		buffer = 64
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	a := &Async{
		next:    next,
		jobs:    make(chan job, buffer),
		timeout: timeout,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) Notify(_ context.Context, kind booking.NotificationKind, appt booking.Appointment) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrQueueClosed
	}
	select {
	case a.jobs <- job{kind: kind, appt: appt}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (a *Async) run() {
	defer close(a.done)
	for j := range a.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		if err := a.next.Notify(ctx, j.kind, j.appt); err != nil {
			a.logger.Warn().Err(err).
				Str("appointment_id", j.appt.ID.String()).
				Str("kind", string(j.kind)).
				Msg("notification delivery failed")
		}
		cancel()
	}
}

// Close stops accepting work and waits for queued jobs until ctx is done.
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.jobs)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ booking.Notifier = (*Async)(nil)
