package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	msgSlotBooked   = "This time slot has already been booked. Please choose another time."
	msgSlotReserved = "This time slot is currently being held by another patient. Please choose another time."
)

// ConflictResolver checks a slot against storage and records a reservation
// when it is free. The storage uniqueness rule is the real arbiter; the reads
// here only produce a clearer message before the write.
type ConflictResolver struct {
	repo   Repository
	ttl    time.Duration
	retry  RetryPolicy
	loc    *time.Location
	logger zerolog.Logger
	now    func() time.Time
}

func NewConflictResolver(repo Repository, ttl time.Duration, retry RetryPolicy, loc *time.Location, logger zerolog.Logger) *ConflictResolver {
	if loc == nil {
		loc = time.UTC
	}
	return &ConflictResolver{
		repo:   repo,
		ttl:    ttl,
		retry:  retry,
		loc:    loc,
		logger: logger,
		now:    time.Now,
	}
}

// CheckAndReserve holds slotTime for requesterID. A live reservation the
// requester already owns is renewed instead of rejected.
func (c *ConflictResolver) CheckAndReserve(ctx context.Context, providerID uuid.UUID, slotTime time.Time, requesterID uuid.UUID) (*Reservation, error) {
	const op = "booking.CheckAndReserve"

	_, err := retry(ctx, c.retry, func(ctx context.Context) (*Appointment, error) {
		return c.repo.FindSlotAppointment(ctx, providerID, slotTime)
	})
	switch {
	case err == nil:
		return nil, newError(KindConflict, op, msgSlotBooked, ErrSlotConflict)
	case !errors.Is(err, ErrAppointmentNotFound):
		return nil, wrapStorage(op, err)
	}

	now := c.now()
	held, err := retry(ctx, c.retry, func(ctx context.Context) (*Reservation, error) {
		return c.repo.FindActiveReservation(ctx, providerID, slotTime, now)
	})
	switch {
	case err == nil && held.PatientID == requesterID:
		return c.renew(ctx, op, held)
	case err == nil:
		return nil, newError(KindConflict, op, msgSlotReserved, ErrSlotConflict)
	case !errors.Is(err, ErrReservationNotFound):
		return nil, wrapStorage(op, err)
	}

	res := Reservation{
		ID:         uuid.New(),
		SlotID:     FormatSlotID(providerID, slotTime.In(c.loc)),
		ProviderID: providerID,
		PatientID:  requesterID,
		SlotTime:   slotTime,
		ExpiresAt:  now.Add(c.ttl),
		Status:     ReservationReserved,
	}

	created, err := retry(ctx, c.retry, func(ctx context.Context) (*Reservation, error) {
		return c.repo.InsertReservation(ctx, res, now)
	})
	if err == nil {
		return created, nil
	}
	if !errors.Is(err, ErrSlotConflict) {
		return nil, wrapStorage(op, err)
	}

	// A retried insert can collide with its own earlier attempt.
	if mine, ferr := c.repo.FindActiveReservation(ctx, providerID, slotTime, now); ferr == nil && mine.PatientID == requesterID {
		return mine, nil
	}
	return nil, newError(KindConflict, op, msgSlotReserved, ErrSlotConflict)
}

func (c *ConflictResolver) renew(ctx context.Context, op string, held *Reservation) (*Reservation, error) {
	expiresAt := c.now().Add(c.ttl)
	renewed, err := retry(ctx, c.retry, func(ctx context.Context) (*Reservation, error) {
		return c.repo.ExtendReservation(ctx, held.ID, expiresAt)
	})
	if err != nil {
		return nil, wrapStorage(op, err)
	}
	c.logger.Debug().
		Str("reservation_id", renewed.ID.String()).
		Time("expires_at", renewed.ExpiresAt).
		Msg("reservation renewed")
	return renewed, nil
}
