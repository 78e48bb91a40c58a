package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hackgods/dental-booking/internal/auth"
	"github.com/hackgods/dental-booking/internal/metrics"
	"github.com/hackgods/dental-booking/internal/slotlock"
	"github.com/hackgods/dental-booking/internal/validation"
)

var tracer = otel.Tracer("dental.internal.booking")

type NotificationKind string

const (
	NotifyBookingConfirmed NotificationKind = "booking_confirmed"
	NotifyBookingCancelled NotificationKind = "booking_cancelled"
)

// Notifier delivers patient/clinic notifications. Failures never reach callers.
type Notifier interface {
	Notify(ctx context.Context, kind NotificationKind, appt Appointment) error
}

// ObjectStore uploads a blob and returns its public URL.
type ObjectStore interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

type Config struct {
	ReservationTTL   time.Duration
	SlotQueryTimeout time.Duration
	Retry            RetryPolicy
	Location         *time.Location
	MaxFiles         int
}

func DefaultConfig() Config {
	return Config{
		ReservationTTL:   5 * time.Minute,
		SlotQueryTimeout: 15 * time.Second,
		Retry:            DefaultRetryPolicy(),
		Location:         time.UTC,
		MaxFiles:         validation.DefaultMaxFiles,
	}
}

type Option func(*Service)

func WithLogger(l zerolog.Logger) Option { return func(s *Service) { s.logger = l } }
func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }
func WithObjectStore(o ObjectStore) Option { return func(s *Service) { s.store = o } }
func WithMetrics(m *metrics.BookingMetrics) Option { return func(s *Service) { s.metrics = m } }
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

type Service struct {
	repo     Repository
	locker   slotlock.Locker
	resolver *ConflictResolver
	notifier Notifier
	store    ObjectStore
	metrics  *metrics.BookingMetrics
	logger   zerolog.Logger
	cfg      Config
	now      func() time.Time
}

func NewService(repo Repository, locker slotlock.Locker, cfg Config, opts ...Option) *Service {
	def := DefaultConfig()
	if cfg.ReservationTTL <= 0 {
		cfg.ReservationTTL = def.ReservationTTL
	}
	if cfg.SlotQueryTimeout <= 0 {
		cfg.SlotQueryTimeout = def.SlotQueryTimeout
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = def.Retry
	}
	if cfg.Location == nil {
		cfg.Location = def.Location
	}
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = def.MaxFiles
	}

	s := &Service{
		repo:   repo,
		locker: locker,
		logger: zerolog.Nop(),
		cfg:    cfg,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.resolver = NewConflictResolver(repo, cfg.ReservationTTL, cfg.Retry, cfg.Location, s.logger)
	s.resolver.now = s.now
	return s
}

// Location is the clinic time zone used for slot ids and availability.
func (s *Service) Location() *time.Location { return s.cfg.Location }

func currentUser(ctx context.Context, op string) (auth.User, error) {
	u, ok := auth.UserFromContext(ctx)
	if !ok {
		return auth.User{}, newError(KindUnauthenticated, op, "Please sign in to continue.", ErrUnauthenticated)
	}
	return u, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(KindOf(err)))
	}
	span.End()
}

func (s *Service) ListProviders(ctx context.Context) ([]Provider, error) {
	providers, err := retry(ctx, s.cfg.Retry, s.repo.ListProviders)
	if err != nil {
		return nil, wrapStorage("booking.ListProviders", err)
	}
	return providers, nil
}

// GetAvailableSlots derives the provider's slots for date. The whole fetch,
// retries included, is bounded by the slot query timeout.
func (s *Service) GetAvailableSlots(ctx context.Context, providerID uuid.UUID, date time.Time) (slots []TimeSlot, err error) {
	const op = "booking.GetAvailableSlots"
	ctx, span := tracer.Start(ctx, op)
	defer func() { endSpan(span, err) }()

	day := startOfDay(date.In(s.cfg.Location))
	span.SetAttributes(
		attribute.String("booking.provider_id", providerID.String()),
		attribute.String("booking.date", day.Format(dateLayout)),
	)

	start := time.Now()
	slots, err = withTimeout(ctx, s.cfg.SlotQueryTimeout, func(ctx context.Context) ([]TimeSlot, error) {
		return s.fetchSlots(ctx, providerID, day)
	})
	status := "ok"
	if err != nil {
		status = string(KindOf(err))
	}
	s.metrics.ObserveSlotQuery(status, time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, ErrTimeout) {
			return nil, newError(KindTimeout, op, "", err)
		}
		return nil, wrapStorage(op, err)
	}
	return slots, nil
}

func (s *Service) fetchSlots(ctx context.Context, providerID uuid.UUID, day time.Time) ([]TimeSlot, error) {
	next := day.AddDate(0, 0, 1)
	now := s.now()

	windows, err := retry(ctx, s.cfg.Retry, func(ctx context.Context) ([]ProviderAvailability, error) {
		return s.repo.ListAvailability(ctx, providerID, int(day.Weekday()))
	})
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return []TimeSlot{}, nil
	}

	appts, err := retry(ctx, s.cfg.Retry, func(ctx context.Context) ([]Appointment, error) {
		return s.repo.ListAppointmentsBetween(ctx, providerID, day, next)
	})
	if err != nil {
		return nil, err
	}

	reservations, err := retry(ctx, s.cfg.Retry, func(ctx context.Context) ([]Reservation, error) {
		return s.repo.ListActiveReservations(ctx, providerID, day, next, now)
	})
	if err != nil {
		return nil, err
	}

	return buildSlots(providerID, day, windows, appts, reservations, now)
}

// ReserveTimeSlot holds slotID for the caller for the reservation TTL.
func (s *Service) ReserveTimeSlot(ctx context.Context, slotID string) (res *Reservation, err error) {
	const op = "booking.ReserveTimeSlot"
	ctx, span := tracer.Start(ctx, op, trace.WithAttributes(attribute.String("booking.slot_id", slotID)))
	defer func() {
		s.metrics.ObserveReservation(outcome(err, "reserved"))
		endSpan(span, err)
	}()

	user, err := currentUser(ctx, op)
	if err != nil {
		return nil, err
	}

	providerID, startsAt, err := ParseSlotID(slotID, s.cfg.Location)
	if err != nil {
		return nil, newError(KindValidation, op, "The selected time slot is not valid.", err)
	}
	if v := validation.ValidateTimeSlot(startsAt, s.now()); !v.IsValid {
		return nil, newError(KindValidation, op, v.Message(), ErrValidation)
	}

	owner := user.ID.String()
	acquired, err := s.locker.Acquire(ctx, slotID, owner)
	if err != nil {
		return nil, newError(KindUnavailable, op, msgTryAgain, err)
	}
	if !acquired {
		return nil, newError(KindConflict, op,
			"This time slot is being booked by someone else right now. Please try again or choose another time.", ErrLockBusy)
	}
	defer func() {
		if rerr := s.locker.Release(context.WithoutCancel(ctx), slotID, owner); rerr != nil {
			s.logger.Warn().Err(rerr).Str("slot_id", slotID).Msg("release slot lock")
		}
	}()

	res, err = s.resolver.CheckAndReserve(ctx, providerID, startsAt, user.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("reservation_id", res.ID.String()).
		Str("slot_id", slotID).
		Str("patient_id", user.ID.String()).
		Time("expires_at", res.ExpiresAt).
		Msg("slot reserved")
	return res, nil
}

// ConfirmReservation turns the caller's live reservation into an upcoming
// appointment. Notification happens after the write and cannot fail it.
func (s *Service) ConfirmReservation(ctx context.Context, reservationID uuid.UUID, d BookingDetails) (appt *Appointment, err error) {
	const op = "booking.ConfirmReservation"
	ctx, span := tracer.Start(ctx, op, trace.WithAttributes(attribute.String("booking.reservation_id", reservationID.String())))
	defer func() {
		s.metrics.ObserveConfirmation(outcome(err, "confirmed"))
		endSpan(span, err)
	}()

	user, err := currentUser(ctx, op)
	if err != nil {
		return nil, err
	}

	res, err := retry(ctx, s.cfg.Retry, func(ctx context.Context) (*Reservation, error) {
		return s.repo.GetReservation(ctx, reservationID)
	})
	if err != nil {
		return nil, wrapStorage(op, err)
	}
	if res.PatientID != user.ID {
		return nil, newError(KindForbidden, op, "This reservation belongs to another patient.", ErrForbidden)
	}

	now := s.now()
	if res.Status == ReservationExpired || (res.Status == ReservationReserved && !res.IsActive(now)) {
		return nil, wrapStorage(op, ErrReservationExpired)
	}

	v := validation.ValidateBookingData(validation.BookingData{
		PatientID:       user.ID.String(),
		DentistID:       res.ProviderID.String(),
		Phone:           d.Phone,
		Symptoms:        d.Symptoms,
		MedicalHistory:  d.MedicalHistory,
		AppointmentTime: res.SlotTime,
		CauseIdentified: d.CauseIdentified,
		UncertaintyNote: d.UncertaintyNote,
	}, now)
	if d.PaymentMethod != PaymentCash && d.PaymentMethod != PaymentCard {
		v.IsValid = false
		v.Errors = append(v.Errors, "Payment method must be cash or card")
	}
	if !v.IsValid {
		return nil, newError(KindValidation, op, v.Message(), ErrValidation)
	}

	ref, err := s.GenerateBookingReference(ctx)
	if err != nil {
		return nil, err
	}

	name := d.PatientName
	if name == "" {
		name = user.Name
	}
	email := d.PatientEmail
	if email == "" {
		email = user.Email
	}

	draft := Appointment{
		ID:               uuid.New(),
		PatientID:        user.ID,
		ProviderID:       res.ProviderID,
		StartsAt:         res.SlotTime,
		Status:           StatusUpcoming,
		PaymentMethod:    d.PaymentMethod,
		PaymentStatus:    PaymentPending,
		BookingReference: ref,
		PatientName:      name,
		PatientEmail:     email,
		PatientPhone:     strings.TrimSpace(d.Phone),
		Gender:           d.Gender,
		IsPregnant:       d.IsPregnant,
		Symptoms:         strings.TrimSpace(d.Symptoms),
		MedicalHistory:   d.MedicalHistory,
		ChronicDiseases:  d.ChronicDiseases,
		CauseIdentified:  d.CauseIdentified,
		UncertaintyNote:  d.UncertaintyNote,
	}

	appt, err = retry(ctx, s.cfg.Retry, func(ctx context.Context) (*Appointment, error) {
		return s.repo.ConfirmReservation(ctx, reservationID, draft, now)
	})
	if err != nil {
		return nil, wrapStorage(op, err)
	}

	s.logger.Info().
		Str("appointment_id", appt.ID.String()).
		Str("booking_reference", appt.BookingReference).
		Str("patient_id", user.ID.String()).
		Msg("appointment confirmed")

	s.notify(ctx, NotifyBookingConfirmed, *appt)
	return appt, nil
}

// CancelAppointment applies the cancellation policy. Policy rejections come
// back as a result with Success false, not as an error.
func (s *Service) CancelAppointment(ctx context.Context, appointmentID uuid.UUID, reason string) (result CancellationResult, err error) {
	const op = "booking.CancelAppointment"
	ctx, span := tracer.Start(ctx, op, trace.WithAttributes(attribute.String("booking.appointment_id", appointmentID.String())))
	defer func() {
		switch {
		case err != nil:
			s.metrics.ObserveCancellation(string(KindOf(err)))
		case result.Success:
			s.metrics.ObserveCancellation("cancelled")
		default:
			s.metrics.ObserveCancellation("rejected")
		}
		endSpan(span, err)
	}()

	user, err := currentUser(ctx, op)
	if err != nil {
		return CancellationResult{}, err
	}

	appt, err := retry(ctx, s.cfg.Retry, func(ctx context.Context) (*Appointment, error) {
		return s.repo.GetAppointment(ctx, appointmentID)
	})
	if err != nil {
		return CancellationResult{}, wrapStorage(op, err)
	}
	if appt.PatientID != user.ID {
		return CancellationResult{}, newError(KindForbidden, op, "You can only cancel your own appointments.", ErrForbidden)
	}
	if appt.Status != StatusUpcoming {
		return CancellationResult{Success: false, Message: "Only upcoming appointments can be cancelled"}, nil
	}

	now := s.now()
	if v := validation.ValidateCancellationTiming(appt.StartsAt, now); !v.IsValid {
		return CancellationResult{Success: false, Message: v.Errors[0]}, nil
	}

	var why *string
	if r := strings.TrimSpace(reason); r != "" {
		why = &r
	}

	cancelled, err := retry(ctx, s.cfg.Retry, func(ctx context.Context) (*Appointment, error) {
		return s.repo.CancelAppointment(ctx, appointmentID, now, why)
	})
	if errors.Is(err, ErrInvalidStatusTransition) {
		// A retried update may already have landed.
		cur, gerr := s.repo.GetAppointment(ctx, appointmentID)
		if gerr == nil && cur.Status == StatusCancelled {
			return CancellationResult{Success: true, CancelledAt: cur.CancelledAt}, nil
		}
		return CancellationResult{Success: false, Message: "Only upcoming appointments can be cancelled"}, nil
	}
	if err != nil {
		return CancellationResult{}, wrapStorage(op, err)
	}

	if _, xerr := s.repo.ExpireSlotReservations(ctx, appt.ProviderID, appt.StartsAt); xerr != nil {
		s.logger.Warn().Err(xerr).Str("appointment_id", appointmentID.String()).Msg("expire reservation after cancel")
	}

	s.logger.Info().
		Str("appointment_id", appointmentID.String()).
		Str("patient_id", user.ID.String()).
		Msg("appointment cancelled")

	s.notify(ctx, NotifyBookingCancelled, *cancelled)
	return CancellationResult{Success: true, CancelledAt: cancelled.CancelledAt}, nil
}

// CompleteAppointment is the dentist back-office transition upcoming → completed.
func (s *Service) CompleteAppointment(ctx context.Context, appointmentID uuid.UUID) (appt *Appointment, err error) {
	const op = "booking.CompleteAppointment"
	ctx, span := tracer.Start(ctx, op, trace.WithAttributes(attribute.String("booking.appointment_id", appointmentID.String())))
	defer func() { endSpan(span, err) }()

	user, err := currentUser(ctx, op)
	if err != nil {
		return nil, err
	}
	if !user.IsStaff() {
		return nil, newError(KindForbidden, op, "Only clinic staff can complete appointments.", ErrForbidden)
	}

	appt, err = retry(ctx, s.cfg.Retry, func(ctx context.Context) (*Appointment, error) {
		return s.repo.UpdateAppointmentStatus(ctx, appointmentID, StatusUpcoming, StatusCompleted)
	})
	if err != nil {
		return nil, wrapStorage(op, err)
	}
	return appt, nil
}

// ListPatientAppointments returns the caller's appointment history, newest first.
func (s *Service) ListPatientAppointments(ctx context.Context) ([]Appointment, error) {
	const op = "booking.ListPatientAppointments"
	user, err := currentUser(ctx, op)
	if err != nil {
		return nil, err
	}
	appts, err := retry(ctx, s.cfg.Retry, func(ctx context.Context) ([]Appointment, error) {
		return s.repo.ListPatientAppointments(ctx, user.ID)
	})
	if err != nil {
		return nil, wrapStorage(op, err)
	}
	return appts, nil
}

// SuggestAlternativeSlots returns free slots on date, or when the day is full,
// up to five from the following week.
func (s *Service) SuggestAlternativeSlots(ctx context.Context, providerID uuid.UUID, date time.Time) ([]TimeSlot, error) {
	const (
		lookahead = 7
		perDay    = 3
		total     = 5
	)

	slots, err := s.GetAvailableSlots(ctx, providerID, date)
	if err != nil {
		return nil, err
	}
	if free := availableOnly(slots); len(free) > 0 {
		return free, nil
	}

	var out []TimeSlot
	for i := 1; i <= lookahead && len(out) < total; i++ {
		day, err := s.GetAvailableSlots(ctx, providerID, date.AddDate(0, 0, i))
		if err != nil {
			return nil, err
		}
		free := availableOnly(day)
		if len(free) > perDay {
			free = free[:perDay]
		}
		out = append(out, free...)
	}
	if len(out) > total {
		out = out[:total]
	}
	return out, nil
}

// SweepExpiredReservations marks lapsed holds expired. Readers already ignore
// them, this only keeps the table tidy.
func (s *Service) SweepExpiredReservations(ctx context.Context) (int64, error) {
	n, err := retry(ctx, s.cfg.Retry, func(ctx context.Context) (int64, error) {
		return s.repo.ExpireStaleReservations(ctx, s.now())
	})
	s.metrics.ObserveSweep(n, err)
	if err != nil {
		return 0, wrapStorage("booking.SweepExpiredReservations", err)
	}
	return n, nil
}

func (s *Service) notify(ctx context.Context, kind NotificationKind, appt Appointment) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(context.WithoutCancel(ctx), kind, appt); err != nil {
		s.logger.Warn().Err(err).
			Str("appointment_id", appt.ID.String()).
			Str("kind", string(kind)).
			Msg("notification failed")
	}
}

func availableOnly(slots []TimeSlot) []TimeSlot {
	var out []TimeSlot
	for _, sl := range slots {
		if sl.IsAvailable {
			out = append(out, sl)
		}
	}
	return out
}

func outcome(err error, success string) string {
	if err == nil {
		return success
	}
	return string(KindOf(err))
}
