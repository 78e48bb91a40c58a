package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository contains all DB interactions needed by the service.
//
// Implementations must enforce at most one reserved row per
// (provider, slot time) and at most one slot-holding appointment per
// (provider, start time), reporting violations as ErrSlotConflict.
type Repository interface {
	ListProviders(ctx context.Context) ([]Provider, error)
	GetProvider(ctx context.Context, id uuid.UUID) (*Provider, error)

	// Slot derivation
	ListAvailability(ctx context.Context, providerID uuid.UUID, dayOfWeek int) ([]ProviderAvailability, error)
	ListAppointmentsBetween(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]Appointment, error)
	ListActiveReservations(ctx context.Context, providerID uuid.UUID, from, to, now time.Time) ([]Reservation, error)

	// Conflict checks
	FindSlotAppointment(ctx context.Context, providerID uuid.UUID, startsAt time.Time) (*Appointment, error)
	FindActiveReservation(ctx context.Context, providerID uuid.UUID, slotTime, now time.Time) (*Reservation, error)

	// Reservations
	InsertReservation(ctx context.Context, r Reservation, now time.Time) (*Reservation, error)
	ExtendReservation(ctx context.Context, id uuid.UUID, expiresAt time.Time) (*Reservation, error)
	GetReservation(ctx context.Context, id uuid.UUID) (*Reservation, error)
	ExpireSlotReservations(ctx context.Context, providerID uuid.UUID, slotTime time.Time) (int64, error)
	ExpireStaleReservations(ctx context.Context, now time.Time) (int64, error)

	// ConfirmReservation consumes a live reservation and inserts appt in one
	// step. Replaying a confirmation returns the appointment already created.
	ConfirmReservation(ctx context.Context, reservationID uuid.UUID, appt Appointment, now time.Time) (*Appointment, error)

	// Appointments
	GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListPatientAppointments(ctx context.Context, patientID uuid.UUID) ([]Appointment, error)
	CancelAppointment(ctx context.Context, id uuid.UUID, cancelledAt time.Time, reason *string) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)
	BookingReferenceExists(ctx context.Context, ref string) (bool, error)

	// Documents
	GetAppointmentDocuments(ctx context.Context, appointmentID uuid.UUID) ([]DocumentReference, error)
	// AppendDocuments adds docs whose ids are not yet attached and returns the full list.
	AppendDocuments(ctx context.Context, appointmentID uuid.UUID, docs []DocumentReference) ([]DocumentReference, error)
}
