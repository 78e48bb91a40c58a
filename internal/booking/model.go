package booking

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusUpcoming  AppointmentStatus = "upcoming"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// HoldsSlot reports whether an appointment in this status blocks its slot.
func (s AppointmentStatus) HoldsSlot() bool {
	return s == StatusUpcoming || s == StatusConfirmed
}

type ReservationStatus string

const (
	ReservationReserved ReservationStatus = "reserved"
	ReservationExpired  ReservationStatus = "expired"
	ReservationConsumed ReservationStatus = "consumed"
)

type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentCard PaymentMethod = "card"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

// TimeSlot is derived per query from availability minus booked and reserved times.
type TimeSlot struct {
	ID          string    `json:"id"`
	ProviderID  uuid.UUID `json:"provider_id"`
	Date        string    `json:"date"`
	StartTime   string    `json:"start_time"`
	EndTime     string    `json:"end_time"`
	StartsAt    time.Time `json:"starts_at"`
	IsAvailable bool      `json:"is_available"`
	IsReserved  bool      `json:"is_reserved"`
}

type Reservation struct {
	ID         uuid.UUID
	SlotID     string
	ProviderID uuid.UUID
	PatientID  uuid.UUID
	SlotTime   time.Time
	ExpiresAt  time.Time
	Status     ReservationStatus
	CreatedAt  time.Time
}

// IsActive reports whether the reservation still holds its slot at now.
// Rows past expiresAt are inert even if nobody has swept them yet.
func (r Reservation) IsActive(now time.Time) bool {
	return r.Status == ReservationReserved && r.ExpiresAt.After(now)
}

type DocumentReference struct {
	ID         uuid.UUID `json:"id"`
	FileName   string    `json:"file_name"`
	FileURL    string    `json:"file_url"`
	FileType   string    `json:"file_type"`
	FileSize   int64     `json:"file_size"`
	UploadedAt time.Time `json:"uploaded_at"`
}

type Appointment struct {
	ID               uuid.UUID
	PatientID        uuid.UUID
	ProviderID       uuid.UUID
	ReservationID    *uuid.UUID
	StartsAt         time.Time
	Status           AppointmentStatus
	PaymentMethod    PaymentMethod
	PaymentStatus    PaymentStatus
	BookingReference string

	PatientName     string
	PatientEmail    string
	PatientPhone    string
	Gender          string
	IsPregnant      *bool
	Symptoms        string
	MedicalHistory  string
	ChronicDiseases string
	CauseIdentified *bool
	UncertaintyNote string

	CancelledAt        *time.Time
	CancellationReason *string
	Documents          []DocumentReference

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProviderAvailability is a weekly working window for a dentist.
// DayOfWeek follows time.Weekday (0 is Sunday).
type ProviderAvailability struct {
	ProviderID          uuid.UUID
	DayOfWeek           int
	StartTime           string
	EndTime             string
	SlotDurationMinutes int
	IsAvailable         bool
}

type Provider struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Specialization string    `json:"specialization"`
	Rating         float64   `json:"rating"`
}

// BookingDetails is what the patient supplies when confirming a reservation.
type BookingDetails struct {
	PatientName     string
	PatientEmail    string
	Phone           string
	Gender          string
	IsPregnant      *bool
	Symptoms        string
	MedicalHistory  string
	ChronicDiseases string
	CauseIdentified *bool
	UncertaintyNote string
	PaymentMethod   PaymentMethod
}

// CancellationResult carries policy rejections as data rather than errors.
type CancellationResult struct {
	Success     bool       `json:"success"`
	Message     string     `json:"message,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

type FileUpload struct {
	Name        string
	ContentType string
	Data        []byte
}

// DocumentUpload is the outcome of UploadDocument. Validation failures come
// back here with Success false.
type DocumentUpload struct {
	Success  bool               `json:"success"`
	Document *DocumentReference `json:"document,omitempty"`
	Errors   []string           `json:"errors,omitempty"`
}
