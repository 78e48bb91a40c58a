package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/dental-booking/internal/booking"
)

type ReserveSlotRequest struct {
	SlotID string `json:"slot_id"`
}

type ReservationResponse struct {
	ID         uuid.UUID `json:"id"`
	SlotID     string    `json:"slot_id"`
	ProviderID uuid.UUID `json:"provider_id"`
	SlotTime   time.Time `json:"slot_time"`
	ExpiresAt  time.Time `json:"expires_at"`
	Status     string    `json:"status"`
}

type ConfirmReservationRequest struct {
	PatientName     string `json:"patient_name"`
	PatientEmail    string `json:"patient_email"`
	Phone           string `json:"phone"`
	Gender          string `json:"gender"`
	IsPregnant      *bool  `json:"is_pregnant,omitempty"`
	Symptoms        string `json:"symptoms"`
	MedicalHistory  string `json:"medical_history,omitempty"`
	ChronicDiseases string `json:"chronic_diseases"`
	CauseIdentified *bool  `json:"cause_identified,omitempty"`
	UncertaintyNote string `json:"uncertainty_note,omitempty"`
	PaymentMethod   string `json:"payment_method"`
}

func (r ConfirmReservationRequest) details() booking.BookingDetails {
	return booking.BookingDetails{
		PatientName:     r.PatientName,
		PatientEmail:    r.PatientEmail,
		Phone:           r.Phone,
		Gender:          r.Gender,
		IsPregnant:      r.IsPregnant,
		Symptoms:        r.Symptoms,
		MedicalHistory:  r.MedicalHistory,
		ChronicDiseases: r.ChronicDiseases,
		CauseIdentified: r.CauseIdentified,
		UncertaintyNote: r.UncertaintyNote,
		PaymentMethod:   booking.PaymentMethod(r.PaymentMethod),
	}
}

type AppointmentResponse struct {
	ID                 uuid.UUID                   `json:"id"`
	ProviderID         uuid.UUID                   `json:"provider_id"`
	StartsAt           time.Time                   `json:"starts_at"`
	Status             string                      `json:"status"`
	PaymentMethod      string                      `json:"payment_method"`
	PaymentStatus      string                      `json:"payment_status"`
	BookingReference   string                      `json:"booking_reference"`
	PatientName        string                      `json:"patient_name"`
	PatientEmail       string                      `json:"patient_email"`
	PatientPhone       string                      `json:"patient_phone"`
	Symptoms           string                      `json:"symptoms"`
	CancelledAt        *time.Time                  `json:"cancelled_at,omitempty"`
	CancellationReason *string                     `json:"cancellation_reason,omitempty"`
	Documents          []booking.DocumentReference `json:"documents"`
}

func toAppointmentResponse(a booking.Appointment) AppointmentResponse {
	docs := a.Documents
	if docs == nil {
		docs = []booking.DocumentReference{}
	}
	return AppointmentResponse{
		ID:                 a.ID,
		ProviderID:         a.ProviderID,
		StartsAt:           a.StartsAt,
		Status:             string(a.Status),
		PaymentMethod:      string(a.PaymentMethod),
		PaymentStatus:      string(a.PaymentStatus),
		BookingReference:   a.BookingReference,
		PatientName:        a.PatientName,
		PatientEmail:       a.PatientEmail,
		PatientPhone:       a.PatientPhone,
		Symptoms:           a.Symptoms,
		CancelledAt:        a.CancelledAt,
		CancellationReason: a.CancellationReason,
		Documents:          docs,
	}
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason"`
}

type DocumentsResponse struct {
	Documents []booking.DocumentReference `json:"documents"`
}

type StartChatRequest struct {
	SessionID string `json:"session_id,omitempty"`
}

type ChatMessageRequest struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error   string   `json:"error"`
	Details string   `json:"details,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}
