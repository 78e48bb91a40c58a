package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/dental-booking/internal/auth"
	"github.com/hackgods/dental-booking/internal/booking"
	"github.com/hackgods/dental-booking/internal/chatbot"
)

// BookingService is the booking surface the HTTP layer exposes.
type BookingService interface {
	ListProviders(ctx context.Context) ([]booking.Provider, error)
	GetAvailableSlots(ctx context.Context, providerID uuid.UUID, date time.Time) ([]booking.TimeSlot, error)
	SuggestAlternativeSlots(ctx context.Context, providerID uuid.UUID, date time.Time) ([]booking.TimeSlot, error)
	ReserveTimeSlot(ctx context.Context, slotID string) (*booking.Reservation, error)
	ConfirmReservation(ctx context.Context, reservationID uuid.UUID, d booking.BookingDetails) (*booking.Appointment, error)
	ListPatientAppointments(ctx context.Context) ([]booking.Appointment, error)
	CancelAppointment(ctx context.Context, appointmentID uuid.UUID, reason string) (booking.CancellationResult, error)
	CompleteAppointment(ctx context.Context, appointmentID uuid.UUID) (*booking.Appointment, error)
	UploadDocument(ctx context.Context, f booking.FileUpload, appointmentID uuid.UUID) (booking.DocumentUpload, error)
	LinkDocumentToAppointment(ctx context.Context, appointmentID uuid.UUID, docs []booking.DocumentReference) ([]booking.DocumentReference, error)
	GetAppointmentDocuments(ctx context.Context, appointmentID uuid.UUID) ([]booking.DocumentReference, error)
	Location() *time.Location
}

type ChatService interface {
	Start(ctx context.Context, sessionID string) (chatbot.Reply, error)
	HandleMessage(ctx context.Context, sessionID, text string) (chatbot.Reply, error)
}

type RouterConfig struct {
	Booking   BookingService
	Chat      ChatService
	PgPool    Pinger
	Redis     *redis.Client
	JWTSecret string
	Logger    zerolog.Logger
	// Metrics serves /metrics. Defaults to the global Prometheus registry.
	Metrics http.Handler
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	r.Handle("/metrics", metrics)

	// Browsing is public.
	r.Get("/providers", listProvidersHandler(cfg.Booking))
	r.Get("/providers/{providerID}/slots", listSlotsHandler(cfg.Booking))
	r.Get("/providers/{providerID}/slots/alternatives", suggestSlotsHandler(cfg.Booking))

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(cfg.JWTSecret))

		r.Post("/reservations", reserveSlotHandler(cfg.Booking))
		r.Post("/reservations/{id}/confirm", confirmReservationHandler(cfg.Booking))

		r.Get("/appointments", listAppointmentsHandler(cfg.Booking))
		r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Booking))
		r.Post("/appointments/{id}/complete", completeAppointmentHandler(cfg.Booking))
		r.Post("/appointments/{id}/documents", uploadDocumentHandler(cfg.Booking))
		r.Get("/appointments/{id}/documents", listDocumentsHandler(cfg.Booking))
	})

	if cfg.Chat != nil {
		r.Group(func(r chi.Router) {
			r.Use(auth.OptionalMiddleware(cfg.JWTSecret))

			r.Post("/chat/sessions", startChatHandler(cfg.Chat))
			r.Post("/chat/sessions/{id}/messages", chatMessageHandler(cfg.Chat))
		})
	}

	return r
}
