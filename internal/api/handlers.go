package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/dental-booking/internal/booking"
	"github.com/hackgods/dental-booking/internal/validation"
)

const dateLayout = "2006-01-02"

// maxUploadBytes leaves room for multipart framing around the file itself.
const maxUploadBytes = validation.MaxFileSize + 1<<20

func listProvidersHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providers, err := svc.ListProviders(r.Context())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, providers)
	}
}

func listSlotsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, date, ok := slotQuery(w, r, svc)
		if !ok {
			return
		}
		slots, err := svc.GetAvailableSlots(r.Context(), providerID, date)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, slots)
	}
}

func suggestSlotsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, date, ok := slotQuery(w, r, svc)
		if !ok {
			return
		}
		slots, err := svc.SuggestAlternativeSlots(r.Context(), providerID, date)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, slots)
	}
}

// slotQuery reads the provider path parameter and the optional ?date= in the
// clinic's time zone. A missing date means today.
func slotQuery(w http.ResponseWriter, r *http.Request, svc BookingService) (uuid.UUID, time.Time, bool) {
	providerID, err := uuid.Parse(chi.URLParam(r, "providerID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_provider_id", "providerID must be a valid UUID")
		return uuid.Nil, time.Time{}, false
	}
	loc := svc.Location()
	if loc == nil {
		loc = time.UTC
	}
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return providerID, time.Now().In(loc), true
	}
	date, err := time.ParseInLocation(dateLayout, raw, loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return uuid.Nil, time.Time{}, false
	}
	return providerID, date, true
}

func reserveSlotHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ReserveSlotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		res, err := svc.ReserveTimeSlot(r.Context(), req.SlotID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, ReservationResponse{
			ID:         res.ID,
			SlotID:     res.SlotID,
			ProviderID: res.ProviderID,
			SlotTime:   res.SlotTime,
			ExpiresAt:  res.ExpiresAt,
			Status:     string(res.Status),
		})
	}
}

func confirmReservationHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "invalid_reservation_id")
		if !ok {
			return
		}
		var req ConfirmReservationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.ConfirmReservation(r.Context(), id, req.details())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toAppointmentResponse(*appt))
	}
}

func listAppointmentsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appts, err := svc.ListPatientAppointments(r.Context())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		resp := make([]AppointmentResponse, 0, len(appts))
		for _, a := range appts {
			resp = append(resp, toAppointmentResponse(a))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// cancelAppointmentHandler answers 200 even when the cancellation policy
// refuses; the result body says whether it succeeded.
func cancelAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "invalid_appointment_id")
		if !ok {
			return
		}
		var req CancelAppointmentRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
				writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
				return
			}
		}

		result, err := svc.CancelAppointment(r.Context(), id, req.Reason)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func completeAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "invalid_appointment_id")
		if !ok {
			return
		}
		appt, err := svc.CompleteAppointment(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func uploadDocumentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "invalid_appointment_id")
		if !ok {
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_upload", "expected a multipart form with a file field")
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_upload", "file field is required")
			return
		}
		defer file.Close()

		// One byte past the limit is enough for validation to reject it.
		data, err := io.ReadAll(io.LimitReader(file, validation.MaxFileSize+1))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_upload", "could not read file")
			return
		}

		upload, err := svc.UploadDocument(r.Context(), booking.FileUpload{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		}, id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if !upload.Success {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:  "invalid_file",
				Errors: upload.Errors,
			})
			return
		}

		docs, err := svc.LinkDocumentToAppointment(r.Context(), id, []booking.DocumentReference{*upload.Document})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, DocumentsResponse{Documents: docs})
	}
}

func listDocumentsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "invalid_appointment_id")
		if !ok {
			return
		}
		docs, err := svc.GetAppointmentDocuments(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if docs == nil {
			docs = []booking.DocumentReference{}
		}
		writeJSON(w, http.StatusOK, DocumentsResponse{Documents: docs})
	}
}

func pathID(w http.ResponseWriter, r *http.Request, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, code, "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

var kindStatus = map[booking.Kind]int{
	booking.KindValidation:      http.StatusBadRequest,
	booking.KindConflict:        http.StatusConflict,
	booking.KindUnauthenticated: http.StatusUnauthorized,
	booking.KindForbidden:       http.StatusForbidden,
	booking.KindNotFound:        http.StatusNotFound,
	booking.KindTimeout:         http.StatusGatewayTimeout,
	booking.KindUnavailable:     http.StatusServiceUnavailable,
	booking.KindInternal:        http.StatusInternalServerError,
}

// writeServiceError maps a booking error to a status and a patient-safe
// message. The full chain only goes to the log.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	kind := booking.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("kind", string(kind)).Msg("request failed")
	}
	writeError(w, status, string(kind), booking.UserMessage(err))
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
