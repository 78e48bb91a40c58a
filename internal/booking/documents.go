package booking

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/hackgods/dental-booking/internal/auth"
	"github.com/hackgods/dental-booking/internal/validation"
)

func (s *Service) ownedAppointment(ctx context.Context, op string, user auth.User, appointmentID uuid.UUID) (*Appointment, error) {
	appt, err := retry(ctx, s.cfg.Retry, func(ctx context.Context) (*Appointment, error) {
		return s.repo.GetAppointment(ctx, appointmentID)
	})
	if err != nil {
		return nil, wrapStorage(op, err)
	}
	if appt.PatientID != user.ID && !user.IsStaff() {
		return nil, newError(KindForbidden, op, "This appointment belongs to another patient.", ErrForbidden)
	}
	return appt, nil
}

// UploadDocument stores a file for appointmentID under
// {userId}/{appointmentId}/{timestamp}.{ext}. It does not attach it; call
// LinkDocumentToAppointment with the returned reference.
func (s *Service) UploadDocument(ctx context.Context, f FileUpload, appointmentID uuid.UUID) (DocumentUpload, error) {
	const op = "booking.UploadDocument"

	user, err := currentUser(ctx, op)
	if err != nil {
		return DocumentUpload{}, err
	}
	appt, err := s.ownedAppointment(ctx, op, user, appointmentID)
	if err != nil {
		return DocumentUpload{}, err
	}

	v := validation.ValidateFile(validation.FileInfo{
		Name:        f.Name,
		Size:        int64(len(f.Data)),
		ContentType: f.ContentType,
	}, validation.FileOptions{MaxFiles: s.cfg.MaxFiles, CurrentFileCount: len(appt.Documents)})
	if !v.IsValid {
		return DocumentUpload{Success: false, Errors: v.Errors}, nil
	}
	if s.store == nil {
		return DocumentUpload{}, newError(KindUnavailable, op, msgTryAgain, fmt.Errorf("%w: no object store configured", ErrStorageUnavailable))
	}

	now := s.now()
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(f.Name)), ".")
	if ext == "" {
		ext = "bin"
	}
	key := fmt.Sprintf("%s/%s/%d.%s", user.ID, appointmentID, now.UnixMilli(), ext)

	url, err := retry(ctx, s.cfg.Retry, func(ctx context.Context) (string, error) {
		return s.store.Upload(ctx, key, f.Data, f.ContentType)
	})
	if err != nil {
		return DocumentUpload{}, wrapStorage(op, err)
	}

	doc := DocumentReference{
		ID:         uuid.New(),
		FileName:   f.Name,
		FileURL:    url,
		FileType:   f.ContentType,
		FileSize:   int64(len(f.Data)),
		UploadedAt: now,
	}
	s.logger.Info().
		Str("appointment_id", appointmentID.String()).
		Str("document_id", doc.ID.String()).
		Str("key", key).
		Msg("document uploaded")
	return DocumentUpload{Success: true, Document: &doc}, nil
}

// LinkDocumentToAppointment appends docs to the appointment. Existing
// entries are never replaced and a repeated link is a no-op.
func (s *Service) LinkDocumentToAppointment(ctx context.Context, appointmentID uuid.UUID, docs []DocumentReference) ([]DocumentReference, error) {
	const op = "booking.LinkDocumentToAppointment"

	user, err := currentUser(ctx, op)
	if err != nil {
		return nil, err
	}
	if _, err := s.ownedAppointment(ctx, op, user, appointmentID); err != nil {
		return nil, err
	}

	merged, err := retry(ctx, s.cfg.Retry, func(ctx context.Context) ([]DocumentReference, error) {
		return s.repo.AppendDocuments(ctx, appointmentID, docs)
	})
	if err != nil {
		return nil, wrapStorage(op, err)
	}
	return merged, nil
}

func (s *Service) GetAppointmentDocuments(ctx context.Context, appointmentID uuid.UUID) ([]DocumentReference, error) {
	const op = "booking.GetAppointmentDocuments"

	user, err := currentUser(ctx, op)
	if err != nil {
		return nil, err
	}
	if _, err := s.ownedAppointment(ctx, op, user, appointmentID); err != nil {
		return nil, err
	}

	docs, err := retry(ctx, s.cfg.Retry, func(ctx context.Context) ([]DocumentReference, error) {
		return s.repo.GetAppointmentDocuments(ctx, appointmentID)
	})
	if err != nil {
		return nil, wrapStorage(op, err)
	}
	return docs, nil
}
