package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool used here, so tests can pass pgxmock.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type PgRepository struct {
	pool DB
}

func NewPgRepository(pool DB) *PgRepository {
	return &PgRepository{pool: pool}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// Helpers

const reservationColumns = `id, slot_id, provider_id, patient_id, slot_time, expires_at, status, created_at`

func scanReservation(row pgx.Row) (*Reservation, error) {
	var r Reservation
	err := row.Scan(
		&r.ID,
		&r.SlotID,
		&r.ProviderID,
		&r.PatientID,
		&r.SlotTime,
		&r.ExpiresAt,
		&r.Status,
		&r.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	return &r, nil
}

const appointmentColumns = `id, patient_id, provider_id, reservation_id, starts_at, status,
	payment_method, payment_status, booking_reference,
	patient_name, patient_email, patient_phone, gender, is_pregnant,
	symptoms, medical_history, chronic_diseases, cause_identified, uncertainty_note,
	cancelled_at, cancellation_reason, documents, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.ProviderID,
		&a.ReservationID,
		&a.StartsAt,
		&a.Status,
		&a.PaymentMethod,
		&a.PaymentStatus,
		&a.BookingReference,
		&a.PatientName,
		&a.PatientEmail,
		&a.PatientPhone,
		&a.Gender,
		&a.IsPregnant,
		&a.Symptoms,
		&a.MedicalHistory,
		&a.ChronicDiseases,
		&a.CauseIdentified,
		&a.UncertaintyNote,
		&a.CancelledAt,
		&a.CancellationReason,
		&a.Documents,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()
	var out []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// Providers

func (r *PgRepository) ListProviders(ctx context.Context) ([]Provider, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, specialization, rating::float8
		FROM providers
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Provider
	for rows.Next() {
		var p Provider
		if err := rows.Scan(&p.ID, &p.Name, &p.Specialization, &p.Rating); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PgRepository) GetProvider(ctx context.Context, id uuid.UUID) (*Provider, error) {
	var p Provider
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, specialization, rating::float8
		FROM providers
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Specialization, &p.Rating)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Slot derivation

func (r *PgRepository) ListAvailability(ctx context.Context, providerID uuid.UUID, dayOfWeek int) ([]ProviderAvailability, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT provider_id, day_of_week, start_time::text, end_time::text, slot_duration_minutes, is_available
		FROM provider_availability
		WHERE provider_id = $1
		  AND day_of_week = $2
		  AND is_available
		ORDER BY start_time
	`, providerID, dayOfWeek)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProviderAvailability
	for rows.Next() {
		var a ProviderAvailability
		if err := rows.Scan(&a.ProviderID, &a.DayOfWeek, &a.StartTime, &a.EndTime, &a.SlotDurationMinutes, &a.IsAvailable); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *PgRepository) ListAppointmentsBetween(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE provider_id = $1
		  AND starts_at >= $2
		  AND starts_at < $3
		  AND status IN ('upcoming', 'confirmed')
	`, providerID, from, to)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListActiveReservations(ctx context.Context, providerID uuid.UUID, from, to, now time.Time) ([]Reservation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE provider_id = $1
		  AND slot_time >= $2
		  AND slot_time < $3
		  AND status = 'reserved'
		  AND expires_at > $4
	`, providerID, from, to, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

// Conflict checks

func (r *PgRepository) FindSlotAppointment(ctx context.Context, providerID uuid.UUID, startsAt time.Time) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE provider_id = $1
		  AND starts_at = $2
		  AND status IN ('upcoming', 'confirmed')
		LIMIT 1
	`, providerID, startsAt)
	return scanAppointment(row)
}

func (r *PgRepository) FindActiveReservation(ctx context.Context, providerID uuid.UUID, slotTime, now time.Time) (*Reservation, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE provider_id = $1
		  AND slot_time = $2
		  AND status = 'reserved'
		  AND expires_at > $3
		LIMIT 1
	`, providerID, slotTime, now)
	return scanReservation(row)
}

// Reservations

// InsertReservation expires any lapsed hold on the same slot first so the
// partial unique index only ever sees live rows.
func (r *PgRepository) InsertReservation(ctx context.Context, res Reservation, now time.Time) (*Reservation, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin reservation tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		UPDATE reservations
		SET status = 'expired'
		WHERE provider_id = $1
		  AND slot_time = $2
		  AND status = 'reserved'
		  AND expires_at <= $3
	`, res.ProviderID, res.SlotTime, now); err != nil {
		return nil, fmt.Errorf("expire lapsed reservations: %w", err)
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO reservations (id, slot_id, provider_id, patient_id, slot_time, expires_at, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'reserved', $7)
		RETURNING `+reservationColumns, res.ID, res.SlotID, res.ProviderID, res.PatientID, res.SlotTime, res.ExpiresAt, now)
	created, err := scanReservation(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotConflict
		}
		return nil, fmt.Errorf("insert reservation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotConflict
		}
		return nil, fmt.Errorf("commit reservation: %w", err)
	}
	return created, nil
}

func (r *PgRepository) ExtendReservation(ctx context.Context, id uuid.UUID, expiresAt time.Time) (*Reservation, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE reservations
		SET expires_at = $2
		WHERE id = $1
		  AND status = 'reserved'
		RETURNING `+reservationColumns, id, expiresAt)
	return scanReservation(row)
}

func (r *PgRepository) GetReservation(ctx context.Context, id uuid.UUID) (*Reservation, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE id = $1
	`, id)
	return scanReservation(row)
}

func (r *PgRepository) ExpireSlotReservations(ctx context.Context, providerID uuid.UUID, slotTime time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE reservations
		SET status = 'expired'
		WHERE provider_id = $1
		  AND slot_time = $2
		  AND status <> 'expired'
	`, providerID, slotTime)
	if err != nil {
		return 0, fmt.Errorf("expire slot reservations: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PgRepository) ExpireStaleReservations(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE reservations
		SET status = 'expired'
		WHERE status = 'reserved'
		  AND expires_at <= $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("expire stale reservations: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PgRepository) ConfirmReservation(ctx context.Context, reservationID uuid.UUID, appt Appointment, now time.Time) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin confirm tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE reservations
		SET status = 'consumed'
		WHERE id = $1
		  AND status = 'reserved'
		  AND expires_at > $2
	`, reservationID, now)
	if err != nil {
		return nil, fmt.Errorf("consume reservation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		existing, err := scanAppointment(tx.QueryRow(ctx, `
			SELECT `+appointmentColumns+`
			FROM appointments
			WHERE reservation_id = $1
		`, reservationID))
		if err == nil {
			return existing, nil
		}
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrReservationExpired
		}
		return nil, err
	}

	docs := appt.Documents
	if docs == nil {
		docs = []DocumentReference{}
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO appointments (
			id, patient_id, provider_id, reservation_id, starts_at, status,
			payment_method, payment_status, booking_reference,
			patient_name, patient_email, patient_phone, gender, is_pregnant,
			symptoms, medical_history, chronic_diseases, cause_identified, uncertainty_note,
			documents, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $21)
		RETURNING `+appointmentColumns,
		appt.ID, appt.PatientID, appt.ProviderID, reservationID, appt.StartsAt, appt.Status,
		appt.PaymentMethod, appt.PaymentStatus, appt.BookingReference,
		appt.PatientName, appt.PatientEmail, appt.PatientPhone, appt.Gender, appt.IsPregnant,
		appt.Symptoms, appt.MedicalHistory, appt.ChronicDiseases, appt.CauseIdentified, appt.UncertaintyNote,
		docs, now,
	)
	created, err := scanAppointment(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotConflict
		}
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit confirm: %w", err)
	}
	return created, nil
}

// Appointments

func (r *PgRepository) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListPatientAppointments(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY starts_at DESC
	`, patientID)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) CancelAppointment(ctx context.Context, id uuid.UUID, cancelledAt time.Time, reason *string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
		    cancelled_at = $2,
		    cancellation_reason = $3,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'upcoming'
		RETURNING `+appointmentColumns, id, cancelledAt, reason)
	a, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, ErrInvalidStatusTransition
	}
	return a, err
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns, id, to, from)
	a, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, ErrInvalidStatusTransition
	}
	return a, err
}

func (r *PgRepository) BookingReferenceExists(ctx context.Context, ref string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM appointments WHERE booking_reference = $1)
	`, ref).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// Documents

func (r *PgRepository) GetAppointmentDocuments(ctx context.Context, appointmentID uuid.UUID) ([]DocumentReference, error) {
	var docs []DocumentReference
	err := r.pool.QueryRow(ctx, `
		SELECT documents
		FROM appointments
		WHERE id = $1
	`, appointmentID).Scan(&docs)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return docs, nil
}

// AppendDocuments concatenates only the entries whose id is not already in
// the array, so a replayed call leaves the list unchanged.
func (r *PgRepository) AppendDocuments(ctx context.Context, appointmentID uuid.UUID, docs []DocumentReference) ([]DocumentReference, error) {
	var merged []DocumentReference
	err := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET documents = documents || COALESCE((
		        SELECT jsonb_agg(d)
		        FROM jsonb_array_elements($2::jsonb) AS d
		        WHERE NOT documents @> jsonb_build_array(jsonb_build_object('id', d->'id'))
		    ), '[]'::jsonb),
		    updated_at = now()
		WHERE id = $1
		RETURNING documents
	`, appointmentID, docs).Scan(&merged)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("append documents: %w", err)
	}
	return merged, nil
}
