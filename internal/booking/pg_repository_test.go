package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *PgRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewPgRepository(mock)
}

func TestPgInsertReservationUniqueViolationIsConflict(t *testing.T) {
	mock, repo := newMockRepo(t)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	res := Reservation{
		ID:         uuid.New(),
		SlotID:     "slot",
		ProviderID: uuid.New(),
		PatientID:  uuid.New(),
		SlotTime:   now.Add(24 * time.Hour),
		ExpiresAt:  now.Add(5 * time.Minute),
	}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE reservations").
		WithArgs(res.ProviderID, res.SlotTime, now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("INSERT INTO reservations").
		WithArgs(res.ID, res.SlotID, res.ProviderID, res.PatientID, res.SlotTime, res.ExpiresAt, now).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "reservations_active_slot_uniq"})
	mock.ExpectRollback()

	_, err := repo.InsertReservation(context.Background(), res, now)
	assert.ErrorIs(t, err, ErrSlotConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgCancelAppointmentWrongStatus(t *testing.T) {
	mock, repo := newMockRepo(t)
	id := uuid.New()
	at := time.Now()

	mock.ExpectQuery("UPDATE appointments").
		WithArgs(id, at, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	_, err := repo.CancelAppointment(context.Background(), id, at, nil)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgExpireStaleReservations(t *testing.T) {
	mock, repo := newMockRepo(t)
	now := time.Now()

	mock.ExpectExec("UPDATE reservations").
		WithArgs(now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 4))

	n, err := repo.ExpireStaleReservations(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgBookingReferenceExists(t *testing.T) {
	mock, repo := newMockRepo(t)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("ABCD1234").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.BookingReferenceExists(context.Background(), "ABCD1234")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgListAvailability(t *testing.T) {
	mock, repo := newMockRepo(t)
	providerID := uuid.New()

	mock.ExpectQuery("FROM provider_availability").
		WithArgs(providerID, 2).
		WillReturnRows(pgxmock.NewRows([]string{
			"provider_id", "day_of_week", "start_time", "end_time", "slot_duration_minutes", "is_available",
		}).AddRow(providerID, 2, "09:00:00", "12:00:00", 30, true))

	windows, err := repo.ListAvailability(context.Background(), providerID, 2)
	require.NoError(t, err)
	require.Len(t, windows, 1)
	assert.Equal(t, "09:00:00", windows[0].StartTime)
	assert.Equal(t, 30, windows[0].SlotDurationMinutes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgGetProviderNotFound(t *testing.T) {
	mock, repo := newMockRepo(t)
	id := uuid.New()

	mock.ExpectQuery("FROM providers").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "specialization", "rating"}))

	_, err := repo.GetProvider(context.Background(), id)
	assert.ErrorIs(t, err, ErrProviderNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

var appointmentCols = []string{
	"id", "patient_id", "provider_id", "reservation_id", "starts_at", "status",
	"payment_method", "payment_status", "booking_reference",
	"patient_name", "patient_email", "patient_phone", "gender", "is_pregnant",
	"symptoms", "medical_history", "chronic_diseases", "cause_identified", "uncertainty_note",
	"cancelled_at", "cancellation_reason", "documents", "created_at", "updated_at",
}

func appointmentRows(a Appointment) *pgxmock.Rows {
	return pgxmock.NewRows(appointmentCols).AddRow(
		a.ID, a.PatientID, a.ProviderID, a.ReservationID, a.StartsAt, a.Status,
		a.PaymentMethod, a.PaymentStatus, a.BookingReference,
		a.PatientName, a.PatientEmail, a.PatientPhone, a.Gender, a.IsPregnant,
		a.Symptoms, a.MedicalHistory, a.ChronicDiseases, a.CauseIdentified, a.UncertaintyNote,
		nil, nil, a.Documents, a.CreatedAt, a.UpdatedAt,
	)
}

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func pendingAppointment(reservationID uuid.UUID, now time.Time) Appointment {
	return Appointment{
		ID:               uuid.New(),
		PatientID:        uuid.New(),
		ProviderID:       uuid.New(),
		ReservationID:    &reservationID,
		StartsAt:         now.Add(48 * time.Hour),
		Status:           StatusUpcoming,
		PaymentMethod:    PaymentCash,
		PaymentStatus:    PaymentPending,
		BookingReference: "AB12CD34",
		PatientName:      "Pat Doe",
		PatientEmail:     "pat@example.com",
		PatientPhone:     "5550102030",
		Symptoms:         "toothache",
		Documents:        []DocumentReference{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

const consumeReservationSQL = `UPDATE reservations\s+SET status = 'consumed'\s+WHERE id = \$1\s+AND status = 'reserved'\s+AND expires_at > \$2`

func TestPgConfirmReservationConsumesAndInserts(t *testing.T) {
	mock, repo := newMockRepo(t)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	resID := uuid.New()
	appt := pendingAppointment(resID, now)

	mock.ExpectBegin()
	mock.ExpectExec(consumeReservationSQL).
		WithArgs(resID, now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(anyArgs(21)...).
		WillReturnRows(appointmentRows(appt))
	mock.ExpectCommit()

	got, err := repo.ConfirmReservation(context.Background(), resID, appt, now)
	require.NoError(t, err)
	assert.Equal(t, appt.ID, got.ID)
	require.NotNil(t, got.ReservationID)
	assert.Equal(t, resID, *got.ReservationID)
	assert.Equal(t, "AB12CD34", got.BookingReference)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgConfirmReservationReplayReturnsExistingAppointment(t *testing.T) {
	mock, repo := newMockRepo(t)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	resID := uuid.New()
	existing := pendingAppointment(resID, now.Add(-time.Minute))

	mock.ExpectBegin()
	mock.ExpectExec(consumeReservationSQL).
		WithArgs(resID, now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("FROM appointments\\s+WHERE reservation_id = \\$1").
		WithArgs(resID).
		WillReturnRows(appointmentRows(existing))
	mock.ExpectRollback()

	got, err := repo.ConfirmReservation(context.Background(), resID, pendingAppointment(resID, now), now)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, got.ID, "a replay must not insert a second appointment")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgConfirmReservationExpired(t *testing.T) {
	mock, repo := newMockRepo(t)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	resID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(consumeReservationSQL).
		WithArgs(resID, now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("FROM appointments").
		WithArgs(resID).
		WillReturnRows(pgxmock.NewRows(appointmentCols))
	mock.ExpectRollback()

	_, err := repo.ConfirmReservation(context.Background(), resID, pendingAppointment(resID, now), now)
	assert.ErrorIs(t, err, ErrReservationExpired)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgConfirmReservationSlotAlreadyBooked(t *testing.T) {
	mock, repo := newMockRepo(t)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	resID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(consumeReservationSQL).
		WithArgs(resID, now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(anyArgs(21)...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uq_appointments_active_slot"})
	mock.ExpectRollback()

	_, err := repo.ConfirmReservation(context.Background(), resID, pendingAppointment(resID, now), now)
	assert.ErrorIs(t, err, ErrSlotConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgAppendDocumentsReturnsMergedList(t *testing.T) {
	mock, repo := newMockRepo(t)
	apptID := uuid.New()
	kept := DocumentReference{ID: uuid.New(), FileName: "xray.png", FileType: "image/png", FileSize: 2048}
	added := DocumentReference{ID: uuid.New(), FileName: "report.pdf", FileType: "application/pdf", FileSize: 4096}
	incoming := []DocumentReference{kept, added}

	mock.ExpectQuery(`SET documents = documents \|\| COALESCE\(`).
		WithArgs(apptID, incoming).
		WillReturnRows(pgxmock.NewRows([]string{"documents"}).AddRow([]DocumentReference{kept, added}))

	merged, err := repo.AppendDocuments(context.Background(), apptID, incoming)
	require.NoError(t, err)
	assert.Equal(t, []DocumentReference{kept, added}, merged)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgAppendDocumentsDedupesAndMapsErrors(t *testing.T) {
	mock, repo := newMockRepo(t)
	apptID := uuid.New()
	doc := DocumentReference{ID: uuid.New(), FileName: "xray.png"}

	mock.ExpectQuery(`WHERE NOT documents @> jsonb_build_array\(jsonb_build_object\('id', d->'id'\)\)`).
		WithArgs(apptID, []DocumentReference{doc}).
		WillReturnRows(pgxmock.NewRows([]string{"documents"}))

	_, err := repo.AppendDocuments(context.Background(), apptID, []DocumentReference{doc})
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	mock.ExpectQuery("UPDATE appointments").
		WithArgs(apptID, []DocumentReference{doc}).
		WillReturnError(errors.New("connection reset"))
	_, err = repo.AppendDocuments(context.Background(), apptID, []DocumentReference{doc})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAppointmentNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
