package chatbot

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/dental-booking/internal/auth"
	"github.com/hackgods/dental-booking/internal/booking"
	"github.com/hackgods/dental-booking/internal/slotlock"
)

var chatNow = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC) // Tuesday

type stubExtractor struct {
	out   Extraction
	err   error
	calls int
}

func (s *stubExtractor) Extract(context.Context, string, Context, Step) (Extraction, error) {
	s.calls++
	return s.out, s.err
}

type engineFixture struct {
	repo    *booking.MemoryRepository
	svc     *booking.Service
	store   *MemorySessionStore
	engine  *Engine
	gum     booking.Provider
	general booking.Provider
}

func newEngineFixture(t *testing.T, opts ...Option) *engineFixture {
	t.Helper()
	repo := booking.NewMemoryRepository()
	gum := booking.Provider{ID: uuid.New(), Name: "Dr. Maya Chen", Specialization: "Periodontist", Rating: 4.9}
	general := booking.Provider{ID: uuid.New(), Name: "Dr. Omar Haddad", Specialization: "General Dentistry", Rating: 4.5}
	for _, p := range []booking.Provider{gum, general} {
		repo.AddProvider(p)
		repo.AddAvailability(booking.ProviderAvailability{
			ProviderID:          p.ID,
			DayOfWeek:           int(time.Wednesday),
			StartTime:           "09:00",
			EndTime:             "12:00",
			SlotDurationMinutes: 30,
			IsAvailable:         true,
		})
	}

	clock := func() time.Time { return chatNow }
	cfg := booking.DefaultConfig()
	cfg.Retry = booking.RetryPolicy{MaxAttempts: 1, InitialDelay: time.Millisecond, Multiplier: 2}
	svc := booking.NewService(repo, slotlock.NewMemory(0), cfg, booking.WithClock(clock))
	store := NewMemorySessionStore(time.Hour)

	return &engineFixture{
		repo:    repo,
		svc:     svc,
		store:   store,
		engine:  NewEngine(svc, store, append([]Option{WithClock(clock)}, opts...)...),
		gum:     gum,
		general: general,
	}
}

func signedIn(name, email string) (context.Context, auth.User) {
	u := auth.User{ID: uuid.New(), Name: name, Email: email, Role: auth.RolePatient}
	return auth.WithUser(context.Background(), u), u
}

func (f *engineFixture) say(t *testing.T, ctx context.Context, id string, msgs ...string) Reply {
	t.Helper()
	var reply Reply
	for _, m := range msgs {
		var err error
		reply, err = f.engine.HandleMessage(ctx, id, m)
		require.NoError(t, err, "message %q", m)
	}
	return reply
}

func (f *engineFixture) session(t *testing.T, id string) *Session {
	t.Helper()
	s, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)
	return s
}

func TestEngineFullBookingFlow(t *testing.T) {
	f := newEngineFixture(t)
	ctx, user := signedIn("Pat Doe", "pat@example.com")

	start, err := f.engine.Start(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingIntent, start.State)
	assert.Contains(t, start.Message, "Hi Pat!")
	assert.NotEmpty(t, start.SessionID)
	assert.Equal(t, menuOptions, start.Options)
	id := start.SessionID

	r := f.say(t, ctx, id, "I'd like to book an appointment")
	assert.Equal(t, StateAwaitingGender, r.State, "name and email come from the signed-in user")

	r = f.say(t, ctx, id, "female")
	assert.Equal(t, StateAwaitingPregnancy, r.State)

	r = f.say(t, ctx, id, "no")
	assert.Equal(t, StateAwaitingPhone, r.State)

	r = f.say(t, ctx, id, "my number is +1 555 010 2030")
	assert.Equal(t, StateAwaitingSymptom, r.State)

	r = f.say(t, ctx, id, "my gums bleed when brushing")
	assert.Equal(t, StateAwaitingMedicalHistory, r.State)

	r = f.say(t, ctx, id, "skip")
	assert.Equal(t, StateAwaitingDocuments, r.State)

	r = f.say(t, ctx, id, "yes")
	assert.Equal(t, StateAwaitingChronicDiseases, r.State)

	r = f.say(t, ctx, id, "none")
	assert.Equal(t, StateAwaitingDentistConfirmation, r.State)
	assert.Contains(t, r.Message, "Dr. Maya Chen")

	r = f.say(t, ctx, id, "Yes, book")
	assert.Equal(t, StateAwaitingDateTime, r.State)
	require.Len(t, r.Options, 6)
	assert.Equal(t, "Wed, Mar 11 at 9:00 AM", r.Options[0])

	r = f.say(t, ctx, id, "1")
	assert.Equal(t, StateAwaitingPaymentMethod, r.State)

	r = f.say(t, ctx, id, "card")
	assert.Equal(t, StateAwaitingFinalConfirmation, r.State)
	assert.Contains(t, r.Message, "Payment: Card")
	assert.Contains(t, r.Message, "Dr. Maya Chen (Periodontist)")

	r = f.say(t, ctx, id, "confirm")
	assert.Equal(t, StateCompleted, r.State)
	assert.False(t, r.RequiresInput)
	assert.Regexp(t, regexp.MustCompile(`^[A-Z0-9]{8}$`), r.BookingReference)
	assert.Contains(t, r.Message, "upload your documents")

	apptID, err := uuid.Parse(r.AppointmentID)
	require.NoError(t, err)
	appt, err := f.repo.GetAppointment(context.Background(), apptID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, appt.PatientID)
	assert.Equal(t, f.gum.ID, appt.ProviderID)
	assert.True(t, appt.StartsAt.Equal(time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)))
	assert.Equal(t, booking.PaymentCard, appt.PaymentMethod)
	assert.Equal(t, "+1 555 010 2030", appt.PatientPhone)
	assert.Equal(t, "female", appt.Gender)
	require.NotNil(t, appt.IsPregnant)
	assert.False(t, *appt.IsPregnant)
	assert.Equal(t, "none", appt.ChronicDiseases)
	assert.Equal(t, "Pat Doe", appt.PatientName)

	r = f.say(t, ctx, id, "check my appointments")
	assert.Equal(t, StateAwaitingIntent, r.State)
	assert.Contains(t, r.Message, booking.FormatBookingReference(appt.BookingReference))
}

func TestEngineMaleSkipsPregnancy(t *testing.T) {
	f := newEngineFixture(t)
	ctx, _ := signedIn("Sam Lee", "sam@example.com")
	start, err := f.engine.Start(ctx, "chat-1")
	require.NoError(t, err)
	assert.Equal(t, "chat-1", start.SessionID)

	r := f.say(t, ctx, "chat-1", "book", "M")
	assert.Equal(t, StateAwaitingPhone, r.State)
	assert.Nil(t, f.session(t, "chat-1").Context.IsPregnant)
}

func TestEngineRepromptsUnrecognizedAnswer(t *testing.T) {
	f := newEngineFixture(t)
	ctx, _ := signedIn("Sam Lee", "sam@example.com")
	_, err := f.engine.Start(ctx, "chat-1")
	require.NoError(t, err)

	r := f.say(t, ctx, "chat-1", "book", "banana")
	assert.Equal(t, StateAwaitingGender, r.State)
	assert.Equal(t, stepPrompts[StepGender].reprompt, r.Message)
	assert.Equal(t, []string{"Male", "Female", "Other"}, r.Options)

	r = f.say(t, ctx, "chat-1", "male", "12345")
	assert.Equal(t, StateAwaitingPhone, r.State)
	assert.Equal(t, stepPrompts[StepPhone].reprompt, r.Message)
}

func TestEngineGuestMustSignInToCommit(t *testing.T) {
	f := newEngineFixture(t)
	guest := context.Background()

	start, err := f.engine.Start(guest, "")
	require.NoError(t, err)
	id := start.SessionID

	r := f.say(t, guest, id, "book an appointment")
	assert.Equal(t, StateAwaitingName, r.State)
	r = f.say(t, guest, id, "Sam Guest")
	assert.Equal(t, StateAwaitingEmail, r.State)
	r = f.say(t, guest, id, "not-an-email")
	assert.Equal(t, StateAwaitingEmail, r.State)

	r = f.say(t, guest, id,
		"sam@example.com", "male", "5550102030", "I don't know, something hurts",
		"skip", "no", "none")
	assert.Equal(t, StateAwaitingDentistConfirmation, r.State)
	assert.Contains(t, r.Message, "Dr. Omar Haddad", "unsure symptoms go to general dentistry")

	r = f.say(t, guest, id, "yes", "2", "cash")
	assert.Equal(t, StateAwaitingFinalConfirmation, r.State)

	_, err = f.engine.HandleMessage(guest, id, "confirm")
	assert.ErrorIs(t, err, ErrSignInRequired)
	assert.Equal(t, StateAwaitingFinalConfirmation, f.session(t, id).State)

	ctx, user := signedIn("Sam Guest", "sam@example.com")
	r = f.say(t, ctx, id, "yes, confirm")
	assert.Equal(t, StateCompleted, r.State)
	assert.Equal(t, user.ID, f.session(t, id).UserID)

	appts, err := f.svc.ListPatientAppointments(ctx)
	require.NoError(t, err)
	require.Len(t, appts, 1)
	require.NotNil(t, appts[0].CauseIdentified)
	assert.False(t, *appts[0].CauseIdentified)
	assert.NotEmpty(t, appts[0].UncertaintyNote)
	assert.Equal(t, booking.PaymentCash, appts[0].PaymentMethod)
}

func TestEngineSessionBoundToUser(t *testing.T) {
	f := newEngineFixture(t)
	owner, _ := signedIn("Pat Doe", "pat@example.com")
	other, _ := signedIn("Eve", "eve@example.com")

	start, err := f.engine.Start(owner, "")
	require.NoError(t, err)

	_, err = f.engine.HandleMessage(other, start.SessionID, "book")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = f.engine.HandleMessage(context.Background(), start.SessionID, "book")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = f.engine.HandleMessage(owner, "missing", "book")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestEngineAIFailureFallsBackToKeywords(t *testing.T) {
	ai := &stubExtractor{err: errors.New("model timeout")}
	f := newEngineFixture(t, WithExtractor(ai))
	ctx, _ := signedIn("Ana Ruiz", "ana@example.com")
	_, err := f.engine.Start(ctx, "s")
	require.NoError(t, err)

	r := f.say(t, ctx, "s", "book", "I'm a woman")
	assert.Equal(t, 1, ai.calls)
	assert.Equal(t, StateAwaitingPregnancy, r.State)
	assert.Equal(t, stepPrompts[StepPregnancy].question, r.Message)
}

func TestEngineAICannotSkipPregnancy(t *testing.T) {
	ai := &stubExtractor{out: Extraction{
		Gender:       strPtr("female"),
		Phone:        strPtr("+15550102030"),
		NextStep:     StepSymptoms,
		NextQuestion: "What brings you in today?",
	}}
	f := newEngineFixture(t, WithExtractor(ai))
	ctx, _ := signedIn("Ana Ruiz", "ana@example.com")
	_, err := f.engine.Start(ctx, "s")
	require.NoError(t, err)

	r := f.say(t, ctx, "s", "book", "I'm Ana, a woman, call me on +15550102030")
	assert.Equal(t, StateAwaitingPregnancy, r.State)
	assert.Equal(t, stepPrompts[StepPregnancy].question, r.Message)
	assert.Equal(t, "+15550102030", f.session(t, "s").Context.PatientPhone)
}

func TestEngineUsesAIPhrasingForMatchingStep(t *testing.T) {
	ai := &stubExtractor{out: Extraction{
		Gender:       strPtr("male"),
		NextStep:     StepPhone,
		NextQuestion: "Thanks! What's a good number to reach you?",
	}}
	f := newEngineFixture(t, WithExtractor(ai))
	ctx, _ := signedIn("Sam Lee", "sam@example.com")
	_, err := f.engine.Start(ctx, "s")
	require.NoError(t, err)

	r := f.say(t, ctx, "s", "book", "guy here")
	assert.Equal(t, StateAwaitingPhone, r.State)
	assert.Equal(t, "Thanks! What's a good number to reach you?", r.Message)
}

func TestEngineConflictReoffersSlots(t *testing.T) {
	f := newEngineFixture(t)
	ctx, _ := signedIn("Pat Doe", "pat@example.com")
	_, err := f.engine.Start(ctx, "s")
	require.NoError(t, err)

	r := f.say(t, ctx, "s", "book", "male", "5550102030", "bleeding gums", "skip", "no", "none", "yes", "1", "cash")
	require.Equal(t, StateAwaitingFinalConfirmation, r.State)

	slotID := f.session(t, "s").Context.SelectedSlot.ID
	rival, _ := signedIn("Rival", "rival@example.com")
	_, err = f.svc.ReserveTimeSlot(rival, slotID)
	require.NoError(t, err)

	r = f.say(t, ctx, "s", "confirm")
	assert.Equal(t, StateAwaitingDateTime, r.State)
	assert.Contains(t, r.Message, "that time was just taken")
	assert.Len(t, r.Options, 5)
	assert.Nil(t, f.session(t, "s").Context.SelectedSlot)
}

func TestEngineFinalConfirmationDeclined(t *testing.T) {
	f := newEngineFixture(t)
	ctx, _ := signedIn("Pat Doe", "pat@example.com")
	_, err := f.engine.Start(ctx, "s")
	require.NoError(t, err)

	r := f.say(t, ctx, "s", "book", "male", "5550102030", "toothache", "skip", "no", "none", "yes", "1", "cash", "actually wait")
	assert.Equal(t, StateAwaitingIntent, r.State)
	assert.Equal(t, "No problem! What would you like to change?", r.Message)

	appts, err := f.svc.ListPatientAppointments(ctx)
	require.NoError(t, err)
	assert.Empty(t, appts)
}

func TestEngineAnotherDentist(t *testing.T) {
	f := newEngineFixture(t)
	ctx, _ := signedIn("Pat Doe", "pat@example.com")
	_, err := f.engine.Start(ctx, "s")
	require.NoError(t, err)

	r := f.say(t, ctx, "s", "book", "male", "5550102030", "gum disease", "skip", "no", "none")
	assert.Contains(t, r.Message, "Dr. Maya Chen")

	r = f.say(t, ctx, "s", "Show another dentist")
	assert.Equal(t, StateAwaitingDentistConfirmation, r.State)
	assert.Contains(t, r.Message, "Dr. Omar Haddad")

	r = f.say(t, ctx, "s", "no")
	assert.Equal(t, StateAwaitingIntent, r.State)
	assert.Contains(t, r.Message, "no other dentists")
}

func TestEngineMenuResetsFlow(t *testing.T) {
	f := newEngineFixture(t)
	ctx, _ := signedIn("Pat Doe", "pat@example.com")
	_, err := f.engine.Start(ctx, "s")
	require.NoError(t, err)

	f.say(t, ctx, "s", "book", "female")
	r := f.say(t, ctx, "s", "menu")
	assert.Equal(t, StateAwaitingIntent, r.State)
	assert.Equal(t, menuOptions, r.Options)

	sess := f.session(t, "s")
	assert.Empty(t, sess.Context.Gender)
	assert.Equal(t, "Pat Doe", sess.Context.PatientName)
}

func TestEngineQuestionsUseFAQWithoutModel(t *testing.T) {
	f := newEngineFixture(t)
	_, err := f.engine.Start(context.Background(), "s")
	require.NoError(t, err)

	r := f.say(t, context.Background(), "s", "Ask a question")
	assert.Equal(t, StateAwaitingQuestion, r.State)

	r = f.say(t, context.Background(), "s", "What are your opening hours?")
	assert.Equal(t, StateAwaitingQuestion, r.State)
	assert.Contains(t, r.Message, "Monday to Friday")
}

func TestEngineQuestionsUseModel(t *testing.T) {
	f := newEngineFixture(t, WithAnswerer(&fakeLLM{text: "Most cleanings take about 45 minutes."}))
	_, err := f.engine.Start(context.Background(), "s")
	require.NoError(t, err)

	r := f.say(t, context.Background(), "s", "How long does a cleaning take?")
	assert.Equal(t, StateAwaitingQuestion, r.State)
	assert.Equal(t, "Most cleanings take about 45 minutes.", r.Message)

	r = f.say(t, context.Background(), "s", "ok let's book a visit")
	assert.Equal(t, StateAwaitingName, r.State)
}

func TestEngineViewDentistsAndGuestAppointments(t *testing.T) {
	f := newEngineFixture(t)
	guest := context.Background()
	_, err := f.engine.Start(guest, "s")
	require.NoError(t, err)

	r := f.say(t, guest, "s", "View dentists")
	assert.Contains(t, r.Message, "Dr. Maya Chen")
	assert.Contains(t, r.Message, "Dr. Omar Haddad")

	r = f.say(t, guest, "s", "check my appointments")
	assert.Equal(t, "Please sign in to see your appointments.", r.Message)
}

func TestEngineNegatedConfirmationDoesNotBook(t *testing.T) {
	f := newEngineFixture(t)
	ctx, _ := signedIn("Pat Doe", "pat@example.com")
	_, err := f.engine.Start(ctx, "s")
	require.NoError(t, err)

	r := f.say(t, ctx, "s", "book", "male", "5550102030", "toothache", "skip", "no", "none", "yes", "1", "cash")
	require.Equal(t, StateAwaitingFinalConfirmation, r.State)

	r = f.say(t, ctx, "s", "No, don't confirm yet")
	assert.Equal(t, StateAwaitingIntent, r.State)
	assert.Empty(t, r.BookingReference)

	appts, err := f.svc.ListPatientAppointments(ctx)
	require.NoError(t, err)
	assert.Empty(t, appts)
}

func TestEngineUnknownPaymentMethodReprompts(t *testing.T) {
	f := newEngineFixture(t)
	ctx, _ := signedIn("Pat Doe", "pat@example.com")
	_, err := f.engine.Start(ctx, "s")
	require.NoError(t, err)

	r := f.say(t, ctx, "s", "book", "male", "5550102030", "toothache", "skip", "no", "none", "yes", "1", "bitcoin please")
	assert.Equal(t, StateAwaitingPaymentMethod, r.State)
	assert.Equal(t, []string{"Cash", "Card"}, r.Options)
	assert.Empty(t, f.session(t, "s").Context.PaymentMethod)

	r = f.say(t, ctx, "s", "cash")
	assert.Equal(t, StateAwaitingFinalConfirmation, r.State)
	assert.Contains(t, r.Message, "Payment: Cash")
}

func TestEngineUncertainPregnancyAnswerReprompts(t *testing.T) {
	f := newEngineFixture(t)
	ctx, _ := signedIn("Ana Ruiz", "ana@example.com")
	_, err := f.engine.Start(ctx, "s")
	require.NoError(t, err)

	r := f.say(t, ctx, "s", "book", "female", "I'm not sure")
	assert.Equal(t, StateAwaitingPregnancy, r.State)
	assert.Equal(t, stepPrompts[StepPregnancy].reprompt, r.Message)
	assert.Nil(t, f.session(t, "s").Context.IsPregnant)

	r = f.say(t, ctx, "s", "no, I'm not")
	assert.Equal(t, StateAwaitingPhone, r.State)
	require.NotNil(t, f.session(t, "s").Context.IsPregnant)
	assert.False(t, *f.session(t, "s").Context.IsPregnant)
}

func TestEngineStartKeepsAnotherUsersSession(t *testing.T) {
	f := newEngineFixture(t)
	owner, ownerUser := signedIn("Pat Doe", "pat@example.com")
	other, _ := signedIn("Eve", "eve@example.com")

	_, err := f.engine.Start(owner, "shared")
	require.NoError(t, err)
	f.say(t, owner, "shared", "book")

	r, err := f.engine.Start(other, "shared")
	require.NoError(t, err)
	assert.NotEqual(t, "shared", r.SessionID)
	assert.NotEmpty(t, r.SessionID)

	kept := f.session(t, "shared")
	assert.Equal(t, ownerUser.ID, kept.UserID)
	assert.Equal(t, StateAwaitingGender, kept.State)

	_, err = f.engine.Start(context.Background(), "shared")
	require.NoError(t, err)
	assert.Equal(t, ownerUser.ID, f.session(t, "shared").UserID, "guests cannot reset a signed-in session")

	again, err := f.engine.Start(owner, "shared")
	require.NoError(t, err)
	assert.Equal(t, "shared", again.SessionID)
	assert.Equal(t, StateAwaitingIntent, f.session(t, "shared").State)
}
