// Package chatbot runs the guided booking conversation. Extractors only fill
// fields of the conversation context; NextStep alone decides what is asked next.
package chatbot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/dental-booking/internal/auth"
	"github.com/hackgods/dental-booking/internal/booking"
	"github.com/hackgods/dental-booking/internal/llm"
	"github.com/hackgods/dental-booking/internal/metrics"
	"github.com/hackgods/dental-booking/internal/validation"
)

const (
	slotSearchDays  = 7
	maxOfferedSlots = 10

	clinicName = "AquaDent Clinic"
	slotLayout = "Mon, Jan 2 at 3:04 PM"
	whenLayout = "Monday, January 2 2006 at 3:04 PM"
)

// ErrSignInRequired is returned when a guest tries to commit a booking.
var ErrSignInRequired = errors.New("sign in required to book an appointment")

var menuOptions = []string{"Book an appointment", "Ask a question", "Check my appointments", "View dentists"}

// Booker is the part of the booking service the conversation drives.
type Booker interface {
	ListProviders(ctx context.Context) ([]booking.Provider, error)
	GetAvailableSlots(ctx context.Context, providerID uuid.UUID, date time.Time) ([]booking.TimeSlot, error)
	ReserveTimeSlot(ctx context.Context, slotID string) (*booking.Reservation, error)
	ConfirmReservation(ctx context.Context, reservationID uuid.UUID, d booking.BookingDetails) (*booking.Appointment, error)
	ListPatientAppointments(ctx context.Context) ([]booking.Appointment, error)
	Location() *time.Location
}

type Reply struct {
	SessionID        string   `json:"sessionId"`
	Message          string   `json:"message"`
	State            State    `json:"state"`
	Options          []string `json:"options,omitempty"`
	RequiresInput    bool     `json:"requiresInput"`
	AppointmentID    string   `json:"appointmentId,omitempty"`
	BookingReference string   `json:"bookingReference,omitempty"`
}

type Option func(*Engine)

// WithExtractor sets the AI extractor tried before the keyword handlers.
func WithExtractor(x Extractor) Option { return func(e *Engine) { e.extractor = x } }
func WithAnswerer(c llm.Client) Option { return func(e *Engine) { e.answerer = c } }
func WithLogger(l zerolog.Logger) Option { return func(e *Engine) { e.logger = l } }
func WithMetrics(m *metrics.ChatMetrics) Option { return func(e *Engine) { e.metrics = m } }
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

type Engine struct {
	booker    Booker
	directory *Directory
	sessions  SessionStore
	extractor Extractor
	answerer  llm.Client
	metrics   *metrics.ChatMetrics
	logger    zerolog.Logger
	now       func() time.Time
	locks     sessionLocks
}

func NewEngine(booker Booker, sessions SessionStore, opts ...Option) *Engine {
	e := &Engine{
		booker:    booker,
		directory: NewDirectory(booker),
		sessions:  sessions,
		logger:    zerolog.Nop(),
		now:       time.Now,
		locks:     sessionLocks{m: make(map[string]*sessionLock)},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start opens a conversation. An empty id, or one already bound to another
// user, gets a generated one. Signed-in users have their name and email
// filled in up front.
func (e *Engine) Start(ctx context.Context, sessionID string) (Reply, error) {
	if sessionID != "" {
		unlock := e.locks.lock(sessionID)
		defer unlock()

		existing, err := e.sessions.Get(ctx, sessionID)
		switch {
		case errors.Is(err, ErrSessionNotFound):
		case err != nil:
			return Reply{}, fmt.Errorf("chatbot: load session: %w", err)
		case !ownedBy(ctx, existing):
			e.logger.Warn().Str("session_id", sessionID).Msg("start requested for a session bound to another user")
			sessionID = ""
		}
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	now := e.now()
	sess := &Session{ID: sessionID, State: StateAwaitingIntent, CreatedAt: now}
	if user, ok := auth.UserFromContext(ctx); ok {
		sess.UserID = user.ID
		sess.Context.PatientName = user.Name
		sess.Context.PatientEmail = user.Email
	}

	greeting := fmt.Sprintf("Hi! Welcome to %s. How can I help you today?", clinicName)
	if name := firstWord(sess.Context.PatientName); name != "" {
		greeting = fmt.Sprintf("Hi %s! Welcome to %s. How can I help you today?", name, clinicName)
	}
	return e.persist(ctx, sess, Reply{Message: greeting, Options: menuOptions})
}

// HandleMessage advances the conversation by one patient message. The
// session is only saved when the turn succeeds.
func (e *Engine) HandleMessage(ctx context.Context, sessionID, text string) (Reply, error) {
	unlock := e.locks.lock(sessionID)
	defer unlock()

	sess, err := e.load(ctx, sessionID)
	if err != nil {
		return Reply{}, err
	}

	text = strings.TrimSpace(text)
	var reply Reply
	switch {
	case text == "":
		reply = Reply{Message: "Please type a message so I can help."}
	case isMenuRequest(text):
		resetConversation(sess)
		reply = Reply{Message: "Sure, let's start over. What would you like to do?", Options: menuOptions}
	default:
		reply, err = e.dispatch(ctx, sess, text)
		if err != nil {
			return Reply{}, err
		}
	}
	return e.persist(ctx, sess, reply)
}

func (e *Engine) load(ctx context.Context, sessionID string) (*Session, error) {
	sess, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !ownedBy(ctx, sess) {
		return nil, ErrSessionNotFound
	}
	if user, ok := auth.UserFromContext(ctx); ok && sess.UserID == uuid.Nil {
		sess.UserID = user.ID
		if sess.Context.PatientName == "" {
			sess.Context.PatientName = user.Name
		}
		if sess.Context.PatientEmail == "" {
			sess.Context.PatientEmail = user.Email
		}
	}
	return sess, nil
}

// ownedBy is true for guest sessions and for sessions bound to the caller.
func ownedBy(ctx context.Context, sess *Session) bool {
	if sess.UserID == uuid.Nil {
		return true
	}
	user, ok := auth.UserFromContext(ctx)
	return ok && user.ID == sess.UserID
}

func (e *Engine) persist(ctx context.Context, sess *Session, reply Reply) (Reply, error) {
	sess.UpdatedAt = e.now()
	if err := e.sessions.Save(ctx, sess); err != nil {
		return Reply{}, fmt.Errorf("chatbot: save session: %w", err)
	}
	reply.SessionID = sess.ID
	reply.State = sess.State
	reply.RequiresInput = sess.State != StateCompleted
	return reply, nil
}

func (e *Engine) dispatch(ctx context.Context, sess *Session, text string) (Reply, error) {
	switch sess.State {
	case StateGreeting, StateAwaitingIntent:
		return e.handleIntent(ctx, sess, text), nil
	case StateCompleted, StateError:
		resetConversation(sess)
		return e.handleIntent(ctx, sess, text), nil
	case StateAwaitingName:
		return e.handleName(ctx, sess, text), nil
	case StateAwaitingEmail:
		return e.handleEmail(ctx, sess, text), nil
	case StateAwaitingDentistConfirmation:
		return e.handleDentistConfirmation(ctx, sess, text), nil
	case StateAwaitingDateTime:
		return e.handleDateTime(sess, text), nil
	case StateAwaitingPaymentMethod:
		return e.handlePayment(sess, text), nil
	case StateAwaitingFinalConfirmation:
		return e.handleFinalConfirmation(ctx, sess, text)
	case StateAwaitingQuestion:
		return e.handleQuestion(ctx, sess, text), nil
	}
	if isIntakeState(sess.State) {
		return e.handleIntake(ctx, sess, text), nil
	}
	e.logger.Warn().Str("session_id", sess.ID).Str("state", string(sess.State)).Msg("unknown chat state; resetting")
	resetConversation(sess)
	return Reply{Message: "Let's start again. What would you like to do?", Options: menuOptions}, nil
}

func (e *Engine) handleIntent(ctx context.Context, sess *Session, text string) Reply {
	intent := DetectIntent(text)
	sess.Context.Intent = intent
	switch intent {
	case IntentBook:
		return e.beginBooking(ctx, sess, "")
	case IntentQuestion:
		sess.State = StateAwaitingQuestion
		if len(words(text)) > 3 {
			return Reply{Message: e.answerQuestion(ctx, text), Options: []string{"Book an appointment", "Menu"}}
		}
		return Reply{Message: "Of course. What would you like to know?"}
	case IntentCheck:
		sess.State = StateAwaitingIntent
		return e.listAppointments(ctx)
	case IntentCancel:
		sess.State = StateAwaitingIntent
		return Reply{
			Message: "You can cancel from your appointments page up to 1 hour before the scheduled time. " +
				"Is there anything else I can help with?",
			Options: menuOptions,
		}
	case IntentViewDentists:
		sess.State = StateAwaitingIntent
		return e.listDentists(ctx)
	}
	sess.State = StateAwaitingIntent
	return Reply{
		Message: "I can help you book an appointment, answer a question, check your appointments or show our dentists.",
		Options: menuOptions,
	}
}

func (e *Engine) beginBooking(ctx context.Context, sess *Session, prefix string) Reply {
	sess.Context.Intent = IntentBook
	switch {
	case sess.Context.PatientName == "":
		sess.State = StateAwaitingName
		return Reply{Message: prefix + "Great, let's get you booked. What's your full name?"}
	case sess.Context.PatientEmail == "":
		sess.State = StateAwaitingEmail
		return Reply{Message: prefix + "What email address should we send your confirmation to?"}
	}
	return e.askNext(ctx, sess, prefix, Extraction{})
}

func (e *Engine) handleName(ctx context.Context, sess *Session, text string) Reply {
	name := strings.Join(strings.Fields(text), " ")
	if len([]rune(name)) < 2 {
		return Reply{Message: "Please tell me your full name."}
	}
	sess.Context.PatientName = name
	return e.beginBooking(ctx, sess, fmt.Sprintf("Thanks, %s. ", firstWord(name)))
}

func (e *Engine) handleEmail(ctx context.Context, sess *Session, text string) Reply {
	email := strings.TrimSpace(text)
	if res := validation.ValidateEmail(email); !res.IsValid {
		return Reply{Message: "That email doesn't look right. Please enter an address like name@example.com."}
	}
	sess.Context.PatientEmail = email
	return e.beginBooking(ctx, sess, "")
}

// handleIntake runs one intake turn: AI extraction first, keyword handlers when
// the AI fails or leaves the current step unanswered.
func (e *Engine) handleIntake(ctx context.Context, sess *Session, text string) Reply {
	step := NextStep(sess.Context)
	updated, problems, ai := e.extract(ctx, text, sess.Context, step)
	sess.Context = updated

	if NextStep(updated) == step {
		sess.State = stateForStep(step)
		msg := stepPrompts[step].reprompt
		if len(problems) > 0 {
			msg = problems[0]
		}
		return Reply{Message: msg, Options: stepPrompts[step].options}
	}

	prefix := ""
	if step == StepSymptoms && updated.CauseIdentified != nil && !*updated.CauseIdentified {
		prefix = "No worries, our dentist will start with a general examination. "
	}
	return e.askNext(ctx, sess, prefix, ai)
}

// askNext moves to whatever NextStep says is missing. The AI's phrasing is
// used only when it was aiming at that same step.
func (e *Engine) askNext(ctx context.Context, sess *Session, prefix string, ai Extraction) Reply {
	next := NextStep(sess.Context)
	if next == StepComplete {
		return e.proposeDentist(ctx, sess, prefix)
	}
	sess.State = stateForStep(next)
	p := stepPrompts[next]
	question := p.question
	if ai.NextStep == next && strings.TrimSpace(ai.NextQuestion) != "" {
		question = strings.TrimSpace(ai.NextQuestion)
	}
	return Reply{Message: prefix + question, Options: p.options}
}

func (e *Engine) extract(ctx context.Context, text string, c Context, step Step) (Context, []string, Extraction) {
	var (
		ai       Extraction
		merged   = c
		problems []string
	)
	if e.extractor != nil {
		x, err := e.extractor.Extract(ctx, text, c, step)
		if err != nil {
			e.metrics.ObserveExtraction("llm", "error")
			e.logger.Warn().Err(err).Str("step", string(step)).Msg("ai extraction failed; using keyword handlers")
		} else {
			ai = x
			merged, problems = Merge(c, x)
			e.metrics.ObserveExtraction("llm", stepOutcome(merged, step))
		}
	}
	if NextStep(merged) != step {
		return merged, problems, ai
	}

	kw, _ := KeywordExtractor{}.Extract(ctx, text, merged, step)
	merged, kwProblems := Merge(merged, kw)
	e.metrics.ObserveExtraction("keyword", stepOutcome(merged, step))
	return merged, append(kwProblems, problems...), ai
}

func stepOutcome(c Context, step Step) string {
	if NextStep(c) == step {
		return "unresolved"
	}
	return "resolved"
}

func (e *Engine) proposeDentist(ctx context.Context, sess *Session, prefix string) Reply {
	c := &sess.Context
	sess.State = StateAwaitingDentistConfirmation
	if c.Specialization == "" {
		c.Specialization = DetectSpecialization(c.Symptoms)
	}

	p, ok, err := e.directory.Suggest(ctx, c.Specialization, c.RejectedDentists)
	if err != nil {
		e.logger.Error().Err(err).Str("session_id", sess.ID).Msg("load dentists")
		c.SuggestedDentist = nil
		return Reply{Message: prefix + booking.UserMessage(err) + " Reply 'yes' to try again.", Options: []string{"Yes"}}
	}
	if !ok {
		sess.State = StateAwaitingIntent
		c.SuggestedDentist = nil
		return Reply{
			Message: prefix + "Sorry, there are no other dentists available right now. Type 'menu' to start over.",
			Options: []string{"Menu"},
		}
	}

	c.SuggestedDentist = &p
	c.OfferedSlots = nil
	c.SelectedSlot = nil
	return Reply{
		Message: fmt.Sprintf("%sBased on what you told me, I recommend %s (%s, rated %.1f). Would you like to book with them?",
			prefix, p.Name, p.Specialization, p.Rating),
		Options: []string{"Yes, book", "Show another dentist"},
	}
}

func (e *Engine) handleDentistConfirmation(ctx context.Context, sess *Session, text string) Reply {
	c := &sess.Context
	if c.SuggestedDentist == nil {
		return e.proposeDentist(ctx, sess, "")
	}
	if containsAny(text, "another", "different", "someone else") || hasWord(text, "other") {
		c.RejectedDentists = append(c.RejectedDentists, c.SuggestedDentist.ID)
		return e.proposeDentist(ctx, sess, "")
	}
	yes, ok := ParseYesNo(text)
	switch {
	case containsAny(text, "book") || (ok && yes):
		return e.offerSlots(ctx, sess, "")
	case ok && !yes:
		c.RejectedDentists = append(c.RejectedDentists, c.SuggestedDentist.ID)
		return e.proposeDentist(ctx, sess, "")
	}
	return Reply{
		Message: fmt.Sprintf("Would you like to book with %s? Reply 'yes' or ask for another dentist.", c.SuggestedDentist.Name),
		Options: []string{"Yes, book", "Show another dentist"},
	}
}

// offerSlots lists the next open slots of the suggested dentist over the
// coming week.
func (e *Engine) offerSlots(ctx context.Context, sess *Session, prefix string) Reply {
	c := &sess.Context
	dentist := c.SuggestedDentist
	loc := e.booker.Location()
	today := e.now().In(loc)

	var offered []booking.TimeSlot
	for i := 0; i < slotSearchDays && len(offered) < maxOfferedSlots; i++ {
		slots, err := e.booker.GetAvailableSlots(ctx, dentist.ID, today.AddDate(0, 0, i))
		if err != nil {
			e.logger.Warn().Err(err).Str("provider_id", dentist.ID.String()).Msg("load slots for chat")
			if len(offered) == 0 {
				sess.State = StateAwaitingDentistConfirmation
				return Reply{Message: prefix + booking.UserMessage(err), Options: []string{"Yes, book", "Show another dentist"}}
			}
			break
		}
		for _, s := range slots {
			if s.IsAvailable && len(offered) < maxOfferedSlots {
				offered = append(offered, s)
			}
		}
	}

	if len(offered) == 0 {
		sess.State = StateAwaitingDentistConfirmation
		return Reply{
			Message: fmt.Sprintf("%s%s has no openings in the next %d days. Would you like to see another dentist?",
				prefix, dentist.Name, slotSearchDays),
			Options: []string{"Show another dentist", "Menu"},
		}
	}

	c.OfferedSlots = offered
	c.SelectedSlot = nil
	sess.State = StateAwaitingDateTime

	var b strings.Builder
	b.WriteString(prefix)
	fmt.Fprintf(&b, "Here are the next available times with %s:\n", dentist.Name)
	options := make([]string, 0, len(offered))
	for i, s := range offered {
		label := s.StartsAt.In(loc).Format(slotLayout)
		fmt.Fprintf(&b, "%d. %s\n", i+1, label)
		options = append(options, label)
	}
	b.WriteString("Reply with the number of the time you'd like.")
	return Reply{Message: b.String(), Options: options}
}

func (e *Engine) handleDateTime(sess *Session, text string) Reply {
	c := &sess.Context
	loc := e.booker.Location()

	idx := -1
	if n, err := strconv.Atoi(strings.TrimSuffix(firstWord(text), ".")); err == nil && n >= 1 && n <= len(c.OfferedSlots) {
		idx = n - 1
	} else {
		for i, s := range c.OfferedSlots {
			if strings.EqualFold(strings.TrimSpace(text), s.StartsAt.In(loc).Format(slotLayout)) {
				idx = i
				break
			}
		}
	}
	if idx < 0 {
		return Reply{Message: fmt.Sprintf("Please reply with a number from 1 to %d.", len(c.OfferedSlots))}
	}

	slot := c.OfferedSlots[idx]
	c.SelectedSlot = &slot
	sess.State = StateAwaitingPaymentMethod
	return Reply{
		Message: fmt.Sprintf("%s it is. How would you like to pay at the clinic? (Cash / Card)", slot.StartsAt.In(loc).Format(slotLayout)),
		Options: []string{"Cash", "Card"},
	}
}

func (e *Engine) handlePayment(sess *Session, text string) Reply {
	method, ok := ParsePaymentMethod(text)
	if !ok {
		return Reply{Message: "Please reply 'cash' or 'card' so we know how you'll pay at the clinic.", Options: []string{"Cash", "Card"}}
	}
	sess.Context.PaymentMethod = method
	sess.State = StateAwaitingFinalConfirmation
	return Reply{Message: e.summary(sess.Context), Options: []string{"Confirm", "Change something"}}
}

func (e *Engine) summary(c Context) string {
	var b strings.Builder
	b.WriteString("Please confirm your appointment:\n")
	if c.SuggestedDentist != nil {
		fmt.Fprintf(&b, "Dentist: %s (%s)\n", c.SuggestedDentist.Name, c.SuggestedDentist.Specialization)
	}
	if c.SelectedSlot != nil {
		fmt.Fprintf(&b, "When: %s\n", c.SelectedSlot.StartsAt.In(e.booker.Location()).Format(whenLayout))
	}
	fmt.Fprintf(&b, "Patient: %s (%s, %s)\n", c.PatientName, c.PatientEmail, c.PatientPhone)
	fmt.Fprintf(&b, "Concern: %s\n", c.Symptoms)
	if c.ChronicDiseases != nil {
		fmt.Fprintf(&b, "Chronic conditions: %s\n", *c.ChronicDiseases)
	}
	payment := "Cash"
	if c.PaymentMethod == booking.PaymentCard {
		payment = "Card"
	}
	fmt.Fprintf(&b, "Payment: %s\n", payment)
	b.WriteString("Reply 'confirm' to book, or tell me what you'd like to change.")
	return b.String()
}

func (e *Engine) handleFinalConfirmation(ctx context.Context, sess *Session, text string) (Reply, error) {
	if !isConfirmation(text) {
		sess.State = StateAwaitingIntent
		return Reply{Message: "No problem! What would you like to change?", Options: menuOptions}, nil
	}
	c := &sess.Context
	if c.SelectedSlot == nil {
		return e.offerSlots(ctx, sess, "Let's pick a time first. "), nil
	}
	if _, ok := auth.UserFromContext(ctx); !ok {
		e.metrics.ObserveCommit("sign_in_required")
		return Reply{}, ErrSignInRequired
	}

	res, err := e.booker.ReserveTimeSlot(ctx, c.SelectedSlot.ID)
	if err != nil {
		return e.commitFailed(ctx, sess, err)
	}
	appt, err := e.booker.ConfirmReservation(ctx, res.ID, bookingDetails(*c))
	if err != nil {
		return e.commitFailed(ctx, sess, err)
	}

	e.metrics.ObserveCommit("booked")
	e.logger.Info().
		Str("session_id", sess.ID).
		Str("appointment_id", appt.ID.String()).
		Msg("appointment booked from chat")

	c.AppointmentID = appt.ID.String()
	c.BookingReference = appt.BookingReference
	sess.State = StateCompleted

	msg := fmt.Sprintf("You're booked! Your reference is %s. We've sent the details to %s.",
		booking.FormatBookingReference(appt.BookingReference), c.PatientEmail)
	if c.WantsDocuments != nil && *c.WantsDocuments {
		msg += " You can upload your documents from your appointment page."
	}
	return Reply{Message: msg, AppointmentID: c.AppointmentID, BookingReference: appt.BookingReference}, nil
}

func (e *Engine) commitFailed(ctx context.Context, sess *Session, err error) (Reply, error) {
	switch booking.KindOf(err) {
	case booking.KindConflict:
		e.metrics.ObserveCommit("conflict")
		return e.offerSlots(ctx, sess, "Sorry, that time was just taken. "), nil
	case booking.KindUnauthenticated:
		e.metrics.ObserveCommit("sign_in_required")
		return Reply{}, ErrSignInRequired
	case booking.KindValidation:
		e.metrics.ObserveCommit("invalid")
		sess.State = StateError
		return Reply{Message: booking.UserMessage(err) + " Type 'menu' to start over.", Options: []string{"Menu"}}, nil
	}
	e.metrics.ObserveCommit("error")
	e.logger.Error().Err(err).Str("session_id", sess.ID).Msg("commit booking from chat")
	return Reply{Message: booking.UserMessage(err) + " Reply 'confirm' to try again.", Options: []string{"Confirm"}}, nil
}

func bookingDetails(c Context) booking.BookingDetails {
	d := booking.BookingDetails{
		PatientName:     c.PatientName,
		PatientEmail:    c.PatientEmail,
		Phone:           c.PatientPhone,
		Gender:          string(c.Gender),
		IsPregnant:      c.IsPregnant,
		Symptoms:        c.Symptoms,
		CauseIdentified: c.CauseIdentified,
		UncertaintyNote: c.UncertaintyNote,
		PaymentMethod:   c.PaymentMethod,
	}
	if c.MedicalHistory != nil {
		d.MedicalHistory = *c.MedicalHistory
	}
	if c.ChronicDiseases != nil {
		d.ChronicDiseases = *c.ChronicDiseases
	}
	return d
}

func (e *Engine) handleQuestion(ctx context.Context, sess *Session, text string) Reply {
	if DetectIntent(text) == IntentBook && containsAny(text, "book", "schedule") {
		return e.beginBooking(ctx, sess, "")
	}
	return Reply{Message: e.answerQuestion(ctx, text), Options: []string{"Book an appointment", "Menu"}}
}

func (e *Engine) listAppointments(ctx context.Context) Reply {
	if _, ok := auth.UserFromContext(ctx); !ok {
		return Reply{Message: "Please sign in to see your appointments.", Options: menuOptions}
	}
	appts, err := e.booker.ListPatientAppointments(ctx)
	if err != nil {
		return Reply{Message: booking.UserMessage(err), Options: menuOptions}
	}
	if len(appts) == 0 {
		return Reply{Message: "You don't have any appointments yet. Would you like to book one?", Options: menuOptions}
	}

	loc := e.booker.Location()
	var b strings.Builder
	b.WriteString("Your appointments:\n")
	for i, a := range appts {
		if i == 5 {
			fmt.Fprintf(&b, "...and %d more.\n", len(appts)-i)
			break
		}
		fmt.Fprintf(&b, "- %s (%s), ref %s\n", a.StartsAt.In(loc).Format(slotLayout), a.Status,
			booking.FormatBookingReference(a.BookingReference))
	}
	return Reply{Message: strings.TrimRight(b.String(), "\n"), Options: menuOptions}
}

func (e *Engine) listDentists(ctx context.Context) Reply {
	providers, err := e.booker.ListProviders(ctx)
	if err != nil {
		return Reply{Message: booking.UserMessage(err), Options: menuOptions}
	}
	if len(providers) == 0 {
		return Reply{Message: "No dentists are listed at the moment.", Options: menuOptions}
	}
	var b strings.Builder
	b.WriteString("Our dentists:\n")
	for _, p := range providers {
		fmt.Fprintf(&b, "- %s, %s (rated %.1f)\n", p.Name, p.Specialization, p.Rating)
	}
	return Reply{Message: strings.TrimRight(b.String(), "\n"), Options: menuOptions}
}

// resetConversation drops the booking in progress but keeps who the patient is.
func resetConversation(sess *Session) {
	sess.Context = Context{
		PatientName:  sess.Context.PatientName,
		PatientEmail: sess.Context.PatientEmail,
		PatientPhone: sess.Context.PatientPhone,
	}
	sess.State = StateAwaitingIntent
}

func firstWord(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}
	return ""
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// sessionLocks serializes turns of the same conversation.
type sessionLocks struct {
	mu sync.Mutex
	m  map[string]*sessionLock
}

func (l *sessionLocks) lock(id string) func() {
	l.mu.Lock()
	sl, ok := l.m[id]
	if !ok {
		sl = &sessionLock{}
		l.m[id] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.mu.Lock()
	return func() {
		sl.mu.Unlock()
		l.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(l.m, id)
		}
		l.mu.Unlock()
	}
}
