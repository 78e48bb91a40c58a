package chatbot

import (
	"github.com/google/uuid"

	"github.com/hackgods/dental-booking/internal/booking"
)

type State string

const (
	StateGreeting                    State = "greeting"
	StateAwaitingIntent              State = "awaiting_intent"
	StateAwaitingName                State = "awaiting_name"
	StateAwaitingEmail               State = "awaiting_email"
	StateAwaitingGender              State = "awaiting_gender"
	StateAwaitingPregnancy           State = "awaiting_pregnancy"
	StateAwaitingPhone               State = "awaiting_phone"
	StateAwaitingSymptom             State = "awaiting_symptom"
	StateAwaitingMedicalHistory      State = "awaiting_medical_history"
	StateAwaitingDocuments           State = "awaiting_documents"
	StateAwaitingChronicDiseases     State = "awaiting_chronic_diseases"
	StateAwaitingDentistConfirmation State = "awaiting_dentist_confirmation"
	StateAwaitingDateTime            State = "awaiting_date_time"
	StateAwaitingPaymentMethod       State = "awaiting_payment_method"
	StateAwaitingFinalConfirmation   State = "awaiting_final_confirmation"
	StateCompleted                   State = "completed"
	StateAwaitingQuestion            State = "awaiting_question"
	StateError                       State = "error"
)

// Step is the next piece of patient information the intake still needs.
type Step string

const (
	StepGender          Step = "gender"
	StepPregnancy       Step = "pregnancy"
	StepPhone           Step = "phone"
	StepSymptoms        Step = "symptoms"
	StepMedicalHistory  Step = "medical_history"
	StepDocuments       Step = "documents"
	StepChronicDiseases Step = "chronic_diseases"
	StepComplete        Step = "complete"
)

type Gender string

const (
	GenderFemale Gender = "female"
	GenderMale   Gender = "male"
	GenderOther  Gender = "other"
)

type Intent string

const (
	IntentBook         Intent = "book_appointment"
	IntentQuestion     Intent = "ask_question"
	IntentCheck        Intent = "check_appointment"
	IntentCancel       Intent = "cancel_appointment"
	IntentViewDentists Intent = "view_dentists"
	IntentUnknown      Intent = "unknown"
)

// Context is everything collected during one conversation. Pointer fields
// distinguish "not asked yet" from an explicit answer.
type Context struct {
	Intent Intent `json:"intent,omitempty"`

	PatientName  string `json:"patientName,omitempty"`
	PatientEmail string `json:"patientEmail,omitempty"`
	PatientPhone string `json:"patientPhone,omitempty"`

	Gender          Gender  `json:"gender,omitempty"`
	IsPregnant      *bool   `json:"isPregnant,omitempty"`
	Symptoms        string  `json:"symptoms,omitempty"`
	CauseIdentified *bool   `json:"causeIdentified,omitempty"`
	UncertaintyNote string  `json:"uncertaintyNote,omitempty"`
	MedicalHistory  *string `json:"medicalHistory,omitempty"`
	WantsDocuments  *bool   `json:"wantsDocuments,omitempty"`
	ChronicDiseases *string `json:"chronicDiseases,omitempty"`

	Specialization   string                `json:"specialization,omitempty"`
	SuggestedDentist *booking.Provider     `json:"suggestedDentist,omitempty"`
	RejectedDentists []uuid.UUID           `json:"rejectedDentists,omitempty"`
	OfferedSlots     []booking.TimeSlot    `json:"offeredSlots,omitempty"`
	SelectedSlot     *booking.TimeSlot     `json:"selectedSlot,omitempty"`
	PaymentMethod    booking.PaymentMethod `json:"paymentMethod,omitempty"`

	AppointmentID    string `json:"appointmentId,omitempty"`
	BookingReference string `json:"bookingReference,omitempty"`
}

// NextStep reports which intake question comes next. It depends only on
// what has been collected, never on what an extractor claims.
func NextStep(c Context) Step {
	switch {
	case c.Gender == "":
		return StepGender
	case c.Gender == GenderFemale && c.IsPregnant == nil:
		return StepPregnancy
	case c.PatientPhone == "":
		return StepPhone
	case c.Symptoms == "":
		return StepSymptoms
	case c.MedicalHistory == nil:
		return StepMedicalHistory
	case c.WantsDocuments == nil:
		return StepDocuments
	case c.ChronicDiseases == nil || *c.ChronicDiseases == "":
		return StepChronicDiseases
	}
	return StepComplete
}

func stateForStep(s Step) State {
	switch s {
	case StepGender:
		return StateAwaitingGender
	case StepPregnancy:
		return StateAwaitingPregnancy
	case StepPhone:
		return StateAwaitingPhone
	case StepSymptoms:
		return StateAwaitingSymptom
	case StepMedicalHistory:
		return StateAwaitingMedicalHistory
	case StepDocuments:
		return StateAwaitingDocuments
	case StepChronicDiseases:
		return StateAwaitingChronicDiseases
	}
	return StateAwaitingDentistConfirmation
}

func isIntakeState(s State) bool {
	switch s {
	case StateAwaitingGender, StateAwaitingPregnancy, StateAwaitingPhone, StateAwaitingSymptom,
		StateAwaitingMedicalHistory, StateAwaitingDocuments, StateAwaitingChronicDiseases:
		return true
	}
	return false
}

type prompt struct {
	question string
	reprompt string
	options  []string
}

var stepPrompts = map[Step]prompt{
	StepGender: {
		question: "Could you tell me your gender? (Male / Female / Other)",
		reprompt: "Sorry, I didn't catch that. Please answer Male, Female or Other.",
		options:  []string{"Male", "Female", "Other"},
	},
	StepPregnancy: {
		question: "Are you currently pregnant? Some treatments and X-rays depend on it.",
		reprompt: "Please answer Yes or No: are you currently pregnant?",
		options:  []string{"Yes", "No"},
	},
	StepPhone: {
		question: "What's the best phone number to reach you?",
		reprompt: "That doesn't look like a phone number. Please enter 10 to 15 digits.",
	},
	StepSymptoms: {
		question: "What dental concern or symptom would you like us to look at?",
		reprompt: "Could you describe your concern in a few words? For example: tooth pain, bleeding gums, braces.",
	},
	StepMedicalHistory: {
		question: "Is there any medical history from previous dental visits we should know about? You can type 'skip'.",
		reprompt: "Please share any relevant history, or type 'skip'.",
		options:  []string{"Skip"},
	},
	StepDocuments: {
		question: "Would you like to upload documents such as X-rays after booking? (Yes / No)",
		reprompt: "Please answer Yes or No: would you like to upload documents?",
		options:  []string{"Yes", "No"},
	},
	StepChronicDiseases: {
		question: "Do you have any chronic conditions such as diabetes, heart disease or a bleeding disorder? This is important for your treatment. Type 'none' if you have none.",
		reprompt: "Please list any chronic conditions, or type 'none'. We can't skip this one.",
		options:  []string{"None"},
	},
}
