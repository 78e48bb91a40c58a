package chatbot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/hackgods/dental-booking/internal/llm"
	"github.com/hackgods/dental-booking/internal/validation"
)

const uncertaintyNote = "Patient was unsure of the cause; general examination recommended."

// Extraction is what one patient message contributed to the intake. Nil
// fields were not mentioned.
type Extraction struct {
	Gender           *string `json:"gender,omitempty"`
	IsPregnant       *bool   `json:"isPregnant,omitempty"`
	Phone            *string `json:"phone,omitempty"`
	Symptoms         *string `json:"symptoms,omitempty"`
	ChronicDiseases  *string `json:"chronicDiseases,omitempty"`
	MedicalHistory   *string `json:"medicalHistory,omitempty"`
	WantsDocuments   *bool   `json:"wantsDocuments,omitempty"`
	NextQuestion     string  `json:"nextQuestion,omitempty"`
	NextStep         Step    `json:"nextStep,omitempty"`
	AllInfoCollected bool    `json:"allInfoCollected,omitempty"`
}

type Extractor interface {
	Extract(ctx context.Context, msg string, c Context, step Step) (Extraction, error)
}

// Merge applies an extraction to the conversation context. Values that fail
// validation are dropped and reported as problems for the reprompt.
func Merge(c Context, e Extraction) (Context, []string) {
	var problems []string

	if e.Gender != nil && strings.TrimSpace(*e.Gender) != "" {
		if g, ok := ParseGender(*e.Gender); ok {
			c.Gender = g
		} else {
			problems = append(problems, stepPrompts[StepGender].reprompt)
		}
	}
	if e.IsPregnant != nil && c.Gender == GenderFemale {
		v := *e.IsPregnant
		c.IsPregnant = &v
	}
	if e.Phone != nil && strings.TrimSpace(*e.Phone) != "" {
		phone := strings.TrimSpace(*e.Phone)
		if res := validation.ValidatePhoneNumber(phone); res.IsValid {
			c.PatientPhone = phone
		} else {
			problems = append(problems, stepPrompts[StepPhone].reprompt)
		}
	}
	if e.Symptoms != nil && strings.TrimSpace(*e.Symptoms) != "" {
		symptoms := strings.TrimSpace(*e.Symptoms)
		if res := validation.ValidateSymptoms(symptoms); !res.IsValid {
			problems = append(problems, res.Message())
		} else {
			c.Symptoms = symptoms
			identified := !isUncertain(symptoms)
			c.CauseIdentified = &identified
			if identified {
				c.UncertaintyNote = ""
				c.Specialization = DetectSpecialization(symptoms)
			} else {
				c.UncertaintyNote = uncertaintyNote
				c.Specialization = SpecializationGeneral
			}
		}
	}
	if e.MedicalHistory != nil && strings.TrimSpace(*e.MedicalHistory) != "" {
		history := strings.TrimSpace(*e.MedicalHistory)
		if len([]rune(history)) > validation.MaxHistoryLength {
			problems = append(problems, validation.MsgHistoryTooLong)
		} else {
			c.MedicalHistory = &history
		}
	}
	if e.WantsDocuments != nil {
		v := *e.WantsDocuments
		c.WantsDocuments = &v
	}
	if e.ChronicDiseases != nil && strings.TrimSpace(*e.ChronicDiseases) != "" {
		chronic := strings.TrimSpace(*e.ChronicDiseases)
		c.ChronicDiseases = &chronic
	}
	return c, problems
}

// KeywordExtractor reads only the field the current step asks for.
type KeywordExtractor struct{}

func (KeywordExtractor) Extract(_ context.Context, msg string, _ Context, step Step) (Extraction, error) {
	var e Extraction
	text := strings.TrimSpace(msg)
	if text == "" {
		return e, nil
	}
	switch step {
	case StepGender:
		if g, ok := ParseGender(text); ok {
			s := string(g)
			e.Gender = &s
		}
	case StepPregnancy:
		if v, ok := ParseYesNo(text); ok {
			e.IsPregnant = &v
		}
	case StepPhone:
		if p, ok := ParsePhone(text); ok {
			e.Phone = &p
		}
	case StepSymptoms:
		e.Symptoms = &text
	case StepMedicalHistory:
		history := text
		if isSkip(text) && len(words(text)) <= 3 {
			history = "none"
		}
		e.MedicalHistory = &history
	case StepDocuments:
		if v, ok := ParseYesNo(text); ok {
			e.WantsDocuments = &v
		}
	case StepChronicDiseases:
		chronic := text
		if isNone(text) {
			chronic = "none"
		}
		e.ChronicDiseases = &chronic
	}
	return e, nil
}

var stepGuidance = map[Step]string{
	StepGender:          "Ask the patient's gender (male, female or other).",
	StepPregnancy:       "The patient is female. Ask whether she is currently pregnant.",
	StepPhone:           "Ask for a phone number.",
	StepSymptoms:        "Ask what dental concern or symptom brings them in.",
	StepMedicalHistory:  "Ask about medical history from previous dental visits. Optional, they may skip.",
	StepDocuments:       "Offer to upload documents such as X-rays after booking. Optional.",
	StepChronicDiseases: "Ask about chronic conditions such as diabetes or heart disease. Required.",
}

const extractorSystemPrompt = `You help a dental clinic collect patient intake details.
Extract only what the patient actually said and answer with one JSON object:
{
  "gender": "male" | "female" | "other" | null,
  "isPregnant": true | false | null,
  "phone": string | null,
  "symptoms": string | null,
  "chronicDiseases": string | null,
  "medicalHistory": string | null,
  "wantsDocuments": true | false | null,
  "nextStep": "gender" | "pregnancy" | "phone" | "symptoms" | "medical_history" | "documents" | "chronic_diseases" | "complete",
  "nextQuestion": "a short, friendly question for the next step",
  "allInfoCollected": true | false
}
The intake order is gender, pregnancy (female patients only), phone, symptoms,
medical history, documents, chronic diseases. Never invent values.`

// LLMExtractor asks a language model to pull intake fields from free text.
type LLMExtractor struct {
	client    llm.Client
	maxTokens int32
	logger    zerolog.Logger
}

func NewLLMExtractor(client llm.Client, logger zerolog.Logger) *LLMExtractor {
	return &LLMExtractor{client: client, maxTokens: 512, logger: logger}
}

func (x *LLMExtractor) Extract(ctx context.Context, msg string, c Context, step Step) (Extraction, error) {
	if x == nil || x.client == nil {
		return Extraction{}, errors.New("chatbot: no language model configured")
	}
	known, err := json.Marshal(intakeSnapshot(c))
	if err != nil {
		return Extraction{}, fmt.Errorf("chatbot: encode context: %w", err)
	}

	user := fmt.Sprintf("CURRENT STEP: %s\nGUIDANCE: %s\nPATIENT INFO SO FAR: %s\nPATIENT SAID: %q",
		step, stepGuidance[step], known, msg)
	resp, err := x.client.Complete(ctx, llm.Request{
		System:      []string{extractorSystemPrompt},
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: user}},
		MaxTokens:   x.maxTokens,
		Temperature: 0.2,
		JSON:        true,
	})
	if err != nil {
		return Extraction{}, err
	}
	return parseExtraction(resp.Text)
}

func parseExtraction(text string) (Extraction, error) {
	body := strings.TrimSpace(text)
	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(body, "```")
	body = strings.TrimSpace(body)
	if start, end := strings.Index(body, "{"), strings.LastIndex(body, "}"); start >= 0 && end > start {
		body = body[start : end+1]
	}

	var e Extraction
	if err := json.Unmarshal([]byte(body), &e); err != nil {
		return Extraction{}, fmt.Errorf("chatbot: decode extraction: %w", err)
	}
	return e, nil
}

// intakeSnapshot is the subset of the context the model needs to see.
func intakeSnapshot(c Context) map[string]any {
	out := map[string]any{}
	if c.Gender != "" {
		out["gender"] = c.Gender
	}
	if c.IsPregnant != nil {
		out["isPregnant"] = *c.IsPregnant
	}
	if c.PatientPhone != "" {
		out["phone"] = c.PatientPhone
	}
	if c.Symptoms != "" {
		out["symptoms"] = c.Symptoms
	}
	if c.MedicalHistory != nil {
		out["medicalHistory"] = *c.MedicalHistory
	}
	if c.WantsDocuments != nil {
		out["wantsDocuments"] = *c.WantsDocuments
	}
	if c.ChronicDiseases != nil {
		out["chronicDiseases"] = *c.ChronicDiseases
	}
	return out
}

var (
	_ Extractor = KeywordExtractor{}
	_ Extractor = (*LLMExtractor)(nil)
)
