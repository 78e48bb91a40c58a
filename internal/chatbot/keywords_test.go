package chatbot

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hackgods/dental-booking/internal/booking"
)

func boolPtr(v bool) *bool       { return &v }
func strPtr(s string) *string    { return &s }
func genderPtr(g Gender) *string { s := string(g); return &s }

func TestNextStep(t *testing.T) {
	tests := []struct {
		name string
		ctx  Context
		want Step
	}{
		{"nothing collected", Context{}, StepGender},
		{"female asks pregnancy", Context{Gender: GenderFemale}, StepPregnancy},
		{"male skips pregnancy", Context{Gender: GenderMale}, StepPhone},
		{"female answered pregnancy", Context{Gender: GenderFemale, IsPregnant: boolPtr(false)}, StepPhone},
		{"symptoms next", Context{Gender: GenderOther, PatientPhone: "5550102030"}, StepSymptoms},
		{"history next", Context{Gender: GenderMale, PatientPhone: "5550102030", Symptoms: "pain"}, StepMedicalHistory},
		{"documents next", Context{
			Gender:         GenderMale,
			PatientPhone:   "5550102030",
			Symptoms:       "pain",
			MedicalHistory: strPtr("none"),
		}, StepDocuments},
		{"chronic diseases never skipped", Context{
			Gender:          GenderMale,
			PatientPhone:    "5550102030",
			Symptoms:        "pain",
			MedicalHistory:  strPtr("none"),
			WantsDocuments:  boolPtr(false),
			ChronicDiseases: strPtr(""),
		}, StepChronicDiseases},
		{"complete", Context{
			Gender:          GenderMale,
			PatientPhone:    "5550102030",
			Symptoms:        "pain",
			MedicalHistory:  strPtr("none"),
			WantsDocuments:  boolPtr(false),
			ChronicDiseases: strPtr("none"),
		}, StepComplete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextStep(tt.ctx))
		})
	}
}

func TestParseGender(t *testing.T) {
	tests := map[string]Gender{
		"female":            GenderFemale,
		"I'm a woman":       GenderFemale,
		"F":                 GenderFemale,
		"Male":              GenderMale,
		"m":                 GenderMale,
		"man":               GenderMale,
		"prefer not to say": GenderOther,
		"Other":             GenderOther,
	}
	for in, want := range tests {
		got, ok := ParseGender(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := ParseGender("banana")
	assert.False(t, ok)
}

func TestParseYesNo(t *testing.T) {
	v, ok := ParseYesNo("No, I'm not pregnant")
	assert.True(t, ok)
	assert.False(t, v)

	v, ok = ParseYesNo("yes I am pregnant")
	assert.True(t, ok)
	assert.True(t, v)

	v, ok = ParseYesNo("Y")
	assert.True(t, ok)
	assert.True(t, v)

	for _, hedged := range []string{"maybe later", "I'm not sure", "not that I know of, maybe", "no idea", "I might be"} {
		_, ok = ParseYesNo(hedged)
		assert.False(t, ok, hedged)
	}
}

func TestParsePhone(t *testing.T) {
	p, ok := ParsePhone("my number is +1 555 010 2030")
	assert.True(t, ok)
	assert.Equal(t, "+1 555 010 2030", p)

	p, ok = ParsePhone("(555) 010-2030 thanks")
	assert.True(t, ok)
	assert.Equal(t, "(555) 010-2030", p)

	_, ok = ParsePhone("call me at 12345")
	assert.False(t, ok)
	_, ok = ParsePhone("no phone")
	assert.False(t, ok)
}

func TestDetectSpecialization(t *testing.T) {
	tests := map[string]string{
		"my gums bleed when I brush": "Periodontist",
		"I want braces":              "Orthodontist",
		"terrible toothache":         "Endodontist",
		"wisdom teeth coming in":     "Oral Surgeon",
		"it's for my kid":            "Pediatric Dentist",
		"I need new dentures":        "Prosthodontist",
		"just a check-up":            SpecializationGeneral,
	}
	for in, want := range tests {
		assert.Equal(t, want, DetectSpecialization(in), in)
	}
}

func TestDetectIntent(t *testing.T) {
	tests := map[string]Intent{
		"I'd like to book an appointment": IntentBook,
		"Book an appointment":             IntentBook,
		"cancel my appointment please":    IntentCancel,
		"View dentists":                   IntentViewDentists,
		"Check my appointments":           IntentCheck,
		"When is my next visit?":          IntentCheck,
		"Ask a question":                  IntentQuestion,
		"How long does a cleaning take?":  IntentQuestion,
		"hello there":                     IntentUnknown,
	}
	for in, want := range tests {
		assert.Equal(t, want, DetectIntent(in), in)
	}
}

func TestParsePaymentMethod(t *testing.T) {
	tests := map[string]booking.PaymentMethod{
		"Credit card":      booking.PaymentCard,
		"debit":            booking.PaymentCard,
		"Cards":            booking.PaymentCard,
		"cash":             booking.PaymentCash,
		"I'll pay in cash": booking.PaymentCash,
	}
	for in, want := range tests {
		got, ok := ParsePaymentMethod(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"whatever", "bitcoin please", "cash or card"} {
		_, ok := ParsePaymentMethod(in)
		assert.False(t, ok, in)
	}
}

func TestIsConfirmation(t *testing.T) {
	for _, in := range []string{"Confirm", "yes please", "Yes, book it", "ok"} {
		assert.True(t, isConfirmation(in), in)
	}
	for _, in := range []string{"No, don't confirm yet", "not confirmed", "wait", "I'm not sure", "confirmation?", "Change something"} {
		assert.False(t, isConfirmation(in), in)
	}
}

func TestMenuRequest(t *testing.T) {
	assert.True(t, isMenuRequest("Menu"))
	assert.True(t, isMenuRequest("let's start over"))
	assert.True(t, isMenuRequest("cancel booking"))
	assert.False(t, isMenuRequest("female"))
}
