package chatbot

import (
	"strings"
	"unicode"

	"github.com/hackgods/dental-booking/internal/booking"
	"github.com/hackgods/dental-booking/internal/validation"
)

const SpecializationGeneral = "General Dentistry"

// Checked in order; the first group with a matching keyword wins.
var specializationKeywords = []struct {
	specialization string
	keywords       []string
}{
	{"Periodontist", []string{"gum pain", "bleeding gums", "swollen gums", "gum disease", "gums bleed", "gum"}},
	{"Orthodontist", []string{"crooked teeth", "braces", "alignment", "overbite", "underbite", "aligner"}},
	{"Endodontist", []string{"tooth pain", "toothache", "root canal", "tooth infection", "abscess"}},
	{"Oral Surgeon", []string{"wisdom teeth", "wisdom tooth", "tooth extraction", "extraction", "jaw pain", "impacted tooth"}},
	{"Pediatric Dentist", []string{"child", "kid", "baby teeth", "son", "daughter"}},
	{"Prosthodontist", []string{"dentures", "denture", "crown", "bridge", "implant"}},
}

var intentKeywords = []struct {
	intent   Intent
	keywords []string
}{
	{IntentCancel, []string{"cancel", "delete", "remove appointment", "don't want"}},
	{IntentViewDentists, []string{"dentists", "list dentist", "view available"}},
	{IntentCheck, []string{"check", "my appointment", "when is", "appointment status", "view"}},
	{IntentBook, []string{"book", "appointment", "schedule", "reserve", "visit", "see dentist", "see a dentist", "need dentist", "need a dentist"}},
	{IntentQuestion, []string{"question", "ask", "help", "what", "how", "why", "tell me", "?"}},
}

var menuKeywords = []string{"menu", "start over", "cancel booking", "restart"}

var uncertainKeywords = []string{"don't know", "dont know", "do not know", "not sure", "unsure", "no idea"}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.ReplaceAll(s, "’", "'")
}

func words(s string) []string {
	return strings.FieldsFunc(normalize(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '\''
	})
}

func hasWord(s string, candidates ...string) bool {
	for _, w := range words(s) {
		for _, c := range candidates {
			if w == c {
				return true
			}
		}
	}
	return false
}

func containsAny(s string, keywords ...string) bool {
	s = normalize(s)
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func DetectIntent(msg string) Intent {
	for _, group := range intentKeywords {
		if containsAny(msg, group.keywords...) {
			return group.intent
		}
	}
	return IntentUnknown
}

func isMenuRequest(msg string) bool {
	m := normalize(msg)
	for _, k := range menuKeywords {
		if m == k || strings.Contains(m, k) {
			return true
		}
	}
	return false
}

// ParseGender matches whole words so "female" is never read as "male".
func ParseGender(msg string) (Gender, bool) {
	if containsAny(msg, "prefer not", "non-binary", "nonbinary") || hasWord(msg, "other") {
		return GenderOther, true
	}
	if hasWord(msg, "female", "woman", "girl", "f", "lady") {
		return GenderFemale, true
	}
	if hasWord(msg, "male", "man", "boy", "m", "guy") {
		return GenderMale, true
	}
	return "", false
}

var hedgeWords = []string{"maybe", "perhaps", "possibly", "probably", "might"}

// ParseYesNo reports the answer and whether one was given. Hedged answers
// such as "not sure" are unrecognized rather than a no. Negatives are
// checked before positives so "not pregnant" is a no.
func ParseYesNo(msg string) (bool, bool) {
	if isUncertain(msg) || hasWord(msg, hedgeWords...) {
		return false, false
	}
	if hasWord(msg, "no", "nope", "not", "n", "nah", "negative") {
		return false, true
	}
	if hasWord(msg, "yes", "yeah", "yep", "y", "pregnant", "sure", "ok", "okay") {
		return true, true
	}
	return false, false
}

// ParsePhone pulls a phone number out of free text. The second result is
// false when no 10 to 15 digit number is present.
func ParsePhone(msg string) (string, bool) {
	var b strings.Builder
	started := false
scan:
	for _, r := range msg {
		switch {
		case unicode.IsDigit(r):
			started = true
			b.WriteRune(r)
		case (r == '+' || r == '(') && !started:
			started = true
			b.WriteRune(r)
		case started && (r == ' ' || r == '-' || r == '(' || r == ')' || r == '.'):
			b.WriteRune(r)
		case started:
			break scan
		}
	}
	phone := strings.TrimSpace(b.String())
	if phone == "" || !validation.ValidatePhoneNumber(phone).IsValid {
		return "", false
	}
	return phone, true
}

func isUncertain(msg string) bool {
	return normalize(msg) == "unknown" || containsAny(msg, uncertainKeywords...)
}

// DetectSpecialization maps a symptom description to a specialization,
// defaulting to general dentistry.
func DetectSpecialization(symptoms string) string {
	for _, group := range specializationKeywords {
		for _, k := range group.keywords {
			if hasPhrase(symptoms, k) {
				return group.specialization
			}
		}
	}
	return SpecializationGeneral
}

// hasPhrase matches single-word keywords as whole words or plural forms and
// multi-word keywords as substrings.
func hasPhrase(s, keyword string) bool {
	if strings.Contains(keyword, " ") {
		return strings.Contains(normalize(s), keyword)
	}
	for _, w := range words(s) {
		if w == keyword || w == keyword+"s" {
			return true
		}
	}
	return false
}

// ParsePaymentMethod accepts cash or card. Anything else, or a message
// naming both, is unrecognized.
func ParsePaymentMethod(msg string) (booking.PaymentMethod, bool) {
	card := hasPhrase(msg, "card") || hasWord(msg, "credit", "debit")
	cash := hasWord(msg, "cash")
	switch {
	case card && !cash:
		return booking.PaymentCard, true
	case cash && !card:
		return booking.PaymentCash, true
	}
	return "", false
}

var negationWords = []string{"no", "not", "don't", "dont", "nope", "nah", "wait", "never", "cancel", "change"}

// isConfirmation is true only for an unhedged yes. Any negation wins.
func isConfirmation(msg string) bool {
	if hasWord(msg, negationWords...) || isUncertain(msg) || hasWord(msg, hedgeWords...) {
		return false
	}
	return hasWord(msg, "yes", "yeah", "yep", "y", "confirm", "confirmed", "ok", "okay", "sure", "book")
}

func isSkip(msg string) bool {
	return hasWord(msg, "skip", "no", "none", "nothing", "nope", "n/a", "na")
}

func isNone(msg string) bool {
	return hasWord(msg, "none", "no", "nothing", "nope", "n/a", "na") && len(words(msg)) <= 3
}
