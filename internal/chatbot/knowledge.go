package chatbot

import (
	"context"
	"strings"

	"github.com/hackgods/dental-booking/internal/llm"
)

var faq = []struct {
	keywords []string
	answer   string
}{
	{[]string{"hour", "open", "close"}, "We see patients Monday to Friday from 9 AM to 5 PM, and Saturday mornings by appointment."},
	{[]string{"cost", "price", "fee", "pay", "insurance"}, "Consultations start at a standard fee and treatment is quoted after the exam. We accept cash and card, and most major insurers."},
	{[]string{"cancel", "reschedule"}, "You can cancel from your appointments page up to 1 hour before the scheduled time."},
	{[]string{"x-ray", "xray", "document", "upload"}, "After booking you can upload X-rays or reports (PDF or images up to 10MB each) from your appointment page."},
	{[]string{"pregnan"}, "Let your dentist know if you are pregnant. Routine cleanings are safe, and X-rays are only taken when necessary with shielding."},
	{[]string{"emergency", "bleeding", "swelling", "severe"}, "For severe pain, swelling or bleeding that won't stop, call the clinic right away or visit the nearest emergency room."},
	{[]string{"brush", "floss", "clean"}, "Brush twice a day with fluoride toothpaste, floss daily, and book a check-up and cleaning every six months."},
}

const defaultAnswer = "I'm not sure about that one. Our front desk can help, or type 'book' to schedule a visit with one of our dentists."

const answerSystemPrompt = `You are the assistant of a dental clinic. Answer patient questions briefly and kindly
in plain language. Do not diagnose. For urgent symptoms advise calling the clinic.
If the patient wants to book, tell them to type 'book'.`

func cannedAnswer(question string) string {
	for _, item := range faq {
		if containsAny(question, item.keywords...) {
			return item.answer
		}
	}
	return defaultAnswer
}

// answerQuestion prefers the language model and falls back to the FAQ table.
func (e *Engine) answerQuestion(ctx context.Context, question string) string {
	if e.answerer == nil {
		return cannedAnswer(question)
	}
	resp, err := e.answerer.Complete(ctx, llm.Request{
		System:      []string{answerSystemPrompt},
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: question}},
		MaxTokens:   400,
		Temperature: 0.5,
	})
	if err != nil || strings.TrimSpace(resp.Text) == "" {
		e.logger.Warn().Err(err).Msg("answer from language model failed; using faq")
		return cannedAnswer(question)
	}
	return strings.TrimSpace(resp.Text)
}
