package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/hackgods/dental-booking/internal/booking"
)

const whenLayout = "Monday, January 2 2006 at 3:04 PM"

// EmailNotifier mails the patient and, when configured, the clinic desk.
type EmailNotifier struct {
	sender      EmailSender
	clinicEmail string
	logger      zerolog.Logger
}

func NewEmailNotifier(sender EmailSender, clinicEmail string, logger zerolog.Logger) *EmailNotifier {
	return &EmailNotifier{sender: sender, clinicEmail: clinicEmail, logger: logger}
}

func (n *EmailNotifier) Notify(ctx context.Context, kind booking.NotificationKind, appt booking.Appointment) error {
	var errs []error

	if appt.PatientEmail != "" {
		if err := n.sender.Send(ctx, patientMessage(kind, appt)); err != nil {
			errs = append(errs, fmt.Errorf("patient email: %w", err))
		}
	} else {
		n.logger.Debug().Str("appointment_id", appt.ID.String()).Msg("no patient email on file")
	}

	if n.clinicEmail != "" {
		if err := n.sender.Send(ctx, clinicMessage(kind, appt, n.clinicEmail)); err != nil {
			errs = append(errs, fmt.Errorf("clinic email: %w", err))
		}
	}
	return errors.Join(errs...)
}

func patientMessage(kind booking.NotificationKind, appt booking.Appointment) EmailMessage {
	ref := booking.FormatBookingReference(appt.BookingReference)
	when := appt.StartsAt.Format(whenLayout)
	name := appt.PatientName
	if name == "" {
		name = "there"
	}

	var subject string
	var body strings.Builder
	fmt.Fprintf(&body, "Hi %s,\n\n", name)
	switch kind {
	case booking.NotifyBookingCancelled:
		subject = "Your appointment has been cancelled"
		fmt.Fprintf(&body, "Your appointment on %s (reference %s) has been cancelled.\n", when, ref)
	default:
		subject = "Appointment confirmed: " + ref
		fmt.Fprintf(&body, "Your appointment is booked for %s.\n", when)
		fmt.Fprintf(&body, "Booking reference: %s\n", ref)
		fmt.Fprintf(&body, "Payment: %s (%s)\n", appt.PaymentMethod, appt.PaymentStatus)
	}
	body.WriteString("\nAquaDent Clinic")

	return EmailMessage{To: appt.PatientEmail, ToName: appt.PatientName, Subject: subject, Body: body.String()}
}

func clinicMessage(kind booking.NotificationKind, appt booking.Appointment, to string) EmailMessage {
	ref := booking.FormatBookingReference(appt.BookingReference)
	var b strings.Builder
	fmt.Fprintf(&b, "Reference: %s\n", ref)
	fmt.Fprintf(&b, "Patient: %s <%s> %s\n", appt.PatientName, appt.PatientEmail, appt.PatientPhone)
	fmt.Fprintf(&b, "Dentist: %s\n", appt.ProviderID)
	fmt.Fprintf(&b, "When: %s\n", appt.StartsAt.Format(whenLayout))
	if appt.Symptoms != "" {
		fmt.Fprintf(&b, "Symptoms: %s\n", appt.Symptoms)
	}
	if appt.CancellationReason != nil {
		fmt.Fprintf(&b, "Reason: %s\n", *appt.CancellationReason)
	}

	subject := "New booking " + ref
	if kind == booking.NotifyBookingCancelled {
		subject = "Cancelled booking " + ref
	}
	return EmailMessage{To: to, Subject: subject, Body: b.String()}
}

// Multi fans out to several notifiers and joins their errors.
type Multi []booking.Notifier

func (m Multi) Notify(ctx context.Context, kind booking.NotificationKind, appt booking.Appointment) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, kind, appt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ booking.Notifier = (*EmailNotifier)(nil)
	_ booking.Notifier = Multi(nil)
)
