package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/hackgods/dental-booking/internal/booking"
)

// SQSAPI is the subset of the SQS client used by SQSDispatcher.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Event is the queue payload handed to downstream messaging workers.
type Event struct {
	Kind             booking.NotificationKind `json:"kind"`
	AppointmentID    string                   `json:"appointment_id"`
	BookingReference string                   `json:"booking_reference"`
	PatientID        string                   `json:"patient_id"`
	PatientEmail     string                   `json:"patient_email,omitempty"`
	PatientPhone     string                   `json:"patient_phone,omitempty"`
	ProviderID       string                   `json:"provider_id"`
	StartsAt         time.Time                `json:"starts_at"`
	OccurredAt       time.Time                `json:"occurred_at"`
}

// SQSDispatcher publishes booking events instead of mailing directly.
type SQSDispatcher struct {
	client   SQSAPI
	queueURL string
	now      func() time.Time
}

func NewSQSDispatcher(client SQSAPI, queueURL string) *SQSDispatcher {
	return &SQSDispatcher{client: client, queueURL: queueURL, now: time.Now}
}

func (d *SQSDispatcher) Notify(ctx context.Context, kind booking.NotificationKind, appt booking.Appointment) error {
	body, err := json.Marshal(Event{
		Kind:             kind,
		AppointmentID:    appt.ID.String(),
		BookingReference: appt.BookingReference,
		PatientID:        appt.PatientID.String(),
		PatientEmail:     appt.PatientEmail,
		PatientPhone:     appt.PatientPhone,
		ProviderID:       appt.ProviderID.String(),
		StartsAt:         appt.StartsAt,
		OccurredAt:       d.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("notify: marshal event: %w", err)
	}

	_, err = d.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(d.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"kind": {DataType: aws.String("String"), StringValue: aws.String(string(kind))},
		},
	})
	if err != nil {
		return fmt.Errorf("notify: failed to send SQS message: %w", err)
	}
	return nil
}

var _ booking.Notifier = (*SQSDispatcher)(nil)
