package booking

import (
	"context"
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation      Kind = "validation"
	KindConflict        Kind = "conflict"
	KindUnauthenticated Kind = "unauthenticated"
	KindForbidden       Kind = "forbidden"
	KindNotFound        Kind = "not_found"
	KindTimeout         Kind = "timeout"
	KindUnavailable     Kind = "unavailable"
	KindInternal        Kind = "internal"
)

var (
	ErrValidation              = errors.New("validation failed")
	ErrSlotConflict            = errors.New("slot already booked or reserved")
	ErrLockBusy                = errors.New("slot is currently being booked")
	ErrUnauthenticated         = errors.New("authentication required")
	ErrForbidden               = errors.New("not allowed for this user")
	ErrAppointmentNotFound     = errors.New("appointment not found")
	ErrReservationNotFound     = errors.New("reservation not found")
	ErrProviderNotFound        = errors.New("provider not found")
	ErrReservationExpired      = errors.New("reservation expired")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrTimeout                 = errors.New("operation timed out")
	ErrStorageUnavailable      = errors.New("storage unavailable")
	ErrInvalidSlotID           = errors.New("invalid slot id")
)

const msgTryAgain = "Something went wrong on our side. Please try again."

// Error is returned by every Service operation that fails. Message is safe to
// show to patients; Error() keeps the internal chain for logs.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// UserMessage hides infrastructure detail behind a generic retry hint.
func (e *Error) UserMessage() string {
	switch e.Kind {
	case KindValidation, KindConflict, KindUnauthenticated, KindForbidden, KindNotFound:
		if e.Message != "" {
			return e.Message
		}
	case KindTimeout:
		return "The request took too long. Please try again."
	}
	return msgTryAgain
}

func newError(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// KindOf classifies err. Unknown errors are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidSlotID):
		return KindValidation
	case errors.Is(err, ErrSlotConflict), errors.Is(err, ErrLockBusy),
		errors.Is(err, ErrReservationExpired), errors.Is(err, ErrInvalidStatusTransition):
		return KindConflict
	case errors.Is(err, ErrUnauthenticated):
		return KindUnauthenticated
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrAppointmentNotFound), errors.Is(err, ErrReservationNotFound),
		errors.Is(err, ErrProviderNotFound):
		return KindNotFound
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ErrStorageUnavailable):
		return KindUnavailable
	}
	return KindInternal
}

// UserMessage returns the patient-facing text for any error.
func UserMessage(err error) string {
	var be *Error
	if errors.As(err, &be) {
		return be.UserMessage()
	}
	return (&Error{Kind: KindOf(err)}).UserMessage()
}

// wrapStorage turns a failed storage call into a typed error, keeping known
// domain kinds and hiding everything else behind "try again".
func wrapStorage(op string, err error) error {
	var be *Error
	if errors.As(err, &be) {
		return err
	}
	switch kind := KindOf(err); kind {
	case KindInternal:
		return newError(KindUnavailable, op, msgTryAgain, fmt.Errorf("%w: %v", ErrStorageUnavailable, err))
	case KindTimeout:
		return newError(KindTimeout, op, "", fmt.Errorf("%w: %v", ErrTimeout, err))
	default:
		return newError(kind, op, friendly(err), err)
	}
}

func friendly(err error) string {
	switch {
	case errors.Is(err, ErrAppointmentNotFound):
		return "Appointment not found."
	case errors.Is(err, ErrReservationNotFound):
		return "Reservation not found. Please select a time again."
	case errors.Is(err, ErrProviderNotFound):
		return "Dentist not found."
	case errors.Is(err, ErrReservationExpired):
		return "Your reservation has expired. Please select a time again."
	case errors.Is(err, ErrSlotConflict):
		return "This time slot is no longer available. Please choose another time."
	case errors.Is(err, ErrInvalidStatusTransition):
		return "This appointment can no longer be changed."
	}
	return ""
}
