package booking

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
)

const (
	referenceAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	referenceLength      = 8
	referenceMaxAttempts = 10
)

var errReferenceExhausted = errors.New("could not generate a unique booking reference")

func randomReference() (string, error) {
	var b strings.Builder
	b.Grow(referenceLength)
	max := big.NewInt(int64(len(referenceAlphabet)))
	for i := 0; i < referenceLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(referenceAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// GenerateBookingReference returns an unused 8 character reference.
func (s *Service) GenerateBookingReference(ctx context.Context) (string, error) {
	const op = "booking.GenerateBookingReference"
	for i := 0; i < referenceMaxAttempts; i++ {
		ref, err := randomReference()
		if err != nil {
			return "", newError(KindInternal, op, msgTryAgain, err)
		}
		exists, err := retry(ctx, s.cfg.Retry, func(ctx context.Context) (bool, error) {
			return s.repo.BookingReferenceExists(ctx, ref)
		})
		if err != nil {
			return "", wrapStorage(op, err)
		}
		if !exists {
			return ref, nil
		}
	}
	return "", newError(KindInternal, op, msgTryAgain, errReferenceExhausted)
}

// FormatBookingReference renders ABCD1234 as ABCD-1234.
func FormatBookingReference(ref string) string {
	if len(ref) != referenceLength {
		return ref
	}
	return ref[:4] + "-" + ref[4:]
}
