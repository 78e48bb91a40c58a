package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastRetry = RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, Multiplier: 2}

func TestRetryRecoversFromTransientError(t *testing.T) {
	calls := 0
	v, err := retry(context.Background(), fastRetry, func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("connection reset")
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsAfterMaxAttempts(t *testing.T) {
	calls := 0
	_, err := retry(context.Background(), fastRetry, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("connection reset")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryDoesNotRetryDomainErrors(t *testing.T) {
	calls := 0
	_, err := retry(context.Background(), fastRetry, func(context.Context) (int, error) {
		calls++
		return 0, ErrSlotConflict
	})

	assert.ErrorIs(t, err, ErrSlotConflict)
	assert.Equal(t, 1, calls)
}

func TestWithTimeoutAbortsSlowOperation(t *testing.T) {
	start := time.Now()
	_, err := withTimeout(context.Background(), 20*time.Millisecond, func(ctx context.Context) (int, error) {
		time.Sleep(time.Second)
		return 1, nil
	})

	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestWithTimeoutPassesResult(t *testing.T) {
	v, err := withTimeout(context.Background(), time.Second, func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestErrorUserMessage(t *testing.T) {
	err := wrapStorage("get", errors.New("pq: connection refused"))
	assert.Equal(t, KindUnavailable, KindOf(err))
	assert.Equal(t, msgTryAgain, UserMessage(err))
	assert.NotContains(t, UserMessage(err), "pq")

	conflict := wrapStorage("insert", ErrSlotConflict)
	assert.Equal(t, KindConflict, KindOf(conflict))
	assert.True(t, errors.Is(conflict, ErrSlotConflict))
	assert.Contains(t, UserMessage(conflict), "no longer available")

	assert.Equal(t, KindTimeout, KindOf(ErrTimeout))
}
