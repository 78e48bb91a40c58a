package timeutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTime(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"09:00:00", 540},
		{"12:30:00", 750},
		{"23:59:00", 1439},
		{"00:00", 0},
		{"10:15", 615},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTime(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTimeRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "9", "ab:cd", "24:00", "10:60", "10:00:99", "1:2:3:4"} {
		_, err := ParseTime(in)
		assert.ErrorIs(t, err, ErrMalformedTime, in)
	}
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "09:00", FormatClock(540))
	assert.Equal(t, "23:59", FormatClock(1439))
	assert.Equal(t, "00:05", FormatClock(5))
}
