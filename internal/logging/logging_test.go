package logging

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		name  string
		level string
		want  zerolog.Level
	}{
		{"debug", "debug", zerolog.DebugLevel},
		{"warn upper case", "WARN", zerolog.WarnLevel},
		{"empty defaults to info", "", zerolog.InfoLevel},
		{"garbage defaults to info", "loud", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New("test", "prod", tt.level)
			assert.Equal(t, tt.want, logger.GetLevel())
		})
	}
}
