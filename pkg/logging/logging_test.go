package logging

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLogLevel(tt.input), tt.input)
	}
}

func TestConfigureGlobalLogging(t *testing.T) {
	ConfigureGlobalLogging("warn")
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	ConfigureGlobalLogging("debug")
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}
