package internal

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewLogger_Levels(t *testing.T) {
	testCases := []struct {
		level    string
		expected zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"unknown", zerolog.InfoLevel},
	}
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	for _, tc := range testCases {
		t.Run(tc.level, func(t *testing.T) {
			_ = newLogger(LoggerConfig{Level: tc.level}, &bytes.Buffer{})
			assert.Equal(t, tc.expected, zerolog.GlobalLevel())
		})
	}
}

func TestNewLogger_Output(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	var buf bytes.Buffer
	log := newLogger(LoggerConfig{Level: "info"}, &buf)
	log.Debug().Msg("hidden")
	log.Info().Str("portfolio_id", "P1").Msg("loaded")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"portfolio_id":"P1"`)
	assert.Contains(t, out, `"message":"loaded"`)
}
