package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"info", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestZapAdapter_FieldsAreOrderedAndErrorsNamed(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapAdapter(zap.New(core))

	log.WithFields(map[string]interface{}{"component": "fanout"}).Info("batch committed", map[string]interface{}{
		"zeta":  1,
		"alpha": "a",
		"cause": errors.New("boom"),
	})

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "batch committed", entry.Message)

	ctx := entry.ContextMap()
	assert.Equal(t, "fanout", ctx["component"])
	assert.Equal(t, "a", ctx["alpha"])
	assert.Equal(t, "boom", ctx["cause"])

	var keys []string
	for _, f := range entry.Context {
		keys = append(keys, f.Key)
	}
	assert.Equal(t, []string{"component", "alpha", "cause", "zeta"}, keys)
}

func TestWithError(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapAdapter(zap.New(core)).WithError(errors.New("store down"))

	log.Warn("retrying", nil)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "store down", logs.All()[0].ContextMap()["error"])
}

func TestNewWithOutput_BadPathFallsBack(t *testing.T) {
	l := NewWithOutput("info", "json", "/nonexistent-dir/for/sure/app.log")
	require.NotNil(t, l)
	l.Info("still logging")
}
