package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		in   string
		want LogLevel
	}{
		{"debug", DebugLevel},
		{"DEBUG", DebugLevel},
		{"info", InfoLevel},
		{"warn", WarnLevel},
		{"warning", WarnLevel},
		{" error ", ErrorLevel},
		{"", InfoLevel},
		{"verbose", InfoLevel},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, ParseLevel(tc.in), tc.in)
	}
}

func TestZerologAdapter(t *testing.T) {
	testCases := []struct {
		scenario string
		fn       func(t *testing.T)
	}{
		{
			scenario: "fields and component are written",
			fn: func(t *testing.T) {
				var buf bytes.Buffer
				log := NewZerolog(&buf, DebugLevel)
				log.Info("Pipeline", "stage finished", map[string]interface{}{"stage": "hand"})

				var entry map[string]interface{}
				require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
				assert.Equal(t, "info", entry["level"])
				assert.Equal(t, "Pipeline", entry["component"])
				assert.Equal(t, "hand", entry["stage"])
				assert.Equal(t, "stage finished", entry["message"])
			},
		},
		{
			scenario: "errors carry the error text",
			fn: func(t *testing.T) {
				var buf bytes.Buffer
				log := NewZerolog(&buf, InfoLevel)
				log.Error("Server", errors.New("boom"), nil)

				var entry map[string]interface{}
				require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
				assert.Equal(t, "error", entry["level"])
				assert.Equal(t, "boom", entry["error"])
			},
		},
		{
			scenario: "entries below the level are dropped",
			fn: func(t *testing.T) {
				var buf bytes.Buffer
				log := NewZerolog(&buf, WarnLevel)
				log.Debug("Pipeline", "noise", nil)
				log.Info("Pipeline", "noise", nil)
				assert.Zero(t, buf.Len())

				log.Warning("Pipeline", "kept", nil)
				assert.NotZero(t, buf.Len())
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.scenario, tc.fn)
	}
}
