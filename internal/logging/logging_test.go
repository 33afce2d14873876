package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNewProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "production", "info")

	log.Info("hello", RequestID("abc"), UserID(7))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, "abc", line[KeyRequestID])
	assert.Equal(t, float64(7), line[KeyUserID])
}

func TestNewDevelopmentWritesText(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "development", "warn")

	log.Info("dropped")
	log.Warn("kept", Operation("ListTasks"), Err(errors.New("boom")))

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "op=ListTasks")
	assert.Contains(t, out, "error=boom")
}

func TestErrNilIsOmitted(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "", "info")

	log.Info("ok", Err(nil))
	assert.NotContains(t, buf.String(), KeyError)
}
