// Package logging builds the process logger and holds the attribute keys
// shared by the HTTP layer, the store, and the agent tools.
package logging

import (
	"io"
	"log/slog"
	"strings"
)

const (
	KeyRequestID = "request_id"
	KeyOperation = "op"
	KeyTool      = "tool"
	KeyUserID    = "user_id"
	KeyAttempt   = "attempt"
	KeyError     = "error"
)

// New returns a JSON logger in production and a text logger otherwise.
func New(w io.Writer, environment, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(environment, "production") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel maps debug, info, warn and error to slog levels. Anything
// else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard is a logger for tests and for callers that pass no logger.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func RequestID(id string) slog.Attr {
	return slog.String(KeyRequestID, id)
}

func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

func Tool(name string) slog.Attr {
	return slog.String(KeyTool, name)
}

func UserID(id int64) slog.Attr {
	return slog.Int64(KeyUserID, id)
}

// Err returns an empty attribute for a nil error, which slog drops.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
