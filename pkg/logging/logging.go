// Package logging configures slog for the contract client and CLI and holds
// the attribute helpers they share.
package logging

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Logger is a slog.Logger with contract attribute helpers.
type Logger struct {
	*slog.Logger
}

// New wraps base. A nil base uses slog.Default().
func New(base *slog.Logger) *Logger {
	if base == nil {
		base = slog.Default()
	}
	return &Logger{Logger: base}
}

// Open creates a Logger writing to w. Format is "json" or anything else for
// logfmt text; unknown levels mean info.
func Open(level, format string, w io.Writer) *Logger {
	return New(slog.New(NewHandler(level, format, w)))
}

// NewHandler builds the handler behind Open.
func NewHandler(level, format string, w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// ParseLevel maps debug, info, warn (or warning) and error to a level.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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

func (l *Logger) with(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// WithContract adds the contract id.
func (l *Logger) WithContract(id string) *Logger { return l.with("contract_id", id) }

// WithParticipant adds a participant under key, shortened for display.
func (l *Logger) WithParticipant(key, participant string) *Logger {
	return l.with(key, Participant(participant))
}

// WithRequestID adds the request id sent in X-Request-Id.
func (l *Logger) WithRequestID(id string) *Logger { return l.with("request_id", id) }

// WithComponent adds a component name attribute.
func (l *Logger) WithComponent(name string) *Logger { return l.with("component", name) }

// WithError adds the error message.
func (l *Logger) WithError(err error) *Logger { return l.with("error", err.Error()) }

// Call records one API round trip. Failed calls log at warn.
func (l *Logger) Call(ctx context.Context, method, path string, status int, elapsed time.Duration) {
	level := slog.LevelDebug
	if status >= http.StatusInternalServerError {
		level = slog.LevelWarn
	}
	l.Log(ctx, level, "contract api call",
		"method", method,
		"path", path,
		"status", status,
		"duration_ms", elapsed.Milliseconds(),
	)
}

// Participant logs as its FormatParticipant form.
type Participant string

// LogValue implements slog.LogValuer.
func (p Participant) LogValue() slog.Value {
	return slog.StringValue(FormatParticipant(string(p)))
}

// FormatParticipant shortens long participant identifiers such as DIDs or
// URLs to their first and last characters.
func FormatParticipant(p string) string {
	if len(p) <= 32 {
		return p
	}
	return p[:20] + "..." + p[len(p)-8:]
}
