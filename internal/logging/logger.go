package logging

import (
	"io"
	"log/slog"
	"os"
)

const serviceName = "connectivity-monitor"

// New creates a process logger with JSON output on stdout and installs it as
// the slog default so library code without an injected logger agrees.
func New(level slog.Level) *slog.Logger {
	logger := NewWithWriter(os.Stdout, level)
	slog.SetDefault(logger)
	return logger
}

// NewWithWriter builds the same JSON logger on top of w.
func NewWithWriter(w io.Writer, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With("service", serviceName)
}
