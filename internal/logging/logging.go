// Package logging builds the slog loggers used for warnings and diagnostics.
// User-facing status lines are printed directly by the commands; this logger
// carries per-item warnings (skipped gallery files, failed probes, render
// errors) with the file and reason attached as attributes.
package logging

import (
	"io"
	"log/slog"
)

// New returns a text logger writing to w. Debug records are emitted only when
// verbose is set.
func New(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewNop returns a logger that discards everything.
func NewNop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Component tags a logger with the component name. A nil logger becomes a no-op.
func Component(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(slog.String("component", component))
}

// Error formats an error attribute.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}
