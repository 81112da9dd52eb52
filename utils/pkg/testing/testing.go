package dwtesting

import (
	"io"
	"log/slog"
)

// NewLogger returns a logger for tests that discards all output.
func NewLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}
