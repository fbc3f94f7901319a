package flowgrid

import (
	"io"
	"log/slog"
)

// noopLogger is the default: a library should be silent unless the caller
// opts in via WithLogger.
var noopLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// NewLogger creates a structured logger from the given handler for use with
// WithLogger. If handler is nil the logger discards everything.
func NewLogger(handler slog.Handler) *slog.Logger {
	if handler == nil {
		return noopLogger
	}
	return slog.New(handler)
}
