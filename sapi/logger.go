package sapi

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with SAPI-specific helpers so that connections,
// embedders and composites log with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler.  A nil handler means a
// text handler on standard error at info level.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that writes human-readable lines to w.
func NewTextLogger(w io.Writer, level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewJSONLogger creates a Logger that writes JSON records to w.
func NewJSONLogger(w io.Writer, level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000),
	}))
}

// WithSolver adds a solver field.
func (l *Logger) WithSolver(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("solver", name),
	}
}

// LogEmbedding logs the outcome of an embedding search.
func (l *Logger) LogEmbedding(ctx context.Context, variables, qubits int, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "embedding failed",
			"variables", variables,
			"elapsed", elapsed,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "embedding found",
		"variables", variables,
		"qubits", qubits,
		"elapsed", elapsed,
	)
}

// LogSubmit logs a problem submission.
func (l *Logger) LogSubmit(ctx context.Context, id, problemType string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "submit failed",
			"type", problemType,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "problem submitted",
		"id", id,
		"type", problemType,
	)
}

// LogSample logs a completed sampling call.
func (l *Logger) LogSample(ctx context.Context, label string, reads int, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "sampling failed",
			"label", label,
			"reads", reads,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "sampling completed",
		"label", label,
		"reads", reads,
		"elapsed", elapsed,
	)
}
