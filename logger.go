package chunkagg

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with chunkagg-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
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

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output. This is the
// default: a library should stay quiet unless asked.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithOp adds the reduction op field to the logger.
func (l *Logger) WithOp(op string) *Logger {
	return &Logger{
		Logger: l.Logger.With("op", op),
	}
}

// WithMethod adds the strategy field to the logger.
func (l *Logger) WithMethod(method string) *Logger {
	return &Logger{
		Logger: l.Logger.With("method", method),
	}
}

// LogReduce logs a completed (or failed) grouped reduction.
func (l *Logger) LogReduce(ctx context.Context, chunks, size int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "grouped reduction failed",
			"chunks", chunks,
			"groups", size,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "grouped reduction completed",
			"chunks", chunks,
			"groups", size,
		)
	}
}

// LogCohorts logs the outcome of cohort discovery.
func (l *Logger) LogCohorts(ctx context.Context, chunks, cohorts int, cached bool) {
	l.DebugContext(ctx, "cohort discovery completed",
		"chunks", chunks,
		"cohorts", cohorts,
		"cached", cached,
	)
}
