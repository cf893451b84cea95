package kosha

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with kosha-specific context.
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

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	return &Logger{
		Logger: slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
			Level: slog.Level(1000), // Unreachable level
		})),
	}
}

// WithLocation adds a location field to the logger.
func (l *Logger) WithLocation(location string) *Logger {
	return &Logger{
		Logger: l.Logger.With("location", location),
	}
}

// WithGeneration adds a generation field to the logger.
func (l *Logger) WithGeneration(id uint64) *Logger {
	return &Logger{
		Logger: l.Logger.With("generation", id),
	}
}

// LogInsertRejected logs an entry refused by Insert.
func (l *Logger) LogInsertRejected(ctx context.Context, key string, err error) {
	l.DebugContext(ctx, "insert rejected",
		"key", key,
		"error", err,
	)
}

// LogFinish logs the outcome of Builder.Finish.
func (l *Logger) LogFinish(ctx context.Context, keys, entries int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "finish failed",
			"keys", keys,
			"entries", entries,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "store committed",
			"keys", keys,
			"entries", entries,
			"duration", duration,
		)
	}
}

// LogOpen logs the outcome of Open.
func (l *Logger) LogOpen(ctx context.Context, location string, keys int, err error) {
	if err != nil {
		l.WarnContext(ctx, "open failed",
			"location", location,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "store opened",
			"location", location,
			"keys", keys,
		)
	}
}

// LogCleanup logs a best-effort removal that failed.
func (l *Logger) LogCleanup(ctx context.Context, name string, err error) {
	if err != nil {
		l.WarnContext(ctx, "cleanup failed",
			"name", name,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "removed",
			"name", name,
		)
	}
}
