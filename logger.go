package texstream

import (
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with texstream-specific context.
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
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
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

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithFrame adds a frame index field to the logger.
func (l *Logger) WithFrame(frame int) *Logger {
	return &Logger{
		Logger: l.Logger.With("frame", frame),
	}
}

// WithPriority adds a priority field to the logger.
func (l *Logger) WithPriority(p Priority) *Logger {
	return &Logger{
		Logger: l.Logger.With("priority", p.String()),
	}
}

// LogLoad logs the outcome of one load pipeline run.
func (l *Logger) LogLoad(frame int, p Priority, bytes int64, err error) {
	if err != nil {
		l.Warn("frame load failed",
			"frame", frame,
			"priority", p.String(),
			"error", err,
		)
	} else {
		l.Debug("frame load completed",
			"frame", frame,
			"priority", p.String(),
			"bytes", bytes,
		)
	}
}

// LogPreload logs a preload plan being enqueued.
func (l *Logger) LogPreload(current, enqueued int) {
	l.Debug("preload plan enqueued",
		"current_frame", current,
		"candidates", enqueued,
	)
}
