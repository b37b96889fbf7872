package logger

import (
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger instance with the specified log level
func New(level string) *Logger {
	var logLevel slog.Level

	switch strings.ToUpper(level) {
	case "DEBUG":
		logLevel = slog.LevelDebug
	case "INFO":
		logLevel = slog.LevelInfo
	case "WARN":
		logLevel = slog.LevelWarn
	case "ERROR":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	handler := slog.NewJSONHandler(os.Stdout, opts)
	logger := slog.New(handler)

	return &Logger{Logger: logger}
}

// WithReference returns a logger with QR payment reference context
func (l *Logger) WithReference(reference string) *Logger {
	return &Logger{
		Logger: l.With("reference", reference),
	}
}

// WithEntryID returns a logger with manual entry ID context
func (l *Logger) WithEntryID(entryID string) *Logger {
	return &Logger{
		Logger: l.With("entry_id", entryID),
	}
}

// WithTrxCode returns a logger with gateway transaction code context
func (l *Logger) WithTrxCode(trxCode string) *Logger {
	return &Logger{
		Logger: l.With("trx_code", trxCode),
	}
}

// WithError returns a logger with error context
func (l *Logger) WithError(err error) *Logger {
	return &Logger{
		Logger: l.With("error", err),
	}
}
