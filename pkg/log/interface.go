// Package log provides the structured logging interface used by the training
// pipeline, the artifact loader and the HTTP server.
//
// The interface is slog-shaped (message plus alternating key/value fields) and
// is backed by zerolog. Components obtain a named child logger once and attach
// run- or request-scoped fields with With:
//
//	logger := log.GetLoggerWithName("pipeline").With(log.RunIDKey, runID)
//	logger.Info("Training started",
//	    log.OperationKey, log.OperationFit,
//	    log.SamplesKey, 1000,
//	    log.FeaturesKey, 7,
//	)
//
// If the first field passed to Error is an error value, it is logged under
// "error" and its cockroachdb/errors stack trace under "stacktrace".
package log

import (
	"context"
	"strings"

	"github.com/YuminosukeSato/salesforecast/pkg/errors"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
type Logger interface {
	// Debug logs detailed diagnostic information.
	Debug(msg string, fields ...any)

	// Info logs general operational information.
	Info(msg string, fields ...any)

	// Warn logs a potentially problematic situation.
	Warn(msg string, fields ...any)

	// Error logs an error condition. An error value may be passed as the
	// first field.
	//
	//   logger.Error("Artifact load failed", err, PathKey, dir)
	Error(msg string, fields ...any)

	// With returns a Logger that includes fields in every subsequent record.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits records at the given level.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts "debug", "info", "warn" or "error" (case-insensitive)
// into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, errors.NewValidationError("log_level", "must be one of debug, info, warn, error", s)
	}
}

// LoggerProvider creates loggers. The zerolog provider is the process default;
// TestLoggerProvider captures output for assertions.
type LoggerProvider interface {
	// GetLogger returns the default logger instance.
	GetLogger() Logger

	// GetLoggerWithName returns a logger tagged with a component name.
	GetLoggerWithName(name string) Logger

	// SetLevel sets the minimum log level for loggers created by this provider.
	SetLevel(level Level)
}
