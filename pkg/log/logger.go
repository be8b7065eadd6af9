package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	cerrors "github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/YuminosukeSato/salesforecast/pkg/errors"
)

// zerologLogger implements Logger on top of zerolog.
type zerologLogger struct {
	zl zerolog.Logger
}

var (
	providerMu sync.RWMutex
	provider   LoggerProvider = newZerologProvider(os.Stderr, LevelInfo, "json")
)

// SetupLogger configures the process-wide logger. format is "json" or
// "console". Warnings raised through errors.Warn are routed to the new logger.
func SetupLogger(level, format string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	switch format {
	case "json", "console", "":
	default:
		return errors.NewValidationError("log_format", "must be json or console", format)
	}

	SetProvider(newZerologProvider(os.Stderr, lvl, format))
	return nil
}

// SetProvider replaces the process-wide provider. Tests install a
// TestLoggerProvider here.
func SetProvider(p LoggerProvider) {
	providerMu.Lock()
	provider = p
	providerMu.Unlock()

	warnings := p.GetLoggerWithName("warnings")
	errors.SetZerologWarnFunc(func(w error) {
		if m, ok := w.(zerolog.LogObjectMarshaler); ok {
			warnings.Warn(w.Error(), "warning", m)
			return
		}
		warnings.Warn(w.Error())
	})
}

// GetLogger returns the process-wide logger.
func GetLogger() Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return provider.GetLogger()
}

// GetLoggerWithName returns the process-wide logger tagged with ComponentKey.
func GetLoggerWithName(name string) Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return provider.GetLoggerWithName(name)
}

type zerologProvider struct {
	mu   sync.Mutex
	base zerolog.Logger
}

func newZerologProvider(w io.Writer, level Level, format string) *zerologProvider {
	if format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	zl := zerolog.New(w).With().Timestamp().Logger().Level(toZerologLevel(level))
	return &zerologProvider{base: zl}
}

// NewLogger builds a zerolog-backed Logger writing JSON lines to w.
func NewLogger(w io.Writer, level Level) Logger {
	return newZerologProvider(w, level, "json").GetLogger()
}

func (p *zerologProvider) GetLogger() Logger {
	p.mu.Lock()
	defer p.mu.Unlock()
	return &zerologLogger{zl: p.base}
}

func (p *zerologProvider) GetLoggerWithName(name string) Logger {
	return p.GetLogger().With(ComponentKey, name)
}

func (p *zerologProvider) SetLevel(level Level) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.base = p.base.Level(toZerologLevel(level))
}

func toZerologLevel(l Level) zerolog.Level {
	switch {
	case l <= LevelDebug:
		return zerolog.DebugLevel
	case l <= LevelInfo:
		return zerolog.InfoLevel
	case l <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

func (l *zerologLogger) Debug(msg string, fields ...any) {
	l.emit(l.zl.Debug(), msg, fields)
}

func (l *zerologLogger) Info(msg string, fields ...any) {
	l.emit(l.zl.Info(), msg, fields)
}

func (l *zerologLogger) Warn(msg string, fields ...any) {
	l.emit(l.zl.Warn(), msg, fields)
}

func (l *zerologLogger) Error(msg string, fields ...any) {
	l.emit(l.zl.Error(), msg, fields)
}

func (l *zerologLogger) With(fields ...any) Logger {
	ctx := l.zl.With()
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			ctx = ctx.Str(ErrorAttrKey, err.Error())
			fields = fields[1:]
		}
	}
	for i := 0; i+1 < len(fields); i += 2 {
		ctx = ctx.Interface(keyString(fields[i]), plainValue(fields[i+1]))
	}
	return &zerologLogger{zl: ctx.Logger()}
}

func (l *zerologLogger) Enabled(_ context.Context, level Level) bool {
	return l.zl.GetLevel() <= toZerologLevel(level)
}

// emit appends fields to e and sends it. A nil event means the level is disabled.
func (l *zerologLogger) emit(e *zerolog.Event, msg string, fields []any) {
	if e == nil {
		return
	}
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			addError(e, err)
			fields = fields[1:]
		}
	}
	for i := 0; i+1 < len(fields); i += 2 {
		key := keyString(fields[i])
		switch v := fields[i+1].(type) {
		case error:
			addErrorAs(e, key, v)
		case zerolog.LogObjectMarshaler:
			e.Object(key, v)
		case time.Duration:
			e.Int64(key, v.Milliseconds())
		default:
			e.Interface(key, v)
		}
	}
	if len(fields)%2 == 1 {
		e.Interface("!BADKEY", fields[len(fields)-1])
	}
	e.Msg(msg)
}

func addError(e *zerolog.Event, err error) {
	addErrorAs(e, ErrorAttrKey, err)
}

func addErrorAs(e *zerolog.Event, key string, err error) {
	e.Str(key, err.Error())
	if key == ErrorAttrKey {
		if st := extractStacktrace(err); st != "" {
			e.Str(StacktraceKey, st)
		}
		if m, ok := structuredCause(err); ok {
			e.Object("error_detail", m)
		}
	}
}

// structuredCause returns the first error in the chain that knows how to
// marshal itself for zerolog.
func structuredCause(err error) (zerolog.LogObjectMarshaler, bool) {
	for e := err; e != nil; e = cerrors.Unwrap(e) {
		if m, ok := e.(zerolog.LogObjectMarshaler); ok {
			return m, true
		}
	}
	return nil, false
}

func extractStacktrace(err error) string {
	safeDetails := cerrors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	// GetSafeDetails only inspects the outermost layer.
	if withStack := fmt.Sprintf("%+v", err); strings.Contains(withStack, "\n") {
		return withStack
	}
	return ""
}

func keyString(k any) string {
	if s, ok := k.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", k)
}

func plainValue(v any) any {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	return v
}
