// Package logger provides structured logging for the credit ledger services.
// It keeps a small Field-based API on top of zerolog so that callers never
// import zerolog directly.
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Level is a minimum severity.
type Level int

// Levels in increasing severity.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levels = map[Level]struct {
	name string
	zl   zerolog.Level
}{
	LevelDebug: {"debug", zerolog.DebugLevel},
	LevelInfo:  {"info", zerolog.InfoLevel},
	LevelWarn:  {"warn", zerolog.WarnLevel},
	LevelError: {"error", zerolog.ErrorLevel},
}

// String returns the lower-case level name; unknown levels print as info.
func (l Level) String() string {
	if v, ok := levels[l]; ok {
		return v.name
	}
	return "info"
}

// ParseLevel accepts debug, info, warn/warning and error in any case.
// Anything else is info.
func ParseLevel(s string) Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		return LevelWarn
	}
	for l, v := range levels {
		if v.name == s {
			return l
		}
	}
	return LevelInfo
}

// Format selects the output encoding.
type Format string

// Supported formats. Console is for local development only.
const (
	FormatJSON    Format = "json"
	FormatConsole Format = "console"
)

// Field is one key/value pair attached to a log line.
type Field struct {
	Key   string
	Value any
}

// String is a string field.
func String(key, value string) Field { return Field{Key: key, Value: value} }

// Int is an integer field.
func Int(key string, value int) Field { return Field{Key: key, Value: value} }

// Bool is a boolean field.
func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }

// Any is encoded by zerolog's reflection-based encoder.
func Any(key string, value any) Field { return Field{Key: key, Value: value} }

// Err stores the error text under "error"; nil stays nil.
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error"}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Duration stores d in its String form, e.g. "1.5s".
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

// Time stores value as RFC 3339 in UTC.
func Time(key string, value time.Time) Field {
	return Field{Key: key, Value: value.UTC().Format(time.RFC3339)}
}

// StudentID is the "student_id" field.
func StudentID(id string) Field { return String("student_id", id) }

// CourseID is the "course_id" field.
func CourseID(id string) Field { return String("course_id", id) }

// EnrollmentID is the "enrollment_id" field.
func EnrollmentID(id string) Field { return String("enrollment_id", id) }

// RecordID is the "record_id" field.
func RecordID(id string) Field { return String("record_id", id) }

// Component names the subsystem that logs, e.g. "ledger" or "query".
func Component(name string) Field { return String("component", name) }

// Operation names the ledger operation being run.
func Operation(name string) Field { return String("operation", name) }

// Latency is the "latency" duration field.
func Latency(d time.Duration) Field { return Duration("latency", d) }

// RequestIDKey is the field name carrying the HTTP request id.
const RequestIDKey = "request_id"

// Options configures New.
type Options struct {
	Output    io.Writer // stdout when nil
	Level     Level
	Format    Format
	AddCaller bool
}

// Logger is safe for concurrent use. With returns a child; the parent is
// never modified.
type Logger struct {
	zl zerolog.Logger
}

// New builds a Logger from opts. Every line carries a timestamp.
func New(opts Options) *Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if opts.Format == FormatConsole {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	zctx := zerolog.New(out).Level(levels[opts.Level].zl).With().Timestamp()
	if opts.AddCaller {
		// +1 skips our own emit frame
		zctx = zctx.CallerWithSkipFrameCount(zerolog.CallerSkipFrameCount + 1)
	}
	return &Logger{zl: zctx.Logger()}
}

// Default is JSON at info level on stdout.
func Default() *Logger {
	return New(Options{Level: LevelInfo, Format: FormatJSON})
}

// Nop discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// With returns a child logger that adds fields to every line.
func (l *Logger) With(fields ...Field) *Logger {
	zctx := l.zl.With()
	for _, f := range fields {
		zctx = zctx.Interface(f.Key, f.Value)
	}
	return &Logger{zl: zctx.Logger()}
}

// WithRequestID is With(String(RequestIDKey, requestID)).
func (l *Logger) WithRequestID(requestID string) *Logger {
	return l.With(String(RequestIDKey, requestID))
}

// Debug logs msg at debug level.
func (l *Logger) Debug(msg string, fields ...Field) { emit(l.zl.Debug(), msg, fields) }

// Info logs msg at info level.
func (l *Logger) Info(msg string, fields ...Field) { emit(l.zl.Info(), msg, fields) }

// Warn logs msg at warn level.
func (l *Logger) Warn(msg string, fields ...Field) { emit(l.zl.Warn(), msg, fields) }

// Error logs msg at error level. It never exits the process.
func (l *Logger) Error(msg string, fields ...Field) { emit(l.zl.Error(), msg, fields) }

func emit(ev *zerolog.Event, msg string, fields []Field) {
	if ev == nil {
		return
	}
	for _, f := range fields {
		ev = ev.Interface(f.Key, f.Value)
	}
	ev.Msg(msg)
}

type ctxKey struct{}

// WithContext attaches l to ctx.
func WithContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger attached by WithContext, or Default.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok && l != nil {
		return l
	}
	return Default()
}
