// Package logger provides the structured logging interface used across the
// alerting engine. It is a thin layer over log/slog with typed field
// constructors so call sites stay free of untyped key/value pairs.
package logger

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"
)

// LogLevel is the minimum severity a logger emits.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// ParseLevel maps a config string to a LogLevel, defaulting to info.
func ParseLevel(s string) LogLevel {
	switch LogLevel(strings.ToLower(strings.TrimSpace(s))) {
	case LogLevelDebug:
		return LogLevelDebug
	case LogLevelWarn, "warning":
		return LogLevelWarn
	case LogLevelError:
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Field is a single structured log attribute.
type Field = slog.Attr

// Logger is the logging contract shared by every component.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	// With returns a logger that always includes fields.
	With(fields ...Field) Logger
	// Module returns a logger scoped to a named component.
	Module(name string) Logger
}

type slogLogger struct {
	l *slog.Logger
}

// NewSlogLogger creates a text logger writing to w. A nil tz logs in UTC.
func NewSlogLogger(w io.Writer, level LogLevel, tz *time.Location) Logger {
	return newLogger(slog.NewTextHandler(w, handlerOptions(level, tz)))
}

// NewJSONLogger creates a JSON logger writing to w. A nil tz logs in UTC.
func NewJSONLogger(w io.Writer, level LogLevel, tz *time.Location) Logger {
	return newLogger(slog.NewJSONHandler(w, handlerOptions(level, tz)))
}

func newLogger(h slog.Handler) Logger {
	return &slogLogger{l: slog.New(h)}
}

func handlerOptions(level LogLevel, tz *time.Location) *slog.HandlerOptions {
	if tz == nil {
		tz = time.UTC
	}
	return &slog.HandlerOptions{
		Level: level.slogLevel(),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.Time(slog.TimeKey, a.Value.Time().In(tz))
			}
			return a
		},
	}
}

func (s *slogLogger) log(level slog.Level, msg string, fields []Field) {
	s.l.LogAttrs(context.Background(), level, msg, fields...)
}

func (s *slogLogger) Debug(msg string, fields ...Field) { s.log(slog.LevelDebug, msg, fields) }
func (s *slogLogger) Info(msg string, fields ...Field)  { s.log(slog.LevelInfo, msg, fields) }
func (s *slogLogger) Warn(msg string, fields ...Field)  { s.log(slog.LevelWarn, msg, fields) }
func (s *slogLogger) Error(msg string, fields ...Field) { s.log(slog.LevelError, msg, fields) }

func (s *slogLogger) With(fields ...Field) Logger {
	args := make([]any, len(fields))
	for i := range fields {
		args[i] = fields[i]
	}
	return &slogLogger{l: s.l.With(args...)}
}

func (s *slogLogger) Module(name string) Logger {
	return s.With(String("module", name))
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() Logger {
	return NewSlogLogger(io.Discard, LogLevelError, nil)
}

func String(key, value string) Field             { return slog.String(key, value) }
func Int(key string, value int) Field            { return slog.Int(key, value) }
func Int64(key string, value int64) Field        { return slog.Int64(key, value) }
func Uint64(key string, value uint64) Field      { return slog.Uint64(key, value) }
func Float64(key string, value float64) Field    { return slog.Float64(key, value) }
func Bool(key string, value bool) Field          { return slog.Bool(key, value) }
func Duration(key string, d time.Duration) Field { return slog.Duration(key, d) }
func Time(key string, t time.Time) Field         { return slog.Time(key, t) }
func Any(key string, value any) Field            { return slog.Any(key, value) }

// Error builds the conventional "error" field. A nil error logs as empty.
func Error(err error) Field {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}
