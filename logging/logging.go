// Package logging defines the optional logger accepted by the gateway packages
// and an adapter backed by zerolog.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Logger is an optional logging interface that can be provided to the
// session, bootloader and gateway packages.
// This allows integration with any logging framework.
//
// Example with standard log package:
//
//	type StdLogger struct{}
//	func (l *StdLogger) Debug(msg string, kv ...interface{}) { log.Println(msg, kv) }
//	func (l *StdLogger) Info(msg string, kv ...interface{})  { log.Println(msg, kv) }
//	func (l *StdLogger) Error(msg string, kv ...interface{}) { log.Println(msg, kv) }
type Logger interface {
	// Debug logs a debug message with optional key-value pairs
	Debug(msg string, keysAndValues ...interface{})

	// Info logs an info message with optional key-value pairs
	Info(msg string, keysAndValues ...interface{})

	// Error logs an error message with optional key-value pairs
	Error(msg string, keysAndValues ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return nopLogger{}
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return nopLogger{}
	}
	return l
}

type zerologAdapter struct {
	zl zerolog.Logger
}

// FromZerolog adapts a zerolog.Logger to the Logger interface.
// Key-value pairs become structured fields; a value implementing error
// is attached with Err when its key is "error" or "err".
func FromZerolog(zl zerolog.Logger) Logger {
	return &zerologAdapter{zl: zl}
}

func (a *zerologAdapter) Debug(msg string, kv ...interface{}) {
	withFields(a.zl.Debug(), kv).Msg(msg)
}

func (a *zerologAdapter) Info(msg string, kv ...interface{}) {
	withFields(a.zl.Info(), kv).Msg(msg)
}

func (a *zerologAdapter) Error(msg string, kv ...interface{}) {
	withFields(a.zl.Error(), kv).Msg(msg)
}

func withFields(ev *zerolog.Event, kv []interface{}) *zerolog.Event {
	for i := 0; i < len(kv); i += 2 {
		key := fmt.Sprint(kv[i])
		if i+1 >= len(kv) {
			ev = ev.Bool(key, true)
			break
		}
		val := kv[i+1]
		if err, ok := val.(error); ok && (key == "error" || key == "err") {
			ev = ev.Err(err)
			continue
		}
		ev = ev.Interface(key, val)
	}
	return ev
}

// New builds a zerolog logger writing to w (stderr when nil).
// Format is "console" or "json"; level is any zerolog level name.
func New(level, format string, w io.Writer) (zerolog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}

	lvl := zerolog.InfoLevel
	if level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
		}
		lvl = parsed
	}

	switch strings.ToLower(format) {
	case "", "console":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05.000"}
	case "json":
	default:
		return zerolog.Nop(), fmt.Errorf("invalid log format %q", format)
	}

	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}
