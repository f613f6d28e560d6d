// Package logging configures the process-wide zerolog logger and provides
// the small Logger interface that library packages accept.
package logging

import (
	"github.com/rs/zerolog"
)

// Logger provides structured logging for library packages.
// Callers that do not care pass nothing and get Nop.
type Logger interface {
	// Debug logs debug-level messages with optional key-value pairs.
	Debug(msg string, keysAndValues ...interface{})

	// Info logs info-level messages with optional key-value pairs.
	Info(msg string, keysAndValues ...interface{})

	// Warn logs warning-level messages with optional key-value pairs.
	Warn(msg string, keysAndValues ...interface{})

	// Error logs error-level messages with optional key-value pairs.
	Error(msg string, keysAndValues ...interface{})
}

// noopLogger is a Logger implementation that does nothing.
type noopLogger struct{}

func (n *noopLogger) Debug(msg string, keysAndValues ...interface{}) {}
func (n *noopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (n *noopLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (n *noopLogger) Error(msg string, keysAndValues ...interface{}) {}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return &noopLogger{}
}

// zerologAdapter forwards to a zerolog.Logger.
type zerologAdapter struct {
	zl zerolog.Logger
}

// FromZerolog wraps zl so it satisfies Logger. Key/value pairs become
// event fields; a trailing key without a value is logged under "extra".
func FromZerolog(zl zerolog.Logger) Logger {
	return &zerologAdapter{zl: zl}
}

func (a *zerologAdapter) Debug(msg string, kv ...interface{}) { emit(a.zl.Debug(), msg, kv) }
func (a *zerologAdapter) Info(msg string, kv ...interface{})  { emit(a.zl.Info(), msg, kv) }
func (a *zerologAdapter) Warn(msg string, kv ...interface{})  { emit(a.zl.Warn(), msg, kv) }
func (a *zerologAdapter) Error(msg string, kv ...interface{}) { emit(a.zl.Error(), msg, kv) }

func emit(ev *zerolog.Event, msg string, kv []interface{}) {
	if ev == nil {
		return
	}
	fields := make(map[string]interface{}, len(kv)/2+1)
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		if i+1 >= len(kv) {
			fields["extra"] = key
			break
		}
		if err, isErr := kv[i+1].(error); isErr {
			fields[key] = err.Error()
			continue
		}
		fields[key] = kv[i+1]
	}
	ev.Fields(fields).Msg(msg)
}
