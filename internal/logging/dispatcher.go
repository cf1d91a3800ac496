package logging

import (
	"fmt"

	"github.com/rs/zerolog"
)

// DispatcherLogger bridges the dispatcher's key-value logging onto a
// zerolog.Logger, so viewer event logs land in the same sink as the
// influx manager's.
type DispatcherLogger struct {
	logger zerolog.Logger
}

// NewDispatcherLogger wraps a zerolog.Logger for use by the dispatcher.
func NewDispatcherLogger(logger zerolog.Logger) *DispatcherLogger {
	return &DispatcherLogger{logger: logger}
}

func (l *DispatcherLogger) Debug(msg string, keysAndValues ...any) {
	emit(l.logger.Debug(), msg, keysAndValues)
}

func (l *DispatcherLogger) Info(msg string, keysAndValues ...any) {
	emit(l.logger.Info(), msg, keysAndValues)
}

func (l *DispatcherLogger) Error(msg string, keysAndValues ...any) {
	emit(l.logger.Error(), msg, keysAndValues)
}

// emit attaches alternating key-value pairs to the event and fires it.
// A trailing key without a value is dropped; non-string keys are
// stringified so the pair is never lost.
func emit(e *zerolog.Event, msg string, kvs []any) {
	for i := 0; i+1 < len(kvs); i += 2 {
		key, ok := kvs[i].(string)
		if !ok {
			key = fmt.Sprint(kvs[i])
		}
		e = e.Interface(key, kvs[i+1])
	}
	e.Msg(msg)
}
