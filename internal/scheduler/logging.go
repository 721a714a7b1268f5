package scheduler

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// cronAdapter routes cron's key/value logging to zerolog.
type cronAdapter struct {
	logger zerolog.Logger
}

func newCronAdapter(logger zerolog.Logger) cron.Logger {
	return &cronAdapter{logger: logger.With().Str("component", "cron").Logger()}
}

func (a *cronAdapter) withKeyvals(event *zerolog.Event, keyvals ...interface{}) *zerolog.Event {
	if len(keyvals)%2 != 0 {
		keyvals = append(keyvals, "MISSING_VALUE")
	}
	for i := 0; i < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			key = "INVALID_KEY"
		}
		event = event.Interface(key, keyvals[i+1])
	}
	return event
}

// Info is used by cron for routine scheduling chatter, logged at debug.
func (a *cronAdapter) Info(msg string, keyvals ...interface{}) {
	a.withKeyvals(a.logger.Debug(), keyvals...).Msg(msg)
}

func (a *cronAdapter) Error(err error, msg string, keyvals ...interface{}) {
	a.withKeyvals(a.logger.Error().Err(err), keyvals...).Msg(msg)
}
