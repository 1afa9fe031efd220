package tasks

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// cronLogger routes cron's internal logging into zerolog. Scheduler chatter
// goes to debug; errors, including recovered job panics, go to error.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

// newCron builds a scheduler whose jobs cannot take the process down.
func newCron(logger zerolog.Logger, opts ...cron.Option) *cron.Cron {
	l := cronLogger{logger: logger}
	opts = append(opts, cron.WithLogger(l), cron.WithChain(cron.Recover(l)))
	return cron.New(opts...)
}
