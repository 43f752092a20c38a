package logger

import (
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// CronLogger adapts zap to the cron.Logger interface.
// Cron info messages (schedule, wake, run) are logged at debug level.
type CronLogger struct {
	sugar *zap.SugaredLogger
}

// NewCronLogger creates a cron.Logger backed by the given zap logger
func NewCronLogger(logger *zap.Logger) *CronLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CronLogger{sugar: logger.Named("cron").Sugar()}
}

// Info implements cron.Logger
func (l *CronLogger) Info(msg string, keysAndValues ...any) {
	l.sugar.Debugw(msg, keysAndValues...)
}

// Error implements cron.Logger
func (l *CronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}

var _ cron.Logger = (*CronLogger)(nil)
