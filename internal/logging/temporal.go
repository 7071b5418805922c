package logging

import (
	"go.uber.org/zap"
)

// TemporalAdapter bridges a zap logger to the Temporal SDK's log.Logger
// interface so workflow and worker logs land in the same sink as the rest of
// the daemon.
type TemporalAdapter struct {
	sugar *zap.SugaredLogger
}

// NewTemporalAdapter wraps the logger for use as a Temporal SDK logger.
func NewTemporalAdapter(logger *Logger) *TemporalAdapter {
	if logger == nil {
		logger = NewNop()
	}
	// Skip one caller frame so log sites point at SDK call sites, not the
	// adapter.
	return &TemporalAdapter{
		sugar: logger.Underlying().WithOptions(zap.AddCallerSkip(1)).Sugar(),
	}
}

func (a *TemporalAdapter) Debug(msg string, keyvals ...interface{}) {
	a.sugar.Debugw(msg, keyvals...)
}

func (a *TemporalAdapter) Info(msg string, keyvals ...interface{}) {
	a.sugar.Infow(msg, keyvals...)
}

func (a *TemporalAdapter) Warn(msg string, keyvals ...interface{}) {
	a.sugar.Warnw(msg, keyvals...)
}

func (a *TemporalAdapter) Error(msg string, keyvals ...interface{}) {
	a.sugar.Errorw(msg, keyvals...)
}
