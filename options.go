package trailingstop

import (
	"github.com/tesius/trailing-stop-visualizer/pkg/core"
	"github.com/tesius/trailing-stop-visualizer/pkg/logger"
)

// Option is a functional option for configuring an Analyzer instance
type Option func(*Analyzer)

// WithLogger replaces the default logger
func WithLogger(log logger.Logger) Option {
	return func(a *Analyzer) {
		a.log = log
	}
}

// WithLogLevel sets the log level on the analyzer's logger. eg: logger.DebugLevel,
// logger.InfoLevel, logger.WarnLevel, logger.ErrorLevel, logger.FatalLevel
func WithLogLevel(level logger.Level) Option {
	return func(a *Analyzer) {
		a.log.SetLevel(level)
	}
}

// WithNotifier registers a notifier for fresh sell signals, currently
// email and telegram are supported
func WithNotifier(notifier core.Notifier) Option {
	return func(a *Analyzer) {
		a.notifier = notifier
	}
}
