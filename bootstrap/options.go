package bootstrap

import "github.com/kbukum/pilgi/logger"

// Option adjusts NewApp. Options carry no type parameter so one set works
// for every config type.
type Option func(*appOptions)

type appOptions struct {
	logger *logger.Logger
	quiet  bool
}

// WithLogger replaces the logger NewApp would build from config.
func WithLogger(l *logger.Logger) Option {
	return func(o *appOptions) { o.logger = l }
}

// WithoutSummary suppresses the startup banner. One-shot commands use it
// so their stdout carries only the result.
func WithoutSummary() Option {
	return func(o *appOptions) { o.quiet = true }
}
