package party

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Option is a configurable engine parameter. If left unset, defaults are
// used.
type Option func(e *Engine)

// WithLogger sets the structured logger. It defaults to writing to stdout.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithNotifier sets the event sink. Events are delivered synchronously;
// notifiers must not call back into the engine.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		e.notifier = n
	}
}

// WithMetrics registers engine metrics on the given registerer.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(e *Engine) {
		e.metrics = newMetrics(reg)
	}
}
