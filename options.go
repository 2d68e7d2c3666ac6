package serial

import (
	"time"

	"go.uber.org/zap"
)

const (
	defaultMaxReadRetries = 5
	defaultReadBackoff    = 10 * time.Millisecond
)

type options struct {
	logger     *zap.Logger
	opener     Opener
	metrics    *Metrics
	maxRetries int
	backoff    time.Duration
}

func defaultOptions() options {
	return options{
		logger:     zap.NewNop(),
		opener:     DefaultOpener,
		maxRetries: defaultMaxReadRetries,
		backoff:    defaultReadBackoff,
	}
}

// Option configures a Source or Tokenizer. Options that don't apply to the
// component they're passed to are ignored.
type Option func(*options)

// WithLogger sets the logger. Defaults to zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithOpener replaces DefaultOpener, e.g. with OpenPortable or a fake port.
func WithOpener(fn Opener) Option {
	return func(o *options) {
		if fn != nil {
			o.opener = fn
		}
	}
}

// WithMetrics records traffic counters into m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithReadRetry sets how many consecutive transient read errors the receive
// loop tolerates, and the pause before re-arming after each. maxRetries of 0
// stops the loop on the first error.
func WithReadRetry(maxRetries int, backoff time.Duration) Option {
	return func(o *options) {
		o.maxRetries = max(maxRetries, 0)
		o.backoff = max(backoff, 0)
	}
}
