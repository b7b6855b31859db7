package prism

import (
	"time"

	"github.com/lumenmq/prism/types"
)

// Option configures a Presentation with optional dependencies.
type Option func(*presentationOptions)

// presentationOptions holds optional Presentation configuration.
type presentationOptions struct {
	logger        types.Logger
	metrics       types.MetricsCollector
	pollInterval  time.Duration
	queueCapacity int
}

// WithLogger sets a logger.
//
// Example:
//
//	p := prism.NewPresentation(tr, prism.WithLogger(logging.NewSlogDefault()))
func WithLogger(logger types.Logger) Option {
	return func(o *presentationOptions) {
		o.logger = logger
	}
}

// WithMetrics sets a metrics collector.
//
// Example:
//
//	collector := metrics.NewPrometheus(nil, "myapp")
//	p := prism.NewPresentation(tr, prism.WithMetrics(collector))
func WithMetrics(metrics types.MetricsCollector) Option {
	return func(o *presentationOptions) {
		o.metrics = metrics
	}
}

// WithPollInterval overrides DefaultPollInterval for all receivers and
// subscribers created through the Presentation. Shorter intervals make
// close detection faster at the cost of more idle transport polls.
func WithPollInterval(interval time.Duration) Option {
	return func(o *presentationOptions) {
		o.pollInterval = interval
	}
}

// WithQueueCapacity sets the default queue capacity for subscribers created
// through the Presentation. Zero means unbounded. Individual subscriptions
// can override it with WithSubscriberQueueCapacity.
func WithQueueCapacity(capacity int) Option {
	return func(o *presentationOptions) {
		o.queueCapacity = capacity
	}
}

// SubscribeOption configures a single subscription.
type SubscribeOption func(*subscribeOptions)

// subscribeOptions holds per-subscription configuration.
type subscribeOptions struct {
	queueCapacity int
}

// WithSubscriberQueueCapacity sets the queue capacity of one subscriber.
// Zero means unbounded. When the queue is full, new messages are dropped
// and counted as overruns; queued messages are never evicted.
func WithSubscriberQueueCapacity(capacity int) SubscribeOption {
	return func(o *subscribeOptions) {
		o.queueCapacity = capacity
	}
}
