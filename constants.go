package prism

import "time"

// Default configuration values for the presentation layer.
const (
	// DefaultPollInterval is the deadline the shared receiver passes to each
	// transport receive call, and the retry interval of Subscriber.Receive.
	// It bounds how quickly a receiver notices that it has been closed, so
	// it should not be large.
	DefaultPollInterval = time.Second

	// DefaultQueueCapacity is the default subscriber queue capacity.
	// Zero means unbounded.
	DefaultQueueCapacity = 0
)

// Backoff parameters for the background delivery loop's fault throttle.
const (
	backgroundRetryBase       = 500 * time.Millisecond
	backgroundRetryMultiplier = 2.0
	backgroundRetryCap        = 5 * time.Second
)
