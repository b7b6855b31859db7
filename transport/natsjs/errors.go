package natsjs

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// isFetchTimeout checks whether a fetch error merely means that no message
// arrived before the deadline, which the session reports as an empty
// result rather than a fault.
func isFetchTimeout(err error) bool {
	return errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, jetstream.ErrNoMessages) ||
		errors.Is(err, context.DeadlineExceeded)
}
