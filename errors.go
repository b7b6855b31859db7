package prism

import "errors"

// Sentinel errors returned by the presentation layer.
var (
	// ErrSubscriberClosed is returned by any operation against a closed
	// subscriber, or one whose shared receiver has terminated. When the
	// receiver terminated because of a transport fault, the returned error
	// wraps both ErrSubscriberClosed and the fault.
	ErrSubscriberClosed = errors.New("subscriber is closed")

	// ErrPresentationClosed is returned when subscribing through a closed
	// Presentation.
	ErrPresentationClosed = errors.New("presentation layer is closed")

	// ErrSubjectTypeConflict is returned when a subject is already
	// subscribed with a different message type.
	ErrSubjectTypeConflict = errors.New("subject is already subscribed with a different message type")

	// ErrTransportRequired is returned when the transport is nil.
	ErrTransportRequired = errors.New("transport is required")

	// ErrDecoderRequired is returned when the decoder is nil.
	ErrDecoderRequired = errors.New("decoder is required")

	// ErrInvalidQueueCapacity is returned for a negative queue capacity.
	// Zero means unbounded.
	ErrInvalidQueueCapacity = errors.New("invalid queue capacity")
)
