package types

// MetricsCollector defines methods for recording subscription-layer metrics.
//
// Implementations must be non-blocking and safe for concurrent use; all
// methods are called from the shared receiver goroutine and from subscriber
// lifecycle paths.
type MetricsCollector interface {
	// RecordMessage records a decoded message fanned out to the listeners of
	// a subject.
	RecordMessage(subject string)

	// RecordOverrun records a message dropped because a subscriber's queue
	// was full.
	RecordOverrun(subject string)

	// RecordDeserializationFailure records a transfer dropped because its
	// payload failed to decode.
	RecordDeserializationFailure(subject string)

	// RecordReceiverFault records a transport fault that terminated the
	// shared receiver of a subject.
	RecordReceiverFault(subject string)

	// SetListenerCount reports the current number of listeners attached to a
	// subject's shared receiver.
	SetListenerCount(subject string, count int)

	// RecordLeakedSubscriber records a subscriber that was garbage collected
	// without being closed first.
	RecordLeakedSubscriber()
}
