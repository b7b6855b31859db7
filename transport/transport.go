package transport

import (
	"context"
	"time"
)

// Transfer is a fully reassembled unit of transport-level data for a subject.
// The transport guarantees that transfers delivered through a session are
// already reordered and deduplicated; the presentation layer never sees
// partial or duplicate transfers.
type Transfer struct {
	// Timestamp is the reception time of the transfer as reported by the
	// transport.
	Timestamp time.Time

	// TransferID is a monotonically increasing identifier assigned by the
	// transport within one subject.
	TransferID uint64

	// Source identifies the origin of the transfer. The format is
	// transport-specific; it may be empty for transports without a notion
	// of origin.
	Source string

	// Fragments is the payload of the transfer as an ordered sequence of
	// byte fragments. Decoders receive the fragments as-is; most transports
	// deliver a single fragment.
	Fragments [][]byte
}

// PayloadSize returns the total number of payload bytes across all fragments.
func (t *Transfer) PayloadSize() int {
	var n int
	for _, f := range t.Fragments {
		n += len(f)
	}

	return n
}

// Statistics is a snapshot of a session's transport-level counters.
// All counters are monotonically non-decreasing over the session lifetime.
type Statistics struct {
	// Transfers is the number of transfers delivered through the session.
	Transfers uint64

	// PayloadBytes is the total payload size of delivered transfers.
	PayloadBytes uint64

	// Errors is the number of transport-level receive errors.
	Errors uint64

	// Drops is the number of transfers the transport had to discard, for
	// example because a session buffer was full.
	Drops uint64
}

// Session is a receive channel for a single subject. A session is exclusively
// owned by one consumer; it is not safe for concurrent Receive calls.
type Session interface {
	// Receive returns the next transfer, blocking until one is available or
	// the deadline expires. An expired deadline yields (nil, nil), never an
	// error. A deadline in the past performs a non-blocking poll. A non-nil
	// error means the session has failed and will not produce further
	// transfers.
	Receive(ctx context.Context, deadline time.Time) (*Transfer, error)

	// SampleStatistics returns a snapshot of the session counters. Safe to
	// call at any time, including after Close.
	SampleStatistics() Statistics

	// Close releases the session. Receive must not be called afterwards.
	Close() error
}

// Transport creates receive sessions for subjects.
type Transport interface {
	// OpenReceiveSession opens a new session delivering transfers published
	// to the given subject.
	OpenReceiveSession(ctx context.Context, subject string) (Session, error)
}
