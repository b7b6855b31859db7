package prism

import (
	"sync"

	"github.com/lumenmq/prism/transport"
)

// Delivery is a decoded message together with the transfer that carried it.
type Delivery[T any] struct {
	// Message is the decoded message. It is shared by reference with every
	// other subscriber of the same subject; clone before mutating.
	Message T

	// Transfer is the transport-level delivery metadata.
	Transfer transport.Transfer
}

// listener is the per-subscriber receive queue. The shared receiver loop is
// its only writer and the owning subscriber its only reader; the mutex
// exists because counters and the queue are sampled concurrently.
type listener[T any] struct {
	mu       sync.Mutex
	items    []Delivery[T]
	capacity int // 0 = unbounded
	pushes   uint64
	overruns uint64
	failure  error

	// notify has capacity 1; a pending signal means "the queue may be
	// non-empty". The reader always polls before waiting, so a coalesced
	// signal cannot lose a wakeup.
	notify chan struct{}

	// failed is closed exactly once when failure is set, waking a blocked
	// reader immediately.
	failed   chan struct{}
	failOnce sync.Once
}

func newListener[T any](capacity int) *listener[T] {
	return &listener[T]{
		capacity: capacity,
		notify:   make(chan struct{}, 1),
		failed:   make(chan struct{}),
	}
}

// push appends a delivery without blocking. A full queue drops the new item
// and counts an overrun; queued items are never evicted. Returns false on
// overrun.
func (l *listener[T]) push(msg T, tr transport.Transfer) bool {
	l.mu.Lock()
	if l.capacity > 0 && len(l.items) >= l.capacity {
		l.overruns++
		l.mu.Unlock()

		return false
	}
	l.items = append(l.items, Delivery[T]{Message: msg, Transfer: tr})
	l.pushes++
	l.mu.Unlock()

	select {
	case l.notify <- struct{}{}:
	default:
	}

	return true
}

// pop removes and returns the oldest delivery, if any.
func (l *listener[T]) pop() (Delivery[T], bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.items) == 0 {
		var zero Delivery[T]

		return zero, false
	}
	d := l.items[0]
	l.items = l.items[1:]

	return d, true
}

// fail records the terminal failure. Only the first call takes effect; the
// failure is never cleared afterwards.
func (l *listener[T]) fail(err error) {
	l.failOnce.Do(func() {
		l.mu.Lock()
		l.failure = err
		l.mu.Unlock()
		close(l.failed)
	})
}

// terminalFailure returns the terminal failure, or nil while healthy.
func (l *listener[T]) terminalFailure() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.failure
}

// counters returns the push and overrun counts.
func (l *listener[T]) counters() (pushes, overruns uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.pushes, l.overruns
}
