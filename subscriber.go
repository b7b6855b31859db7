package prism

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lumenmq/prism/transport"
	"github.com/lumenmq/prism/types"
)

// MessageHandler processes one received message in background delivery mode.
//
// A non-nil error (or a panic) is logged and swallowed; it never stops the
// delivery loop.
type MessageHandler[T any] func(ctx context.Context, msg T, tr transport.Transfer) error

// SubscriberStatistics is a snapshot of a subscriber's counters.
type SubscriberStatistics struct {
	// Transport is the transport session snapshot, shared by every
	// subscriber of the same subject.
	Transport transport.Statistics

	// Messages is the number of messages delivered into this subscriber's
	// queue (individual per subscriber).
	Messages uint64

	// Overruns is the number of messages lost to queue overruns (individual
	// per subscriber).
	Overruns uint64

	// DeserializationFailures is the number of transfers dropped because
	// their payload failed to decode (shared per subject).
	DeserializationFailures uint64
}

// Subscriber is an independent handle on a subject subscription. Request
// your own instance from the Presentation; do not share one subscriber
// across tasks. A subscriber must be closed when no longer needed — a
// handle that is garbage collected while open is logged as a usage error
// and cleaned up defensively.
//
// Received messages are decoded once per subject and shared by reference
// among all subscribers; mutating a received message in place can affect
// other consumers.
type Subscriber[T any] struct {
	recv         *sharedReceiver[T]
	lst          *listener[T]
	pollInterval time.Duration
	logger       types.Logger

	// closed is heap-shared with the leak guard so the cleanup can tell
	// whether Close ever ran.
	closed *atomic.Bool

	mu       sync.Mutex
	bgCancel context.CancelFunc
}

// leakGuard holds everything needed to release a subscriber that became
// unreachable without being closed. It must not reference the Subscriber
// itself, or the cleanup would never run.
type leakGuard[T any] struct {
	subject string
	recv    *sharedReceiver[T]
	lst     *listener[T]
	closed  *atomic.Bool
	logger  types.Logger
	metrics types.MetricsCollector
	leaked  *atomic.Uint64
}

func (g *leakGuard[T]) release() {
	if !g.closed.CompareAndSwap(false, true) {
		return
	}
	g.logger.Warn("subscriber became unreachable without being closed; releasing its listener",
		"subject", g.subject)
	g.metrics.RecordLeakedSubscriber()
	g.leaked.Add(1)
	g.recv.removeListener(g.lst)
}

// newSubscriber attaches a fresh listener-backed handle to a receiver and
// arms the leak diagnostic.
func newSubscriber[T any](recv *sharedReceiver[T], lst *listener[T], p *Presentation) *Subscriber[T] {
	s := &Subscriber[T]{
		recv:         recv,
		lst:          lst,
		pollInterval: recv.pollInterval,
		logger:       recv.logger,
		closed:       &atomic.Bool{},
	}
	guard := &leakGuard[T]{
		subject: recv.subject,
		recv:    recv,
		lst:     lst,
		closed:  s.closed,
		logger:  recv.logger,
		metrics: recv.metrics,
		leaked:  &p.leaked,
	}
	runtime.AddCleanup(s, func(g *leakGuard[T]) { g.release() }, guard)

	return s
}

// checkOpen reports why the subscriber is unusable, or nil. Observing a
// receiver fault transitions the handle to closed; every call from then on
// returns a closed error chained to the fault.
func (s *Subscriber[T]) checkOpen() error {
	if fault := s.lst.terminalFailure(); fault != nil {
		s.closed.Store(true)
		if errors.Is(fault, ErrSubscriberClosed) {
			return ErrSubscriberClosed
		}

		return fmt.Errorf("%w: shared receiver fault: %w", ErrSubscriberClosed, fault)
	}
	if s.closed.Load() {
		return ErrSubscriberClosed
	}

	return nil
}

// ReceiveFor returns the next message from this subscriber's queue, or
// (nil, nil) if none arrives within timeout.
//
// A non-positive timeout performs a non-blocking poll and returns without
// suspending, even when the timeout is negative. A positive timeout blocks
// until a message arrives, the timeout elapses, or ctx is cancelled. An
// elapsed timeout is not an error.
//
// Fails with ErrSubscriberClosed when the handle is closed; when the shared
// receiver terminated with a transport fault, the error additionally wraps
// that fault.
func (s *Subscriber[T]) ReceiveFor(ctx context.Context, timeout time.Duration) (*Delivery[T], error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if d, ok := s.lst.pop(); ok {
		return &d, nil
	}
	if timeout <= 0 {
		return nil, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.lst.failed:
			return nil, s.checkOpen()
		case <-s.lst.notify:
			if d, ok := s.lst.pop(); ok {
				return &d, nil
			}
			// Coalesced signal for an item we already popped; keep waiting.
		case <-timer.C:
			return nil, nil
		}
	}
}

// ReceiveUntil is ReceiveFor with a deadline instead of a timeout. A
// deadline in the past translates into a non-blocking poll.
func (s *Subscriber[T]) ReceiveUntil(ctx context.Context, deadline time.Time) (*Delivery[T], error) {
	return s.ReceiveFor(ctx, time.Until(deadline))
}

// Receive is ReceiveFor with an infinite timeout: it never returns
// (nil, nil), only a delivery or an error. Internally it retries with the
// poll interval so the call returns promptly once the handle is closed.
func (s *Subscriber[T]) Receive(ctx context.Context) (*Delivery[T], error) {
	for {
		d, err := s.ReceiveFor(ctx, s.pollInterval)
		if err != nil {
			return nil, err
		}
		if d != nil {
			return d, nil
		}
	}
}

// ReceiveInBackground starts a task that invokes handler for every received
// message. Calling it again replaces the previous handler; only the last
// one stays active. Handler errors and panics are logged and do not stop
// the loop. The task stops when the subscriber is closed; unexpected
// receive failures throttle the loop with a jittered pause instead of
// spinning.
//
// Do not combine background delivery with the direct receive API on the
// same subscriber; doing so makes message distribution unpredictable.
func (s *Subscriber[T]) ReceiveInBackground(handler MessageHandler[T]) {
	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	if s.bgCancel != nil {
		s.bgCancel()
	}
	s.bgCancel = cancel
	s.mu.Unlock()

	go s.deliverLoop(ctx, handler)
}

func (s *Subscriber[T]) deliverLoop(ctx context.Context, handler MessageHandler[T]) {
	var pause time.Duration

	for {
		d, err := s.Receive(ctx)
		switch {
		case err == nil:
			pause = 0
			s.invokeHandler(ctx, handler, d)
		case errors.Is(err, context.Canceled):
			s.logger.Debug("background delivery cancelled", "subject", s.recv.subject)

			return
		case errors.Is(err, ErrSubscriberClosed):
			s.logger.Debug("background delivery stopped: subscriber closed", "subject", s.recv.subject)

			return
		default:
			// Crude throttle against fault storms.
			pause = jitterBackoff(pause, backgroundRetryBase, backgroundRetryMultiplier, backgroundRetryCap, nil)
			s.logger.Error("background delivery receive failed, retrying",
				"subject", s.recv.subject, "pause", pause, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(pause):
			}
		}
	}
}

func (s *Subscriber[T]) invokeHandler(ctx context.Context, handler MessageHandler[T], d *Delivery[T]) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("message handler panicked", "subject", s.recv.subject, "panic", rec)
		}
	}()

	if err := handler(ctx, d.Message, d.Transfer); err != nil {
		s.logger.Error("message handler failed", "subject", s.recv.subject, "error", err)
	}
}

// Messages returns an iterator over received messages and their transfers.
// The sequence is lazy and effectively infinite; it ends when the
// subscriber is closed (including closure caused by a receiver fault) or
// when ctx is cancelled.
//
//	for msg, transfer := range sub.Messages(ctx) {
//	    ...
//	}
//	// The loop stops shortly after the subscriber is closed.
func (s *Subscriber[T]) Messages(ctx context.Context) iter.Seq2[T, transport.Transfer] {
	return func(yield func(T, transport.Transfer) bool) {
		for {
			d, err := s.Receive(ctx)
			if err != nil {
				return
			}
			if !yield(d.Message, d.Transfer) {
				return
			}
		}
	}
}

// SampleStatistics returns the subscriber's counters together with the
// shared transport session snapshot. Safe to call on a closed subscriber.
func (s *Subscriber[T]) SampleStatistics() SubscriberStatistics {
	pushes, overruns := s.lst.counters()

	return SubscriberStatistics{
		Transport:               s.recv.session.SampleStatistics(),
		Messages:                pushes,
		Overruns:                overruns,
		DeserializationFailures: s.recv.deserializationFailures.Load(),
	}
}

// Close detaches the subscriber from the shared receiver and cancels any
// background delivery task without waiting for it to finish. Closing the
// last subscriber of a subject shuts the shared receiver down and releases
// its transport session. Idempotent; never fails.
func (s *Subscriber[T]) Close() error {
	first := s.closed.CompareAndSwap(false, true)

	s.mu.Lock()
	cancel := s.bgCancel
	s.bgCancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if first {
		s.recv.removeListener(s.lst)
	}

	return nil
}
