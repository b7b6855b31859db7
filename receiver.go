package prism

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lumenmq/prism/codec"
	"github.com/lumenmq/prism/transport"
	"github.com/lumenmq/prism/types"
)

// finalizerFunc releases the transport sessions of a terminated receiver
// back to their owning layer. It is invoked exactly once, from the receive
// loop's exit path.
type finalizerFunc func(sessions []transport.Session)

// sharedReceiver owns the transport session of one subject and runs the
// single background loop that receives, decodes, and fans out transfers to
// every attached listener. It is shared by all subscribers of the subject
// and reference counted by its listener set: removing the last listener
// shuts it down.
type sharedReceiver[T any] struct {
	subject      string
	session      transport.Session
	decoder      codec.Decoder[T]
	finalizer    finalizerFunc
	pollInterval time.Duration
	logger       types.Logger
	metrics      types.MetricsCollector

	deserializationFailures atomic.Uint64

	mu        sync.Mutex
	listeners []*listener[T]
	closed    bool
	cancel    context.CancelFunc

	// done is closed after the finalizer ran and the terminal failure was
	// propagated to all listeners.
	done chan struct{}
}

func newSharedReceiver[T any](
	subject string,
	session transport.Session,
	decoder codec.Decoder[T],
	finalizer finalizerFunc,
	pollInterval time.Duration,
	logger types.Logger,
	metrics types.MetricsCollector,
) *sharedReceiver[T] {
	return &sharedReceiver[T]{
		subject:      subject,
		session:      session,
		decoder:      decoder,
		finalizer:    finalizer,
		pollInterval: pollInterval,
		logger:       logger,
		metrics:      metrics,
		done:         make(chan struct{}),
	}
}

// start launches the background receive loop.
func (r *sharedReceiver[T]) start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	go r.run(ctx)
}

// run is the background loop: receive with a short poll deadline so the
// closed flag is never starved, decode once, push to every listener.
// Decode failures are counted and absorbed; any transport error is fatal
// and becomes the terminal failure of every listener.
func (r *sharedReceiver[T]) run(ctx context.Context) {
	var fault error

	for ctx.Err() == nil && !r.isClosed() {
		tr, err := r.session.Receive(ctx, time.Now().Add(r.pollInterval))
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				break
			}
			fault = err
			r.logger.Error("transport receive failed, terminating subject receiver",
				"subject", r.subject, "error", err)
			r.metrics.RecordReceiverFault(r.subject)

			break
		}
		if tr == nil {
			// Poll deadline expired; loop around to re-check the closed flag.
			continue
		}

		msg, derr := r.decoder.Decode(tr.Fragments)
		if derr != nil {
			r.deserializationFailures.Add(1)
			r.metrics.RecordDeserializationFailure(r.subject)
			r.logger.Debug("dropping transfer with malformed payload",
				"subject", r.subject, "transferID", tr.TransferID, "error", derr)

			continue
		}

		r.mu.Lock()
		listeners := slices.Clone(r.listeners)
		r.mu.Unlock()

		for _, l := range listeners {
			if !l.push(msg, *tr) {
				r.metrics.RecordOverrun(r.subject)
			}
		}
		r.metrics.RecordMessage(r.subject)
	}

	r.terminate(fault)
}

// terminate finishes the receiver: marks it closed, releases the transport
// session through the finalizer exactly once, and propagates the terminal
// failure to every listener that is still attached.
func (r *sharedReceiver[T]) terminate(fault error) {
	r.mu.Lock()
	r.closed = true
	listeners := slices.Clone(r.listeners)
	r.mu.Unlock()

	r.finalizer([]transport.Session{r.session})

	terminal := fault
	if terminal == nil {
		terminal = ErrSubscriberClosed
	}
	for _, l := range listeners {
		l.fail(terminal)
	}

	close(r.done)
}

// addListener registers a listener. Fails once the receiver is closed.
func (r *sharedReceiver[T]) addListener(l *listener[T]) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrSubscriberClosed
	}
	r.listeners = append(r.listeners, l)
	r.metrics.SetListenerCount(r.subject, len(r.listeners))

	return nil
}

// removeListener detaches a listener. Always succeeds, even when the
// receiver is already closed. Removing the last listener of an open
// receiver shuts it down immediately instead of waiting for the next poll
// deadline.
func (r *sharedReceiver[T]) removeListener(l *listener[T]) {
	r.mu.Lock()
	idx := slices.Index(r.listeners, l)
	if idx >= 0 {
		r.listeners = slices.Delete(r.listeners, idx, idx+1)
	}
	r.metrics.SetListenerCount(r.subject, len(r.listeners))
	empty := len(r.listeners) == 0
	shutdown := empty && !r.closed
	if shutdown {
		r.closed = true
	}
	cancel := r.cancel
	r.mu.Unlock()

	if idx < 0 {
		// Indicates a double close or a listener that was never attached.
		r.logger.Warn("removed listener was not registered", "subject", r.subject)
	}
	if shutdown && cancel != nil {
		cancel()
	}
}

// close shuts the receiver down explicitly. The loop notices the
// cancellation and runs the regular termination path.
func (r *sharedReceiver[T]) close() {
	r.mu.Lock()
	r.closed = true
	cancel := r.cancel
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (r *sharedReceiver[T]) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.closed
}

// messageType reports the decoded message type, used by the registry to
// detect conflicting subscriptions on the same subject.
func (r *sharedReceiver[T]) messageType() reflect.Type {
	return reflect.TypeFor[T]()
}
