package prism

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lumenmq/prism/codec"
	"github.com/lumenmq/prism/internal/logger"
	"github.com/lumenmq/prism/metrics"
	"github.com/lumenmq/prism/transport"
	"github.com/lumenmq/prism/types"
)

// subjectReceiver is the type-erased registry view of a sharedReceiver.
type subjectReceiver interface {
	close()
	messageType() reflect.Type
}

// Presentation is the registry of shared receivers. It guarantees that at
// most one transport session exists per subject regardless of how many
// subscribers are attached, and it is the sole creator of subscribers.
//
// All methods are safe for concurrent use.
type Presentation struct {
	transport     transport.Transport
	logger        types.Logger
	metrics       types.MetricsCollector
	pollInterval  time.Duration
	queueCapacity int

	mu        sync.Mutex
	receivers map[string]subjectReceiver
	closed    bool

	leaked atomic.Uint64
}

// NewPresentation creates a presentation layer on top of the given
// transport.
//
// Example:
//
//	p := prism.NewPresentation(tr,
//	    prism.WithQueueCapacity(64),
//	)
//	defer p.Close()
func NewPresentation(tr transport.Transport, opts ...Option) *Presentation {
	o := presentationOptions{
		logger:        logger.NewNop(),
		metrics:       metrics.NewNop(),
		pollInterval:  DefaultPollInterval,
		queueCapacity: DefaultQueueCapacity,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.NewNop()
	}
	if o.metrics == nil {
		o.metrics = metrics.NewNop()
	}
	if o.pollInterval <= 0 {
		o.pollInterval = DefaultPollInterval
	}

	return &Presentation{
		transport:     tr,
		logger:        o.logger,
		metrics:       o.metrics,
		pollInterval:  o.pollInterval,
		queueCapacity: o.queueCapacity,
		receivers:     make(map[string]subjectReceiver),
	}
}

// Subscribe returns a new independent subscriber for the subject. The first
// subscriber of a subject opens a transport session and starts the shared
// receive loop; later subscribers attach to the existing receiver. A
// subject can only be subscribed with one message type at a time;
// subscribing with a different T fails with ErrSubjectTypeConflict.
//
// The returned subscriber must be closed when no longer needed.
func Subscribe[T any](
	ctx context.Context,
	p *Presentation,
	subject string,
	decoder codec.Decoder[T],
	opts ...SubscribeOption,
) (*Subscriber[T], error) {
	if p.transport == nil {
		return nil, ErrTransportRequired
	}
	if decoder == nil {
		return nil, ErrDecoderRequired
	}

	so := subscribeOptions{queueCapacity: p.queueCapacity}
	for _, opt := range opts {
		opt(&so)
	}
	if so.queueCapacity < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidQueueCapacity, so.queueCapacity)
	}

	lst := newListener[T](so.queueCapacity)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPresentationClosed
	}

	if existing, ok := p.receivers[subject]; ok {
		recv, ok := existing.(*sharedReceiver[T])
		if !ok {
			return nil, fmt.Errorf("%w: subject %q is bound to %v",
				ErrSubjectTypeConflict, subject, existing.messageType())
		}
		if err := recv.addListener(lst); err == nil {
			return newSubscriber(recv, lst, p), nil
		}
		// The receiver terminated but its finalizer has not detached it
		// yet; fall through and replace it with a fresh one.
		delete(p.receivers, subject)
	}

	session, err := p.transport.OpenReceiveSession(ctx, subject)
	if err != nil {
		return nil, fmt.Errorf("failed to open receive session for subject %q: %w", subject, err)
	}

	var recv *sharedReceiver[T]
	finalizer := func(sessions []transport.Session) {
		p.detach(subject, recv)
		for _, s := range sessions {
			if cerr := s.Close(); cerr != nil {
				p.logger.Warn("failed to close transport session",
					"subject", subject, "error", cerr)
			}
		}
	}
	recv = newSharedReceiver(subject, session, decoder, finalizer, p.pollInterval, p.logger, p.metrics)

	// Attach before starting the loop so the first transfer cannot race past
	// an empty listener set.
	if err := recv.addListener(lst); err != nil {
		// Unreachable: a fresh receiver is never closed.
		return nil, err
	}
	p.receivers[subject] = recv
	recv.start()
	p.logger.Debug("opened shared receiver", "subject", subject)

	return newSubscriber(recv, lst, p), nil
}

// detach removes a terminated receiver from the registry. Identity is
// compared so a stale finalizer cannot remove a replacement receiver that
// was created for the same subject in the meantime.
func (p *Presentation) detach(subject string, recv subjectReceiver) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if current, ok := p.receivers[subject]; ok && current == recv {
		delete(p.receivers, subject)
		p.logger.Debug("closed shared receiver", "subject", subject)
	}
}

// LeakedSubscribers returns the number of subscribers that were garbage
// collected without an explicit Close. A non-zero value indicates a caller
// defect, not normal operation.
func (p *Presentation) LeakedSubscribers() uint64 {
	return p.leaked.Load()
}

// Close shuts down every shared receiver. Their transport sessions are
// released through the regular finalizer path, and every attached
// subscriber observes a closed error on its next receive. Idempotent.
func (p *Presentation) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()

		return nil
	}
	p.closed = true
	receivers := make([]subjectReceiver, 0, len(p.receivers))
	for _, r := range p.receivers {
		receivers = append(receivers, r)
	}
	p.mu.Unlock()

	for _, r := range receivers {
		r.close()
	}

	return nil
}
