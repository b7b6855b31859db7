// Package loopback provides an in-process transport for tests and examples.
//
// A loopback Transport routes transfers published on a subject to every open
// receive session of that subject. Each session buffers transfers in a
// bounded channel; a full buffer drops the transfer and counts it, matching
// the non-blocking contract of the transport boundary.
package loopback

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/lumenmq/prism/transport"
)

// DefaultSessionBuffer is the per-session transfer buffer used when Config
// leaves SessionBuffer unset.
const DefaultSessionBuffer = 64

// ErrTransportClosed is returned when publishing or opening sessions on a
// closed transport.
var ErrTransportClosed = errors.New("loopback transport is closed")

// Config configures a loopback transport.
type Config struct {
	// SessionBuffer is the per-session transfer buffer size (default 64).
	SessionBuffer int
}

// Transport is an in-process transport.Transport implementation.
type Transport struct {
	bufSize  int
	closed   atomic.Bool
	subjects *xsync.Map[string, *subjectGroup]
}

// subjectGroup fans published transfers out to the sessions of one subject.
type subjectGroup struct {
	mu       sync.Mutex
	sessions []*Session
	nextID   atomic.Uint64
}

// New creates a loopback transport.
func New(cfg Config) *Transport {
	bufSize := cfg.SessionBuffer
	if bufSize <= 0 {
		bufSize = DefaultSessionBuffer
	}

	return &Transport{
		bufSize:  bufSize,
		subjects: xsync.NewMap[string, *subjectGroup](),
	}
}

// OpenReceiveSession opens a session receiving transfers published to the
// subject.
func (t *Transport) OpenReceiveSession(_ context.Context, subject string) (transport.Session, error) {
	if t.closed.Load() {
		return nil, ErrTransportClosed
	}

	group, _ := t.subjects.LoadOrCompute(subject, func() (*subjectGroup, bool) {
		return &subjectGroup{}, false
	})

	s := &Session{
		subject: subject,
		group:   group,
		ch:      make(chan *transport.Transfer, t.bufSize),
		faulted: make(chan struct{}),
	}

	group.mu.Lock()
	group.sessions = append(group.sessions, s)
	group.mu.Unlock()

	return s, nil
}

// Publish delivers a payload to every open session of the subject. The
// transfer ID is assigned per subject in publication order. Returns the
// assigned transfer ID.
func (t *Transport) Publish(subject string, fragments ...[]byte) (uint64, error) {
	if t.closed.Load() {
		return 0, ErrTransportClosed
	}

	group, ok := t.subjects.Load(subject)
	if !ok {
		// Nobody is listening; the transfer vanishes like on a real bus.
		return 0, nil
	}

	id := group.nextID.Add(1)
	tr := &transport.Transfer{
		Timestamp:  time.Now(),
		TransferID: id,
		Source:     "loopback",
		Fragments:  fragments,
	}

	group.mu.Lock()
	sessions := make([]*Session, len(group.sessions))
	copy(sessions, group.sessions)
	group.mu.Unlock()

	for _, s := range sessions {
		s.deliver(tr)
	}

	return id, nil
}

// Close closes the transport. Open sessions keep draining their buffers but
// receive nothing new.
func (t *Transport) Close() error {
	t.closed.Store(true)

	return nil
}

// Session is a loopback receive session.
type Session struct {
	subject string
	group   *subjectGroup
	ch      chan *transport.Transfer

	fault    error
	faulted  chan struct{}
	faultSet sync.Once

	closed atomic.Bool

	transfers    atomic.Uint64
	payloadBytes atomic.Uint64
	errCount     atomic.Uint64
	drops        atomic.Uint64
}

// Compile-time interface check.
var _ transport.Session = (*Session)(nil)

// deliver enqueues a transfer without blocking; a full buffer drops it.
func (s *Session) deliver(tr *transport.Transfer) {
	if s.closed.Load() {
		return
	}
	select {
	case s.ch <- tr:
	default:
		s.drops.Add(1)
	}
}

// InjectFault makes every subsequent Receive call fail with err. Used by
// tests to simulate a transport-level fault. Only the first injected fault
// sticks.
func (s *Session) InjectFault(err error) {
	s.faultSet.Do(func() {
		s.fault = err
		close(s.faulted)
	})
}

// Receive returns the next transfer, or (nil, nil) once the deadline
// expires. A deadline in the past polls without blocking.
func (s *Session) Receive(ctx context.Context, deadline time.Time) (*transport.Transfer, error) {
	if err := s.takeFault(); err != nil {
		return nil, err
	}

	wait := time.Until(deadline)
	if wait <= 0 {
		select {
		case tr := <-s.ch:
			return s.account(tr), nil
		default:
			return nil, nil
		}
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.faulted:
		return nil, s.takeFault()
	case tr := <-s.ch:
		return s.account(tr), nil
	case <-timer.C:
		return nil, nil
	}
}

func (s *Session) takeFault() error {
	select {
	case <-s.faulted:
		s.errCount.Add(1)

		return s.fault
	default:
		return nil
	}
}

func (s *Session) account(tr *transport.Transfer) *transport.Transfer {
	s.transfers.Add(1)
	s.payloadBytes.Add(uint64(tr.PayloadSize()))

	return tr
}

// SampleStatistics returns a snapshot of the session counters.
func (s *Session) SampleStatistics() transport.Statistics {
	return transport.Statistics{
		Transfers:    s.transfers.Load(),
		PayloadBytes: s.payloadBytes.Load(),
		Errors:       s.errCount.Load(),
		Drops:        s.drops.Load(),
	}
}

// Closed reports whether Close has been called. Tests use it to verify the
// exactly-once release of shared sessions.
func (s *Session) Closed() bool {
	return s.closed.Load()
}

// Close detaches the session from its subject group.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.group.mu.Lock()
	for i, other := range s.group.sessions {
		if other == s {
			s.group.sessions = append(s.group.sessions[:i], s.group.sessions[i+1:]...)

			break
		}
	}
	s.group.mu.Unlock()

	return nil
}
