// Package natsjs provides a transport.Transport implementation backed by a
// NATS JetStream stream.
//
// Each receive session is a filtered pull consumer on the configured
// stream. JetStream delivers messages in stream order without duplicates,
// which satisfies the reassembled-ordered-deduplicated contract of the
// transport boundary.
package natsjs

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/lumenmq/prism/internal/logger"
	"github.com/lumenmq/prism/transport"
	"github.com/lumenmq/prism/types"
)

// Default configuration values.
const (
	// DefaultConsumerPrefix prefixes the generated consumer names.
	DefaultConsumerPrefix = "prism"

	// DefaultInactiveThreshold lets the server clean up consumers whose
	// session vanished without a Close (e.g. a crashed process).
	DefaultInactiveThreshold = 5 * time.Minute
)

// Config configures a JetStream transport.
type Config struct {
	// Stream is the JetStream stream to consume from (required). The
	// stream's subject space must cover every subject passed to
	// OpenReceiveSession.
	Stream string

	// ConsumerPrefix prefixes generated consumer names (default "prism").
	ConsumerPrefix string

	// InactiveThreshold is the server-side cleanup threshold for abandoned
	// consumers (default 5m).
	InactiveThreshold time.Duration

	// Logger is optional; omit for no logging.
	Logger types.Logger
}

func (c *Config) applyDefaults() {
	if c.ConsumerPrefix == "" {
		c.ConsumerPrefix = DefaultConsumerPrefix
	}
	if c.InactiveThreshold <= 0 {
		c.InactiveThreshold = DefaultInactiveThreshold
	}
	if c.Logger == nil {
		c.Logger = logger.NewNop()
	}
}

// Transport opens receive sessions backed by JetStream pull consumers.
type Transport struct {
	js     jetstream.JetStream
	config Config
	logger types.Logger
}

// Compile-time interface check.
var _ transport.Transport = (*Transport)(nil)

// New creates a JetStream transport from a NATS connection.
//
// Example:
//
//	tr, err := natsjs.New(nc, natsjs.Config{Stream: "telemetry"})
func New(nc *nats.Conn, cfg Config) (*Transport, error) {
	if nc == nil {
		return nil, errors.New("NATS connection is required")
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return NewJS(js, cfg)
}

// NewJS creates a JetStream transport from a pre-initialized JetStream
// context. This overload enables looser coupling to the nats client.
func NewJS(js jetstream.JetStream, cfg Config) (*Transport, error) {
	if js == nil {
		return nil, errors.New("JetStream context is required")
	}
	if cfg.Stream == "" {
		return nil, errors.New("stream name is required")
	}
	cfg.applyDefaults()

	return &Transport{js: js, config: cfg, logger: cfg.Logger}, nil
}

// EnsureStream creates or updates the configured stream so that it covers
// the given subjects. Intended for tests and examples; production streams
// are usually provisioned externally.
func (t *Transport) EnsureStream(ctx context.Context, subjects ...string) error {
	_, err := t.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     t.config.Stream,
		Subjects: subjects,
	})
	if err != nil {
		return fmt.Errorf("failed to ensure stream %s: %w", t.config.Stream, err)
	}

	return nil
}

// OpenReceiveSession creates a filtered pull consumer for the subject and
// returns a session draining it. New sessions only observe messages
// published after they were opened.
func (t *Transport) OpenReceiveSession(ctx context.Context, subject string) (transport.Session, error) {
	name := consumerName(t.config.ConsumerPrefix, subject)
	cons, err := t.js.CreateOrUpdateConsumer(ctx, t.config.Stream, jetstream.ConsumerConfig{
		Name:              name,
		FilterSubjects:    []string{subject},
		AckPolicy:         jetstream.AckExplicitPolicy,
		DeliverPolicy:     jetstream.DeliverNewPolicy,
		InactiveThreshold: t.config.InactiveThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer %s: %w", name, err)
	}

	t.logger.Debug("opened JetStream receive session", "subject", subject, "consumer", name)

	return &session{
		transport: t,
		subject:   subject,
		consumer:  cons,
		name:      name,
	}, nil
}

// session is a JetStream-backed receive session.
type session struct {
	transport *Transport
	subject   string
	consumer  jetstream.Consumer
	name      string
	closed    atomic.Bool

	transfers    atomic.Uint64
	payloadBytes atomic.Uint64
	errCount     atomic.Uint64
}

// Compile-time interface check.
var _ transport.Session = (*session)(nil)

// Receive fetches the next message, waiting until the deadline at most. A
// deadline in the past performs a no-wait fetch. Transient fetch timeouts
// yield (nil, nil); connectivity failures are returned as errors.
func (s *session) Receive(ctx context.Context, deadline time.Time) (*transport.Transfer, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if s.closed.Load() {
		return nil, errors.New("session is closed")
	}

	var batch jetstream.MessageBatch
	var err error
	if wait := time.Until(deadline); wait > 0 {
		batch, err = s.consumer.Fetch(1, jetstream.FetchMaxWait(wait))
	} else {
		batch, err = s.consumer.FetchNoWait(1)
	}
	if err != nil {
		if isFetchTimeout(err) {
			return nil, nil
		}
		s.errCount.Add(1)

		return nil, fmt.Errorf("fetch failed: %w", err)
	}

	for msg := range batch.Messages() {
		// Disposition is fire-and-forget: the presentation layer has no
		// redelivery semantics, so a failed ack only costs a duplicate.
		_ = msg.Ack()

		return s.toTransfer(msg)
	}
	if berr := batch.Error(); berr != nil && !isFetchTimeout(berr) {
		s.errCount.Add(1)

		return nil, fmt.Errorf("fetch failed: %w", berr)
	}

	// Deadline expired with nothing to deliver.
	return nil, nil
}

func (s *session) toTransfer(msg jetstream.Msg) (*transport.Transfer, error) {
	tr := &transport.Transfer{
		Timestamp: time.Now(),
		Source:    msg.Subject(),
		Fragments: [][]byte{msg.Data()},
	}
	if meta, err := msg.Metadata(); err == nil {
		tr.Timestamp = meta.Timestamp
		tr.TransferID = meta.Sequence.Stream
	}
	s.transfers.Add(1)
	s.payloadBytes.Add(uint64(len(msg.Data())))

	return tr, nil
}

// SampleStatistics returns a snapshot of the session counters.
func (s *session) SampleStatistics() transport.Statistics {
	return transport.Statistics{
		Transfers:    s.transfers.Load(),
		PayloadBytes: s.payloadBytes.Load(),
		Errors:       s.errCount.Load(),
	}
}

// Close deletes the consumer. Deletion is best-effort: an unreachable
// server leaves the consumer for the InactiveThreshold cleanup.
func (s *session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.transport.js.DeleteConsumer(ctx, s.transport.config.Stream, s.name); err != nil {
		s.transport.logger.Warn("best-effort delete of consumer failed",
			"consumer", s.name, "error", err)
	}

	return nil
}
