package natsjs

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"

	prismtest "github.com/lumenmq/prism/testing"
)

func TestConsumerName(t *testing.T) {
	name := consumerName("prism", "sensor.temp")

	require.Regexp(t, `^prism-[0-9a-f]{16}$`, name)
	require.Equal(t, name, consumerName("prism", "sensor.temp"))
	require.NotEqual(t, name, consumerName("prism", "sensor.pressure"))
	require.NotEqual(t, name, consumerName("other", "sensor.temp"))
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, Config{Stream: "s"})
	require.Error(t, err)

	_, err = NewJS(nil, Config{Stream: "s"})
	require.Error(t, err)

	_, nc := prismtest.StartEmbeddedNATS(t)
	_, err = New(nc, Config{})
	require.ErrorContains(t, err, "stream name is required")
}

func newTestTransport(t *testing.T, nc *nats.Conn, subjects ...string) *Transport {
	t.Helper()

	tr, err := New(nc, Config{
		Stream: "PRISM_TEST",
		Logger: prismtest.NewTestLogger(t),
	})
	require.NoError(t, err)
	require.NoError(t, tr.EnsureStream(context.Background(), subjects...))

	return tr
}

func TestSessionReceive(t *testing.T) {
	_, nc := prismtest.StartEmbeddedNATS(t)
	tr := newTestTransport(t, nc, "telemetry.>")
	ctx := context.Background()

	session, err := tr.OpenReceiveSession(ctx, "telemetry.temp")
	require.NoError(t, err)
	defer session.Close()

	require.NoError(t, nc.Publish("telemetry.temp", []byte(`{"value":1}`)))
	require.NoError(t, nc.Publish("telemetry.pressure", []byte("filtered out")))
	require.NoError(t, nc.Flush())

	got, err := session.Receive(ctx, time.Now().Add(5*time.Second))
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "telemetry.temp", got.Source)
	require.Equal(t, [][]byte{[]byte(`{"value":1}`)}, got.Fragments)
	require.NotZero(t, got.TransferID)
	require.False(t, got.Timestamp.IsZero())

	// The filtered consumer never sees the other subject.
	got, err = session.Receive(ctx, time.Now().Add(200*time.Millisecond))
	require.NoError(t, err)
	require.Nil(t, got)

	stats := session.SampleStatistics()
	require.Equal(t, uint64(1), stats.Transfers)
	require.Equal(t, uint64(len(`{"value":1}`)), stats.PayloadBytes)
}

func TestSessionReceiveNoWait(t *testing.T) {
	_, nc := prismtest.StartEmbeddedNATS(t)
	tr := newTestTransport(t, nc, "nowait.>")
	ctx := context.Background()

	session, err := tr.OpenReceiveSession(ctx, "nowait.x")
	require.NoError(t, err)
	defer session.Close()

	// Past deadline means a no-wait fetch: prompt (nil, nil) when empty.
	start := time.Now()
	got, err := session.Receive(ctx, time.Now().Add(-time.Second))
	require.NoError(t, err)
	require.Nil(t, got)
	require.Less(t, time.Since(start), time.Second)
}

func TestSessionObservesOnlyNewMessages(t *testing.T) {
	_, nc := prismtest.StartEmbeddedNATS(t)
	tr := newTestTransport(t, nc, "history.>")
	ctx := context.Background()

	require.NoError(t, nc.Publish("history.x", []byte("old")))
	require.NoError(t, nc.Flush())
	// The stream must have stored the message before the consumer exists.
	time.Sleep(100 * time.Millisecond)

	session, err := tr.OpenReceiveSession(ctx, "history.x")
	require.NoError(t, err)
	defer session.Close()

	require.NoError(t, nc.Publish("history.x", []byte("new")))
	require.NoError(t, nc.Flush())

	got, err := session.Receive(ctx, time.Now().Add(5*time.Second))
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, [][]byte{[]byte("new")}, got.Fragments)
}

func TestSessionClose(t *testing.T) {
	_, nc := prismtest.StartEmbeddedNATS(t)
	tr := newTestTransport(t, nc, "closing.>")
	ctx := context.Background()

	session, err := tr.OpenReceiveSession(ctx, "closing.x")
	require.NoError(t, err)

	require.NoError(t, session.Close())
	require.NoError(t, session.Close()) // idempotent

	_, err = session.Receive(ctx, time.Now().Add(time.Second))
	require.Error(t, err)
}
