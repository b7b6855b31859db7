package prism

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lumenmq/prism/codec"
	"github.com/lumenmq/prism/transport/loopback"
)

func TestSubscribe_ValidatesArguments(t *testing.T) {
	ctx := context.Background()

	t.Run("nil transport", func(t *testing.T) {
		p := NewPresentation(nil)
		_, err := Subscribe(ctx, p, "x", codec.JSON[reading]())
		require.ErrorIs(t, err, ErrTransportRequired)
	})

	t.Run("nil decoder", func(t *testing.T) {
		_, p := newTestStack(t)
		_, err := Subscribe[reading](ctx, p, "x", nil)
		require.ErrorIs(t, err, ErrDecoderRequired)
	})

	t.Run("negative queue capacity", func(t *testing.T) {
		_, p := newTestStack(t)
		_, err := Subscribe(ctx, p, "x", codec.JSON[reading](), WithSubscriberQueueCapacity(-1))
		require.ErrorIs(t, err, ErrInvalidQueueCapacity)
	})
}

func TestSubscribe_SharesOneSessionPerSubject(t *testing.T) {
	_, p := newTestStack(t)
	ctx := context.Background()

	a, err := Subscribe(ctx, p, "shared", codec.JSON[reading]())
	require.NoError(t, err)
	defer a.Close()
	b, err := Subscribe(ctx, p, "shared", codec.JSON[reading]())
	require.NoError(t, err)
	defer b.Close()

	require.Same(t, a.recv, b.recv)
	require.NotSame(t, a.lst, b.lst)
}

func TestSubscribe_SubjectTypeConflict(t *testing.T) {
	_, p := newTestStack(t)
	ctx := context.Background()

	sub, err := Subscribe(ctx, p, "typed", codec.JSON[reading]())
	require.NoError(t, err)
	defer sub.Close()

	_, err = Subscribe(ctx, p, "typed", codec.JSON[string]())
	require.ErrorIs(t, err, ErrSubjectTypeConflict)
	require.ErrorContains(t, err, "typed")
}

func TestSubscribe_AfterLastCloseCreatesFreshReceiver(t *testing.T) {
	tr, p := newTestStack(t)
	ctx := context.Background()

	first, err := Subscribe(ctx, p, "reborn", codec.JSON[reading]())
	require.NoError(t, err)
	firstRecv := first.recv
	require.NoError(t, first.Close())

	require.Eventually(t, func() bool {
		return firstRecv.session.(*loopback.Session).Closed()
	}, time.Second, 5*time.Millisecond)

	// A new subscription on the same subject gets a new receiver and works
	// end to end.
	second, err := Subscribe(ctx, p, "reborn", codec.JSON[reading]())
	require.NoError(t, err)
	defer second.Close()
	require.NotSame(t, firstRecv, second.recv)

	publishReading(t, tr, "reborn", 5)

	d, err := second.ReceiveFor(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, d)
	require.Equal(t, 5, d.Message.Value)
}

func TestSubscribe_ReplacesFaultedReceiver(t *testing.T) {
	_, p := newTestStack(t)
	ctx := context.Background()

	first, err := Subscribe(ctx, p, "flaky", codec.JSON[reading]())
	require.NoError(t, err)
	defer first.Close()

	first.recv.session.(*loopback.Session).InjectFault(errors.New("link down"))
	require.Eventually(t, first.recv.isClosed, time.Second, 5*time.Millisecond)

	// Even if the terminated receiver is still in the registry, a new
	// subscription must not attach to it.
	second, err := Subscribe(ctx, p, "flaky", codec.JSON[reading]())
	require.NoError(t, err)
	defer second.Close()
	require.NotSame(t, first.recv, second.recv)
}

func TestPresentation_CloseFailsFurtherSubscribes(t *testing.T) {
	_, p := newTestStack(t)
	ctx := context.Background()

	sub, err := Subscribe(ctx, p, "closing", codec.JSON[reading]())
	require.NoError(t, err)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close()) // idempotent

	_, err = Subscribe(ctx, p, "closing", codec.JSON[reading]())
	require.ErrorIs(t, err, ErrPresentationClosed)

	// Existing subscribers observe the shutdown.
	_, err = sub.Receive(ctx)
	require.ErrorIs(t, err, ErrSubscriberClosed)
}

func TestPresentation_CloseReleasesAllSessions(t *testing.T) {
	_, p := newTestStack(t)
	ctx := context.Background()

	subjects := []string{"a", "b", "c"}
	sessions := make([]*loopback.Session, 0, len(subjects))
	for _, subject := range subjects {
		sub, err := Subscribe(ctx, p, subject, codec.JSON[reading]())
		require.NoError(t, err)
		sessions = append(sessions, sub.recv.session.(*loopback.Session))
	}

	require.NoError(t, p.Close())

	for _, session := range sessions {
		require.Eventually(t, session.Closed, time.Second, 5*time.Millisecond)
	}
}

func TestPresentation_LeakedSubscribersStartsAtZero(t *testing.T) {
	_, p := newTestStack(t)
	ctx := context.Background()

	sub, err := Subscribe(ctx, p, "tidy", codec.JSON[reading]())
	require.NoError(t, err)
	require.NoError(t, sub.Close())

	// An explicitly closed subscriber is never reported as leaked.
	require.Zero(t, p.LeakedSubscribers())
}
