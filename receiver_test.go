package prism

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lumenmq/prism/codec"
	"github.com/lumenmq/prism/internal/logger"
	"github.com/lumenmq/prism/metrics"
	"github.com/lumenmq/prism/transport"
	"github.com/lumenmq/prism/transport/loopback"
)

// newTestReceiver wires a sharedReceiver to a fresh loopback session with a
// finalizer that counts invocations and closes the sessions it is given.
func newTestReceiver(t *testing.T, finalized *atomic.Int32) (*sharedReceiver[int], *loopback.Transport) {
	t.Helper()

	tr := loopback.New(loopback.Config{})
	session, err := tr.OpenReceiveSession(context.Background(), "test.subject")
	require.NoError(t, err)

	finalizer := func(sessions []transport.Session) {
		finalized.Add(1)
		for _, s := range sessions {
			_ = s.Close()
		}
	}
	recv := newSharedReceiver("test.subject", session, codec.JSON[int](), finalizer,
		20*time.Millisecond, logger.NewNop(), metrics.NewNop())

	return recv, tr
}

func TestSharedReceiver_AddListenerAfterCloseFails(t *testing.T) {
	var finalized atomic.Int32
	recv, _ := newTestReceiver(t, &finalized)
	recv.start()

	recv.close()
	<-recv.done

	err := recv.addListener(newListener[int](0))
	require.ErrorIs(t, err, ErrSubscriberClosed)
	require.Equal(t, int32(1), finalized.Load())
}

func TestSharedReceiver_LastListenerRemovalShutsDown(t *testing.T) {
	var finalized atomic.Int32
	recv, _ := newTestReceiver(t, &finalized)

	lst := newListener[int](0)
	require.NoError(t, recv.addListener(lst))
	recv.start()

	start := time.Now()
	recv.removeListener(lst)

	select {
	case <-recv.done:
	case <-time.After(time.Second):
		t.Fatal("receiver did not shut down after last listener removal")
	}
	// Shutdown is triggered by cancellation, not by the next poll timeout.
	require.Less(t, time.Since(start), 500*time.Millisecond)
	require.Equal(t, int32(1), finalized.Load())
}

func TestSharedReceiver_FinalizerRunsExactlyOnce(t *testing.T) {
	var finalized atomic.Int32
	recv, _ := newTestReceiver(t, &finalized)

	lst := newListener[int](0)
	require.NoError(t, recv.addListener(lst))
	recv.start()

	// Race an explicit close against last-listener removal; both shutdown
	// triggers must converge on a single finalizer invocation.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		recv.close()
	}()
	go func() {
		defer wg.Done()
		recv.removeListener(lst)
	}()
	wg.Wait()

	<-recv.done
	require.Equal(t, int32(1), finalized.Load())
}

func TestSharedReceiver_TransportFaultPropagatesToListeners(t *testing.T) {
	var finalized atomic.Int32
	recv, _ := newTestReceiver(t, &finalized)

	lst := newListener[int](0)
	require.NoError(t, recv.addListener(lst))
	recv.start()

	boom := errors.New("link down")
	recv.session.(*loopback.Session).InjectFault(boom)

	select {
	case <-recv.done:
	case <-time.After(time.Second):
		t.Fatal("receiver did not terminate on transport fault")
	}
	require.ErrorIs(t, lst.terminalFailure(), boom)
	require.Equal(t, int32(1), finalized.Load())
}

func TestSharedReceiver_CleanShutdownPropagatesClosed(t *testing.T) {
	var finalized atomic.Int32
	recv, _ := newTestReceiver(t, &finalized)

	lst := newListener[int](0)
	require.NoError(t, recv.addListener(lst))
	recv.start()

	recv.close()
	<-recv.done

	require.ErrorIs(t, lst.terminalFailure(), ErrSubscriberClosed)
}

func TestSharedReceiver_RemoveUnknownListenerIsHarmless(t *testing.T) {
	var finalized atomic.Int32
	recv, _ := newTestReceiver(t, &finalized)

	lst := newListener[int](0)
	require.NoError(t, recv.addListener(lst))
	recv.start()
	defer func() {
		recv.close()
		<-recv.done
	}()

	// Never-registered listener: logged, not fatal, and the registered
	// listener set is untouched.
	recv.removeListener(newListener[int](0))
	require.False(t, recv.isClosed())
}
