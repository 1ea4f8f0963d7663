package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/tiltlink/internal/session"
	"github.com/1ureka/tiltlink/internal/transport"
)

var (
	alice = session.PeerHandle{ID: "a", Name: "alice"}
	bob   = session.PeerHandle{ID: "b", Name: "bob"}
	carol = session.PeerHandle{ID: "c", Name: "carol"}
)

// TestConnectedIdempotent verifies that repeated Connected events keep a
// single instance of the peer in the active set.
func TestConnectedIdempotent(t *testing.T) {
	s := session.New(transport.NewMemory())

	for i := 0; i < 3; i++ {
		require.NoError(t, s.OnPeerStateChanged(alice, session.StateConnected))
	}

	assert.Equal(t, 1, s.Len())
	assert.Equal(t, []session.PeerHandle{alice}, s.ActivePeers())
}

// TestDisconnectUnknownPeerIsNoop verifies that removing a peer that was
// never added leaves the set untouched.
func TestDisconnectUnknownPeerIsNoop(t *testing.T) {
	s := session.New(transport.NewMemory())
	require.NoError(t, s.OnPeerStateChanged(alice, session.StateConnected))

	require.NoError(t, s.OnPeerStateChanged(bob, session.StateDisconnected))
	assert.Equal(t, []session.PeerHandle{alice}, s.ActivePeers())

	require.NoError(t, s.OnPeerStateChanged(alice, session.StateDisconnected))
	require.NoError(t, s.OnPeerStateChanged(alice, session.StateDisconnected))
	assert.False(t, s.HasPeers())
}

// TestConnectingDoesNotActivate verifies that only Connected peers are
// eligible for send.
func TestConnectingDoesNotActivate(t *testing.T) {
	s := session.New(transport.NewMemory())
	require.NoError(t, s.OnPeerStateChanged(alice, session.StateConnecting))
	assert.Zero(t, s.Len())
}

// TestActivePeersSorted verifies the deterministic order of ActivePeers and
// that the returned slice is a copy.
func TestActivePeersSorted(t *testing.T) {
	s := session.New(transport.NewMemory())
	for _, p := range []session.PeerHandle{carol, alice, bob} {
		require.NoError(t, s.OnPeerStateChanged(p, session.StateConnected))
	}

	peers := s.ActivePeers()
	assert.Equal(t, []session.PeerHandle{alice, bob, carol}, peers)

	peers[0] = carol
	assert.Equal(t, alice, s.ActivePeers()[0])
}

// TestUnknownStatePolicies covers both deterministic policies.
func TestUnknownStatePolicies(t *testing.T) {
	bogus := session.ConnectionState(42)

	t.Run("lenient removes", func(t *testing.T) {
		s := session.New(transport.NewMemory())
		require.NoError(t, s.OnPeerStateChanged(alice, session.StateConnected))

		require.NoError(t, s.OnPeerStateChanged(alice, bogus))
		assert.Zero(t, s.Len())

		// Never adds.
		require.NoError(t, s.OnPeerStateChanged(bob, bogus))
		assert.Zero(t, s.Len())
	})

	t.Run("strict rejects", func(t *testing.T) {
		s := session.New(transport.NewMemory(), session.WithPolicy(session.PolicyStrict))
		require.NoError(t, s.OnPeerStateChanged(alice, session.StateConnected))

		err := s.OnPeerStateChanged(alice, bogus)
		assert.ErrorIs(t, err, session.ErrUnknownState)
		assert.Equal(t, 1, s.Len())
	})
}

// TestSendEmptySetNoIO verifies that sending with no peers succeeds and
// never reaches the transport.
func TestSendEmptySetNoIO(t *testing.T) {
	tr := transport.NewMemory()
	s := session.New(tr)

	report, err := s.Send([]byte{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)
	assert.Equal(t, session.Report{}, report)
	assert.Zero(t, tr.Calls())
}

// TestSendFanOut verifies that each active peer receives the frame once.
func TestSendFanOut(t *testing.T) {
	tr := transport.NewMemory()
	s := session.New(tr)
	require.NoError(t, s.OnPeerStateChanged(alice, session.StateConnected))
	require.NoError(t, s.OnPeerStateChanged(bob, session.StateConnected))

	frame := []byte{1, 2, 3, 4, 5, 6}
	report, err := s.Send(frame)
	require.NoError(t, err)
	assert.Equal(t, session.Report{Delivered: 2}, report)
	assert.Equal(t, [][]byte{frame}, tr.Frames(alice.ID))
	assert.Equal(t, [][]byte{frame}, tr.Frames(bob.ID))
}

// TestSendFailureIsolated verifies that a failing peer does not stop
// delivery to the others.
func TestSendFailureIsolated(t *testing.T) {
	tr := transport.NewMemory()
	s := session.New(tr)
	for _, p := range []session.PeerHandle{alice, bob, carol} {
		require.NoError(t, s.OnPeerStateChanged(p, session.StateConnected))
	}
	tr.Fail(bob.ID, errors.New("boom"))

	report, err := s.Send([]byte{0, 0, 0, 0, 1, 0})
	require.NoError(t, err)
	assert.Equal(t, session.Report{Delivered: 2, Failed: 1}, report)
	assert.Len(t, tr.Frames(alice.ID), 1)
	assert.Empty(t, tr.Frames(bob.ID))
	assert.Len(t, tr.Frames(carol.ID), 1)
}

// TestHandleEventDispatch verifies the tagged event entry point.
func TestHandleEventDispatch(t *testing.T) {
	var got []byte
	var from session.PeerHandle
	s := session.New(transport.NewMemory(), session.WithDataHandler(func(p session.PeerHandle, data []byte) {
		from, got = p, data
	}))

	require.NoError(t, s.HandleEvent(session.PeerStateChanged(alice, session.StateConnected)))
	assert.Equal(t, 1, s.Len())

	require.NoError(t, s.HandleEvent(session.DataReceived(bob, []byte("hi"))))
	assert.Equal(t, bob, from)
	assert.Equal(t, []byte("hi"), got)

	assert.NoError(t, s.HandleEvent(session.Event{Kind: 99}))
}

// TestRunConsumesEvents verifies the channel-driven event loop.
func TestRunConsumesEvents(t *testing.T) {
	tr := transport.NewMemory()
	s := session.New(tr)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, tr.Events()) }()

	tr.Connect(alice)
	tr.Connect(bob)
	tr.Disconnect(alice)

	require.Eventually(t, func() bool {
		peers := s.ActivePeers()
		return len(peers) == 1 && peers[0] == bob
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

// TestRunStrictStopsOnUnknownState verifies that strict mode turns an
// unknown state into a fatal error.
func TestRunStrictStopsOnUnknownState(t *testing.T) {
	tr := transport.NewMemory()
	s := session.New(tr, session.WithPolicy(session.PolicyStrict))

	tr.Connect(alice)
	tr.Emit(session.PeerStateChanged(alice, session.ConnectionState(0)))
	tr.Connect(bob)

	err := s.Run(context.Background(), tr.Events())
	assert.ErrorIs(t, err, session.ErrUnknownState)
	assert.Equal(t, []session.PeerHandle{alice}, s.ActivePeers())
}

// TestSubscribe verifies that observers are notified of applied changes.
func TestSubscribe(t *testing.T) {
	s := session.New(transport.NewMemory())
	changes, cancel := s.Subscribe()
	defer cancel()

	require.NoError(t, s.OnPeerStateChanged(alice, session.StateConnecting))
	require.NoError(t, s.OnPeerStateChanged(alice, session.StateConnected))
	require.NoError(t, s.OnPeerStateChanged(alice, session.StateDisconnected))

	want := []session.Change{
		{Peer: alice, State: session.StateConnecting, Active: 0},
		{Peer: alice, State: session.StateConnected, Active: 1},
		{Peer: alice, State: session.StateDisconnected, Active: 0},
	}
	for _, w := range want {
		assert.Equal(t, w, <-changes)
	}
}

// TestSubscribeSlowObserverNeverBlocks verifies that a subscriber that does
// not read cannot stall peer state handling.
func TestSubscribeSlowObserverNeverBlocks(t *testing.T) {
	s := session.New(transport.NewMemory())
	_, cancel := s.Subscribe()
	defer cancel()

	for i := 0; i < 100; i++ {
		require.NoError(t, s.OnPeerStateChanged(alice, session.StateConnected))
	}
	assert.Equal(t, 1, s.Len())
}

// TestClose verifies that Close clears the set, ends subscriptions, closes
// the transport and makes later sends fail.
func TestClose(t *testing.T) {
	tr := transport.NewMemory()
	s := session.New(tr)
	changes, _ := s.Subscribe()
	require.NoError(t, s.OnPeerStateChanged(alice, session.StateConnected))
	<-changes

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.True(t, tr.Closed())
	assert.Zero(t, s.Len())

	_, open := <-changes
	assert.False(t, open)

	_, err := s.Send([]byte{0, 0, 0, 0, 0, 0})
	assert.ErrorIs(t, err, session.ErrClosed)
	assert.ErrorIs(t, s.OnPeerStateChanged(bob, session.StateConnected), session.ErrClosed)
}
