package signaling

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/tiltlink/internal/protocol"
	"github.com/1ureka/tiltlink/internal/session"
	"github.com/1ureka/tiltlink/internal/transport"
)

// startServer runs a signaling Server behind httptest and returns the hub
// and the ws:// base URL.
func startServer(t *testing.T, pin string) (*transport.Hub, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	hub := transport.NewHub(ctx, transport.Config{})
	srv := NewServer(ctx, hub, pin)
	ts := httptest.NewServer(srv.Handler())

	t.Cleanup(func() {
		cancel()
		ts.Close()
		srv.Close()
		hub.Close()
	})
	return hub, "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

// nextEvent waits for one hub event.
func nextEvent(t *testing.T, hub *transport.Hub) session.Event {
	t.Helper()
	select {
	case ev := <-hub.Events():
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("no hub event within 5s")
		return session.Event{}
	}
}

// TestPINRejected verifies that a wrong PIN is refused before the upgrade.
func TestPINRejected(t *testing.T) {
	hub, base := startServer(t, "1234")

	_, resp, err := websocket.DefaultDialer.Dial(base+"?pin=0000", nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Zero(t, hub.Len())
}

// TestJoinOpensPeer verifies that a receiver joining gets a Peer on the hub,
// is offered an SDP, and is reported as connecting then disconnected when it
// walks away before the DataChannel opens.
func TestJoinOpensPeer(t *testing.T) {
	hub, base := startServer(t, "1234")

	conn, _, err := websocket.DefaultDialer.Dial(base+"?pin=1234&name=wheel", nil)
	require.NoError(t, err)

	ev := nextEvent(t, hub)
	assert.Equal(t, session.EventPeerStateChanged, ev.Kind)
	assert.Equal(t, session.StateConnecting, ev.State)
	assert.Equal(t, "wheel", ev.Peer.Name)
	assert.NotEmpty(t, ev.Peer.ID)

	// Candidates may be trickled before the offer is written.
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var offer message
	for offer.Type != msgTypeOffer {
		require.NoError(t, conn.ReadJSON(&offer))
	}
	assert.Contains(t, offer.SDP, "webrtc-datachannel")
	assert.Equal(t, 1, hub.Len())

	conn.Close()

	ev = nextEvent(t, hub)
	assert.Equal(t, session.StateDisconnected, ev.State)
	assert.Equal(t, "wheel", ev.Peer.Name)
	assert.Eventually(t, func() bool { return hub.Len() == 0 }, time.Second, 10*time.Millisecond)
}

// TestDefaultName verifies the fallback display name.
func TestDefaultName(t *testing.T) {
	hub, base := startServer(t, "")

	conn, _, err := websocket.DefaultDialer.Dial(base, nil)
	require.NoError(t, err)
	defer conn.Close()

	ev := nextEvent(t, hub)
	assert.Equal(t, defaultPeerName, ev.Peer.Name)
}

// TestLoopback runs a full pad ↔ receiver negotiation in-process and checks
// that a control frame crosses the DataChannel. Environments without a
// usable network interface cannot gather ICE candidates; the test is
// skipped there.
func TestLoopback(t *testing.T) {
	hub, base := startServer(t, "1234")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	peer, err := Dial(ctx, base+"?pin=1234", "wheel", transport.Config{})
	if errors.Is(err, context.DeadlineExceeded) {
		t.Skip("ICE did not connect in this environment")
	}
	require.NoError(t, err)
	defer peer.Close()

	frames := make(chan []byte, 1)
	peer.OnFrame(func(data []byte) {
		select {
		case frames <- data:
		default:
		}
	})

	sess := session.New(hub)
	go sess.Run(ctx, hub.Events())
	require.Eventually(t, sess.HasPeers, 5*time.Second, 10*time.Millisecond)

	want := protocol.ControlState{Steering: -0.25, Brake: true}
	frame := protocol.Encode(want)

	// Frames are unreliable: resend until one arrives.
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case data := <-frames:
			got, err := protocol.Decode(data)
			require.NoError(t, err)
			assert.Equal(t, want, got)
			return
		case <-ticker.C:
			sess.Send(frame[:])
		case <-ctx.Done():
			t.Fatal("no frame received")
		}
	}
}

// TestNormalizeURL covers the accepted address forms.
func TestNormalizeURL(t *testing.T) {
	testCases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "ws://10.0.0.2:5000/ws?pin=1234", want: "ws://10.0.0.2:5000/ws?pin=1234"},
		{in: "10.0.0.2:5000?pin=1234", want: "ws://10.0.0.2:5000/ws?pin=1234"},
		{in: "https://pad.local/anything", want: "wss://pad.local/ws"},
		{in: "  wss://pad.local  ", want: "wss://pad.local/ws"},
		{in: "ftp://pad.local", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := NormalizeURL(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

// TestGeneratePIN verifies length and digit alphabet.
func TestGeneratePIN(t *testing.T) {
	pin := GeneratePIN(6)
	assert.Len(t, pin, 6)
	for _, c := range pin {
		assert.True(t, c >= '0' && c <= '9')
	}
}
