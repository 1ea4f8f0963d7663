package signaling

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/1ureka/tiltlink/internal/session"
	"github.com/1ureka/tiltlink/internal/transport"
	"github.com/1ureka/tiltlink/internal/util"
)

// padHandle identifies the pad on the receiver side; a receiver has exactly
// one remote peer.
var padHandle = session.PeerHandle{ID: "pad", Name: "pad"}

// Dial executes the full receiver-side signaling flow:
//  1. Connect to the pad's WS server, announcing name
//  2. Create a Peer
//  3. Answer the Offer and exchange ICE candidates
//  4. Wait for the DataChannel to be ready
//  5. Close the WS connection
//  6. Return the ready Peer
func Dial(ctx context.Context, wsURL, name string, cfg transport.Config) (*transport.Peer, error) {
	target, err := withName(wsURL, name)
	if err != nil {
		return nil, err
	}

	// 1. Connect to WS server.
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to WS server: %w", err)
	}
	defer conn.Close()
	util.LogDebug("WS connected: %s", target)

	// 2. Create Peer.
	peer, err := transport.NewPeer(ctx, padHandle, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Peer: %w", err)
	}

	// 3. Perform SDP/ICE exchange.
	l := newLink(sideAnswerer, peer, conn)

	errCh := make(chan error, 1)
	go func() {
		errCh <- l.run() // Exits when conn is closed (deferred above).
	}()

	// 4. Wait for result.
	select {
	case <-peer.Ready():
		util.LogDebug("WebRTC DataChannel established, closing WS")
		return peer, nil

	case err := <-errCh:
		select {
		case <-peer.Ready():
			return peer, nil
		default:
		}
		peer.Close()
		return nil, fmt.Errorf("signaling failed: %w", err)

	case <-ctx.Done():
		peer.Close()
		return nil, ctx.Err()
	}
}

// NormalizeURL validates a user-supplied pad address and turns it into a
// WebSocket URL ending in /ws. The query string (pin) is preserved and the
// scheme defaults to ws for a bare host:port.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw != "" && !strings.Contains(raw, "://") {
		raw = "ws://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid WebSocket URL: %s", raw)
	}

	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported URL scheme: %s", u.Scheme)
	}

	u.Path = "/ws"
	u.Fragment = ""
	return u.String(), nil
}

// withName adds the display name to the query string.
func withName(wsURL, name string) (string, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return "", fmt.Errorf("invalid WebSocket URL: %w", err)
	}
	if name != "" {
		q := u.Query()
		q.Set("name", name)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
