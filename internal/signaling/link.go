package signaling

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"

	"github.com/1ureka/tiltlink/internal/transport"
	"github.com/1ureka/tiltlink/internal/util"
)

var errUnexpectedMessage = errors.New("unexpected signaling message")

// side is the part a link plays in the offer/answer exchange.
type side uint8

const (
	sideOfferer  side = iota + 1 // pad
	sideAnswerer                 // receiver
)

// link runs one side of the SDP/ICE exchange for a Peer over a WebSocket.
//
// Remote candidates may arrive before the remote description (they are
// trickled concurrently with the offer); those are held back and applied
// once the description is set.
type link struct {
	side side
	peer *transport.Peer
	conn *websocket.Conn

	writeMu sync.Mutex

	described bool
	pending   []webrtc.ICECandidateInit
}

// newLink wires peer to conn and starts trickling local candidates.
func newLink(s side, peer *transport.Peer, conn *websocket.Conn) *link {
	l := &link{side: s, peer: peer, conn: conn}

	// Errors are ignored: once the DataChannel is open the WebSocket is
	// gone and late candidates are irrelevant.
	peer.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		data, err := json.Marshal(c.ToJSON())
		if err != nil {
			return
		}
		_ = l.write(message{Type: msgTypeCandidate, Candidate: string(data)})
	})
	return l
}

func (l *link) write(msg message) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	return l.conn.WriteJSON(msg)
}

// offer sets and sends the local offer. Offerer only.
func (l *link) offer() error {
	sdp, err := l.peer.CreateOffer()
	if err != nil {
		return err
	}
	if err := l.peer.SetLocalDescription(sdp); err != nil {
		return err
	}
	return l.write(message{Type: msgTypeOffer, SDP: sdp.SDP})
}

// run applies inbound messages until the WebSocket fails or is closed.
func (l *link) run() error {
	for {
		var msg message
		if err := l.conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("failed to read WS message: %w", err)
		}
		if err := l.handle(msg); err != nil {
			return err
		}
	}
}

// handle applies one message. It is only called from the read loop.
func (l *link) handle(msg message) error {
	switch msg.Type {
	case msgTypeOffer:
		if l.side != sideAnswerer {
			return fmt.Errorf("%w: %s", errUnexpectedMessage, msg.Type)
		}
		if err := l.describe(webrtc.SDPTypeOffer, msg.SDP); err != nil {
			return err
		}
		answer, err := l.peer.CreateAnswer()
		if err != nil {
			return err
		}
		if err := l.peer.SetLocalDescription(answer); err != nil {
			return err
		}
		return l.write(message{Type: msgTypeAnswer, SDP: answer.SDP})

	case msgTypeAnswer:
		if l.side != sideOfferer {
			return fmt.Errorf("%w: %s", errUnexpectedMessage, msg.Type)
		}
		return l.describe(webrtc.SDPTypeAnswer, msg.SDP)

	case msgTypeCandidate:
		var c webrtc.ICECandidateInit
		if err := json.Unmarshal([]byte(msg.Candidate), &c); err != nil {
			return fmt.Errorf("failed to parse ICE candidate: %w", err)
		}
		if !l.described {
			l.pending = append(l.pending, c)
			return nil
		}
		return l.peer.AddICECandidate(c)

	default:
		util.LogDebug("[%s] ignoring signaling message %q", l.peer.Handle(), msg.Type)
		return nil
	}
}

// describe applies the remote SDP and flushes held-back candidates.
func (l *link) describe(t webrtc.SDPType, sdp string) error {
	if err := l.peer.SetRemoteDescription(webrtc.SessionDescription{Type: t, SDP: sdp}); err != nil {
		return err
	}
	l.described = true

	pending := l.pending
	l.pending = nil
	for _, c := range pending {
		if err := l.peer.AddICECandidate(c); err != nil {
			return err
		}
	}
	return nil
}
