// Package transport carries control frames to remote peers over WebRTC
// DataChannels, and reports peer lifecycle changes as session events.
package transport

import (
	"context"
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/tiltlink/internal/session"
	"github.com/1ureka/tiltlink/internal/util"
)

// highWaterMark bounds the DataChannel send buffer. Above it frames are
// dropped instead of queued: only the latest state matters.
const highWaterMark = 16 * 1024

var (
	ErrNotReady    = errors.New("data channel not open")
	ErrCongested   = errors.New("data channel send buffer full")
	ErrUnknownPeer = errors.New("unknown peer")
	ErrHubClosed   = errors.New("hub closed")
)

// Peer wraps a single PeerConnection + control DataChannel pair.
//
// Its lifecycle is governed by the DataChannel state, the PeerConnection
// reaching a terminal state, and the context passed at construction time.
type Peer struct {
	handle session.PeerHandle

	pc *webrtc.PeerConnection
	dc *webrtc.DataChannel

	openSignal chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	pcState webrtc.PeerConnectionState
}

// NewPeer creates a Peer backed by a new PeerConnection and the
// pre-negotiated control DataChannel. The caller performs signaling via the
// exposed methods (CreateOffer / CreateAnswer / …) and then uses Send /
// OnFrame for data transfer.
func NewPeer(ctx context.Context, handle session.PeerHandle, cfg Config) (*Peer, error) {
	pc, err := newPeerConnection(cfg)
	if err != nil {
		return nil, err
	}

	dc, err := newDataChannel(pc)
	if err != nil {
		pc.Close()
		return nil, err
	}

	pCtx, pCancel := context.WithCancel(ctx)

	p := &Peer{
		handle:     handle,
		pc:         pc,
		dc:         dc,
		openSignal: make(chan struct{}),
		ctx:        pCtx,
		cancel:     pCancel,
		pcState:    webrtc.PeerConnectionStateNew,
	}

	// DC open gate.
	var openOnce sync.Once
	dc.OnOpen(func() {
		openOnce.Do(func() { close(p.openSignal) })
	})

	// DC close → cancel peer context.
	dc.OnClose(func() {
		util.LogDebug("[%s] DataChannel closed", handle)
		pCancel()
	})

	// A failed or closed PeerConnection never recovers.
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		util.LogDebug("[%s] PeerConnection state: %s", handle, state.String())
		p.mu.Lock()
		p.pcState = state
		p.mu.Unlock()

		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			pCancel()
		}
	})

	return p, nil
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Handle returns the identity of the remote endpoint.
func (p *Peer) Handle() session.PeerHandle { return p.handle }

// Ready returns a channel that is closed when the DataChannel is open.
func (p *Peer) Ready() <-chan struct{} {
	return p.openSignal
}

// Done returns a channel that is closed when the Peer is shut down
// (DataChannel closed, PeerConnection failed or parent context cancelled).
func (p *Peer) Done() <-chan struct{} {
	return p.ctx.Done()
}

// Close shuts down the DataChannel and PeerConnection.
func (p *Peer) Close() error {
	p.cancel()
	return errors.Join(p.dc.Close(), p.pc.Close())
}

// ConnectionState returns the last observed PeerConnection state.
func (p *Peer) ConnectionState() webrtc.PeerConnectionState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pcState
}

// ---------------------------------------------------------------------------
// Signaling
// ---------------------------------------------------------------------------

// CreateOffer generates an SDP offer.
func (p *Peer) CreateOffer() (webrtc.SessionDescription, error) {
	return p.pc.CreateOffer(nil)
}

// CreateAnswer generates an SDP answer.
func (p *Peer) CreateAnswer() (webrtc.SessionDescription, error) {
	return p.pc.CreateAnswer(nil)
}

// SetLocalDescription applies the local SDP.
func (p *Peer) SetLocalDescription(sdp webrtc.SessionDescription) error {
	return p.pc.SetLocalDescription(sdp)
}

// SetRemoteDescription applies the remote SDP.
func (p *Peer) SetRemoteDescription(sdp webrtc.SessionDescription) error {
	return p.pc.SetRemoteDescription(sdp)
}

// OnICECandidate registers a callback invoked whenever a new local ICE
// candidate is gathered. A nil candidate signals the end of gathering.
func (p *Peer) OnICECandidate(fn func(*webrtc.ICECandidate)) {
	p.pc.OnICECandidate(fn)
}

// AddICECandidate adds a remote ICE candidate received through signaling.
func (p *Peer) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return p.pc.AddICECandidate(candidate)
}

// ---------------------------------------------------------------------------
// Data
// ---------------------------------------------------------------------------

// Send writes one frame as one DataChannel message. It never blocks: when the
// channel is not open or its buffer is above the high-water mark the frame
// is dropped and an error returned.
func (p *Peer) Send(data []byte) error {
	select {
	case <-p.openSignal:
	default:
		return ErrNotReady
	}

	if p.dc.BufferedAmount() > highWaterMark {
		return ErrCongested
	}
	return p.dc.Send(data)
}

// OnFrame registers a callback invoked for every inbound DataChannel message.
// The slice is owned by the callback.
func (p *Peer) OnFrame(fn func([]byte)) {
	p.dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		data := make([]byte, len(msg.Data))
		copy(data, msg.Data)
		fn(data)
	})
}
