package transport

import (
	"context"
	"errors"
	"sync"

	"github.com/1ureka/tiltlink/internal/session"
	"github.com/1ureka/tiltlink/internal/util"
)

const eventBufferSize = 64

// Hub owns every Peer of the pad. It implements session.Transport and turns
// DataChannel lifecycle callbacks into session events:
//
//	Open            → StateConnecting
//	DataChannel up  → StateConnected
//	Peer done       → StateDisconnected
type Hub struct {
	cfg Config

	ctx    context.Context
	cancel context.CancelFunc
	events chan session.Event

	mu    sync.RWMutex
	peers map[string]*Peer
	wg    sync.WaitGroup
}

// NewHub creates an empty Hub. Peers opened on it are closed when ctx is
// cancelled or Close is called.
func NewHub(ctx context.Context, cfg Config) *Hub {
	hCtx, hCancel := context.WithCancel(ctx)
	return &Hub{
		cfg:    cfg,
		ctx:    hCtx,
		cancel: hCancel,
		events: make(chan session.Event, eventBufferSize),
		peers:  make(map[string]*Peer),
	}
}

// Events returns the stream of session events produced by the Hub. The
// channel is never closed; consumers stop on their own context.
func (h *Hub) Events() <-chan session.Event {
	return h.events
}

// Open creates and registers a Peer for handle. The caller drives signaling
// on the returned Peer; the Hub reports its state changes.
func (h *Hub) Open(handle session.PeerHandle) (*Peer, error) {
	if h.ctx.Err() != nil {
		return nil, ErrHubClosed
	}

	p, err := NewPeer(h.ctx, handle, h.cfg)
	if err != nil {
		return nil, err
	}

	p.OnFrame(func(data []byte) {
		util.Stats.AddRecv(len(data))
		select {
		case h.events <- session.DataReceived(handle, data):
		default:
		}
	})

	h.mu.Lock()
	if h.ctx.Err() != nil {
		h.mu.Unlock()
		p.Close()
		return nil, ErrHubClosed
	}
	if old, ok := h.peers[handle.ID]; ok {
		old.Close()
	}
	h.peers[handle.ID] = p
	h.wg.Add(1)
	h.mu.Unlock()

	h.emit(session.PeerStateChanged(handle, session.StateConnecting))
	go h.watch(p)

	return p, nil
}

// watch follows one Peer from open to shutdown.
func (h *Hub) watch(p *Peer) {
	defer h.wg.Done()

	select {
	case <-p.Ready():
		h.emit(session.PeerStateChanged(p.handle, session.StateConnected))
		<-p.Done()
	case <-p.Done():
	}

	h.mu.Lock()
	if cur, ok := h.peers[p.handle.ID]; ok && cur == p {
		delete(h.peers, p.handle.ID)
	}
	h.mu.Unlock()

	if err := p.Close(); err != nil {
		util.LogDebug("[%s] close: %v", p.handle, err)
	}
	h.emit(session.PeerStateChanged(p.handle, session.StateDisconnected))
}

// emit delivers a state event. State events must not be lost, so emit waits
// for room unless the Hub is shutting down.
func (h *Hub) emit(ev session.Event) {
	select {
	case h.events <- ev:
	case <-h.ctx.Done():
	}
}

// SendTo implements session.Transport.
func (h *Hub) SendTo(peer session.PeerHandle, data []byte) error {
	h.mu.RLock()
	p, ok := h.peers[peer.ID]
	h.mu.RUnlock()

	if !ok {
		return ErrUnknownPeer
	}
	return p.Send(data)
}

// Len returns the number of registered peers, open or not.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// Close shuts down every Peer and waits for their watchers to exit.
func (h *Hub) Close() error {
	h.cancel()

	h.mu.Lock()
	peers := make([]*Peer, 0, len(h.peers))
	for _, p := range h.peers {
		peers = append(peers, p)
	}
	h.peers = make(map[string]*Peer)
	h.mu.Unlock()

	var errs []error
	for _, p := range peers {
		errs = append(errs, p.Close())
	}

	h.wg.Wait()
	return errors.Join(errs...)
}
