package session

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/1ureka/tiltlink/internal/util"
)

// Transport is the raw delivery primitive the session depends on. SendTo
// must not block waiting for the peer; delivery is best-effort.
type Transport interface {
	SendTo(peer PeerHandle, data []byte) error
}

// Policy decides what happens when a transport reports a state outside of
// the known ConnectionState values.
type Policy uint8

const (
	// PolicyLenient logs a warning and treats the state as terminal: the
	// peer is removed from the active set (never added).
	PolicyLenient Policy = iota
	// PolicyStrict rejects the event with ErrUnknownState, leaves the active
	// set untouched and makes Run return.
	PolicyStrict
)

const subscriberBuffer = 16

// Report summarizes one Send call.
type Report struct {
	Delivered int
	Failed    int
}

// Option configures a Session.
type Option func(*Session)

// WithPolicy sets the unknown-state policy (default PolicyLenient).
func WithPolicy(p Policy) Option {
	return func(s *Session) { s.policy = p }
}

// WithDataHandler installs a callback for EventDataReceived events.
func WithDataHandler(fn func(PeerHandle, []byte)) Option {
	return func(s *Session) { s.onData = fn }
}

// Session owns the active peer set of the control link.
//
// Peer state callbacks and the transmit path run on independent goroutines;
// the set is guarded by an RWMutex and copied on read.
type Session struct {
	tr     Transport
	policy Policy
	onData func(PeerHandle, []byte)

	mu     sync.RWMutex
	peers  map[string]PeerHandle
	subs   map[int]chan Change
	nextID int
	closed bool
}

// New creates an empty Session sending through tr.
func New(tr Transport, opts ...Option) *Session {
	s := &Session{
		tr:    tr,
		peers: make(map[string]PeerHandle),
		subs:  make(map[int]chan Change),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ---------------------------------------------------------------------------
// Events
// ---------------------------------------------------------------------------

// HandleEvent applies one transport event.
func (s *Session) HandleEvent(ev Event) error {
	switch ev.Kind {
	case EventPeerStateChanged:
		return s.OnPeerStateChanged(ev.Peer, ev.State)
	case EventDataReceived:
		if s.onData != nil {
			s.onData(ev.Peer, ev.Data)
		} else {
			util.LogDebug("[%s] ignoring %d bytes of inbound data", ev.Peer, len(ev.Data))
		}
		return nil
	default:
		util.LogWarning("[%s] ignoring event of unknown kind %d", ev.Peer, ev.Kind)
		return nil
	}
}

// OnPeerStateChanged updates the active set. Connected adds the peer,
// Disconnected removes it; both are idempotent. Connecting leaves the set
// unchanged. Unknown states follow the session's Policy.
func (s *Session) OnPeerStateChanged(peer PeerHandle, state ConnectionState) error {
	if !state.Known() {
		if s.policy == PolicyStrict {
			return fmt.Errorf("%w: %s for peer %s", ErrUnknownState, state, peer)
		}
		util.LogWarning("[%s] unknown connection state %s, treating as disconnected", peer, state)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}

	switch state {
	case StateConnected:
		if _, ok := s.peers[peer.ID]; !ok {
			s.peers[peer.ID] = peer
			util.LogInfo("peer connected: %s", peer)
		}
	case StateConnecting:
		util.LogInfo("peer connecting: %s", peer)
	default:
		if _, ok := s.peers[peer.ID]; ok {
			delete(s.peers, peer.ID)
			util.LogInfo("peer disconnected: %s", peer)
		}
	}

	s.publish(Change{Peer: peer, State: state, Active: len(s.peers)})
	s.mu.Unlock()
	return nil
}

// Run consumes events until ctx is done or events is closed. In strict mode
// an unknown state stops the loop and is returned.
func (s *Session) Run(ctx context.Context, events <-chan Event) error {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := s.HandleEvent(ev); err != nil {
				if s.policy == PolicyStrict {
					return err
				}
				util.LogDebug("event dropped: %v", err)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// ---------------------------------------------------------------------------
// Active set
// ---------------------------------------------------------------------------

// ActivePeers returns a copy of the connected set, sorted by ID.
func (s *Session) ActivePeers() []PeerHandle {
	s.mu.RLock()
	peers := make([]PeerHandle, 0, len(s.peers))
	for _, p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.RUnlock()

	sort.Slice(peers, func(i, j int) bool { return peers[i].ID < peers[j].ID })
	return peers
}

// Len returns the size of the active set.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.peers)
}

// HasPeers reports whether at least one peer is connected.
func (s *Session) HasPeers() bool {
	return s.Len() > 0
}

// ---------------------------------------------------------------------------
// Send
// ---------------------------------------------------------------------------

// Send delivers data to every active peer. A failure for one peer is logged
// and counted but does not stop delivery to the others. With no active peer
// Send returns immediately without touching the transport.
func (s *Session) Send(data []byte) (Report, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return Report{}, ErrClosed
	}
	peers := make([]PeerHandle, 0, len(s.peers))
	for _, p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.RUnlock()

	var r Report
	for _, p := range peers {
		if err := s.tr.SendTo(p, data); err != nil {
			r.Failed++
			util.Stats.AddFailure()
			util.LogWarning("[%s] send failed: %v", p, err)
			continue
		}
		r.Delivered++
		util.Stats.AddSent(len(data))
	}
	return r, nil
}

// ---------------------------------------------------------------------------
// Notifications
// ---------------------------------------------------------------------------

// Subscribe returns a channel receiving every applied peer state change and
// a function to cancel the subscription. Delivery never blocks the session:
// when the channel is full the change is dropped for that subscriber.
func (s *Session) Subscribe() (<-chan Change, func()) {
	ch := make(chan Change, subscriberBuffer)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
			s.mu.Unlock()
		})
	}
}

// publish must be called with s.mu held.
func (s *Session) publish(c Change) {
	for _, ch := range s.subs {
		select {
		case ch <- c:
		default:
		}
	}
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Close empties the active set, ends all subscriptions and closes the
// transport when it implements io.Closer. In-flight sends are not awaited.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.peers = make(map[string]PeerHandle)
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.mu.Unlock()

	if c, ok := s.tr.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
