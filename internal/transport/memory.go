package transport

import (
	"sync"

	"github.com/1ureka/tiltlink/internal/session"
)

// Memory is an in-process transport for tests. Frames sent to a peer are
// recorded instead of delivered; lifecycle events are injected with
// Connect / Disconnect / Emit and read from Events.
type Memory struct {
	events chan session.Event

	mu      sync.Mutex
	frames  map[string][][]byte
	failing map[string]error
	calls   int
	closed  bool
}

// NewMemory creates an empty Memory transport.
func NewMemory() *Memory {
	return &Memory{
		events:  make(chan session.Event, 1024),
		frames:  make(map[string][][]byte),
		failing: make(map[string]error),
	}
}

// SendTo implements session.Transport.
func (m *Memory) SendTo(peer session.PeerHandle, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.closed {
		return ErrHubClosed
	}
	if err := m.failing[peer.ID]; err != nil {
		return err
	}

	frame := make([]byte, len(data))
	copy(frame, data)
	m.frames[peer.ID] = append(m.frames[peer.ID], frame)
	return nil
}

// Events returns the injected events.
func (m *Memory) Events() <-chan session.Event { return m.events }

// Emit injects an arbitrary event.
func (m *Memory) Emit(ev session.Event) { m.events <- ev }

// Connect injects a Connected event for peer.
func (m *Memory) Connect(peer session.PeerHandle) {
	m.Emit(session.PeerStateChanged(peer, session.StateConnected))
}

// Disconnect injects a Disconnected event for peer.
func (m *Memory) Disconnect(peer session.PeerHandle) {
	m.Emit(session.PeerStateChanged(peer, session.StateDisconnected))
}

// Fail makes every following SendTo for peerID return err; nil clears it.
func (m *Memory) Fail(peerID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failing, peerID)
		return
	}
	m.failing[peerID] = err
}

// Frames returns a copy of the frames recorded for peerID.
func (m *Memory) Frames(peerID string) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.frames[peerID]...)
}

// TotalBytes returns the number of bytes recorded across all peers.
func (m *Memory) TotalBytes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, frames := range m.frames {
		for _, f := range frames {
			n += len(f)
		}
	}
	return n
}

// Calls returns how many times SendTo was invoked.
func (m *Memory) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Close marks the transport closed. Later sends fail.
func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (m *Memory) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
