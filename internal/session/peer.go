// Package session tracks the set of connected peers of the control link and
// fans frames out to them with best-effort delivery.
package session

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownState = errors.New("unknown connection state")
	ErrClosed       = errors.New("session closed")
)

// PeerHandle identifies one remote endpoint.
type PeerHandle struct {
	ID   string // opaque, unique per discovery
	Name string // human-readable display name
}

func (p PeerHandle) String() string {
	if p.Name == "" {
		return p.ID
	}
	return fmt.Sprintf("%s (%s)", p.Name, p.ID)
}

// ConnectionState is the transport-reported state of one peer.
type ConnectionState uint8

const (
	StateConnecting ConnectionState = iota + 1
	StateConnected
	StateDisconnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Known reports whether s is one of the defined states.
func (s ConnectionState) Known() bool {
	return s >= StateConnecting && s <= StateDisconnected
}

// EventKind tags an Event.
type EventKind uint8

const (
	EventPeerStateChanged EventKind = iota + 1
	EventDataReceived
)

// Event is the single message type a transport reports to the session.
// State is set for EventPeerStateChanged, Data for EventDataReceived.
type Event struct {
	Kind  EventKind
	Peer  PeerHandle
	State ConnectionState
	Data  []byte
}

// PeerStateChanged builds an EventPeerStateChanged event.
func PeerStateChanged(peer PeerHandle, state ConnectionState) Event {
	return Event{Kind: EventPeerStateChanged, Peer: peer, State: state}
}

// DataReceived builds an EventDataReceived event.
func DataReceived(peer PeerHandle, data []byte) Event {
	return Event{Kind: EventDataReceived, Peer: peer, Data: data}
}

// Change is published to subscribers whenever a peer state event is applied.
type Change struct {
	Peer   PeerHandle
	State  ConnectionState
	Active int // size of the active set after the change
}
