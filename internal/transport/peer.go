package transport

import (
	"github.com/pion/webrtc/v4"
)

// DefaultSTUNServers are used for ICE candidate gathering when no list is
// configured. No TURN: the control link only targets peers on the same
// local network.
var DefaultSTUNServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

// Config holds the WebRTC settings shared by every peer.
type Config struct {
	STUNServers []string
}

// channelLabel names the control DataChannel on both sides.
const channelLabel = "control"

// newPeerConnection creates a PeerConnection using the configured STUN servers.
func newPeerConnection(cfg Config) (*webrtc.PeerConnection, error) {
	var iceServers []webrtc.ICEServer
	if len(cfg.STUNServers) > 0 {
		iceServers = []webrtc.ICEServer{{URLs: cfg.STUNServers}}
	}
	return webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: iceServers,
	})
}

// newDataChannel creates the pre-negotiated control DataChannel. Negotiated
// mode (ID 0) lets both sides create it independently. Unordered with zero
// retransmits gives datagram semantics: a lost frame is never resent, the
// next tick supersedes it.
func newDataChannel(pc *webrtc.PeerConnection) (*webrtc.DataChannel, error) {
	ordered := false
	negotiated := true
	maxRetransmits := uint16(0)
	id := uint16(0)

	return pc.CreateDataChannel(channelLabel, &webrtc.DataChannelInit{
		Ordered:        &ordered,
		MaxRetransmits: &maxRetransmits,
		Negotiated:     &negotiated,
		ID:             &id,
	})
}
