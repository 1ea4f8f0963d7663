// Package protocol defines the wire format of the control link.
//
// Every DataChannel message carries exactly one frame. There is no header,
// sequence number or checksum: the transport preserves message boundaries
// and a lost frame is superseded by the next tick.
package protocol

import "errors"

// Frame sizes.
const (
	FrameSize         = 6 // Steering(4) + Throttle(1) + Brake(1)
	JoystickFrameSize = 8 // X(4) + Y(4)
)

// ErrMalformedFrame is returned when a buffer does not have the exact size
// of the frame being decoded.
var ErrMalformedFrame = errors.New("malformed frame")

// ControlState is a snapshot of the intended control outputs.
type ControlState struct {
	Steering float32 // [-1, 1], enforced by the sender
	Throttle bool
	Brake    bool
}

// JoystickState is a snapshot of the joystick axes, each in [-1, 1].
// Y grows upward (screen coordinates are inverted before encoding).
type JoystickState struct {
	X float32
	Y float32
}
