package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Encode serializes a ControlState into its fixed 6-byte layout:
//
//	[0:4] steering, IEEE-754 float32, little-endian
//	[4]   throttle, 1 or 0
//	[5]   brake,    1 or 0
func Encode(s ControlState) [FrameSize]byte {
	var buf [FrameSize]byte
	EncodeTo(buf[:], s)
	return buf
}

// EncodeTo writes the frame into dst, which must be at least FrameSize long.
func EncodeTo(dst []byte, s ControlState) {
	_ = dst[FrameSize-1]
	binary.LittleEndian.PutUint32(dst[0:4], math.Float32bits(s.Steering))
	dst[4] = boolByte(s.Throttle)
	dst[5] = boolByte(s.Brake)
}

// Decode deserializes a 6-byte frame. Any float bit pattern is accepted,
// including NaN and Inf; range validation is the sender's job.
func Decode(data []byte) (ControlState, error) {
	if len(data) != FrameSize {
		return ControlState{}, fmt.Errorf("%w: %d bytes (need %d)", ErrMalformedFrame, len(data), FrameSize)
	}
	return ControlState{
		Steering: math.Float32frombits(binary.LittleEndian.Uint32(data[0:4])),
		Throttle: data[4] != 0,
		Brake:    data[5] != 0,
	}, nil
}

// EncodeJoystick serializes a JoystickState as two little-endian float32 values.
func EncodeJoystick(s JoystickState) [JoystickFrameSize]byte {
	var buf [JoystickFrameSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(s.X))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(s.Y))
	return buf
}

// DecodeJoystick deserializes an 8-byte joystick frame.
func DecodeJoystick(data []byte) (JoystickState, error) {
	if len(data) != JoystickFrameSize {
		return JoystickState{}, fmt.Errorf("%w: %d bytes (need %d)", ErrMalformedFrame, len(data), JoystickFrameSize)
	}
	return JoystickState{
		X: math.Float32frombits(binary.LittleEndian.Uint32(data[0:4])),
		Y: math.Float32frombits(binary.LittleEndian.Uint32(data[4:8])),
	}, nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
