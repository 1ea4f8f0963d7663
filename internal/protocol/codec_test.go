package protocol_test

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/tiltlink/internal/protocol"
)

// TestEncodeDecodeRoundTrip verifies that decode(encode(s)) == s, bit-for-bit
// on the steering field and exactly on both booleans.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	testCases := []struct {
		name  string
		state protocol.ControlState
	}{
		{"zero", protocol.ControlState{}},
		{"full left, gas", protocol.ControlState{Steering: -1, Throttle: true}},
		{"full right, brake", protocol.ControlState{Steering: 1, Brake: true}},
		{"both buttons", protocol.ControlState{Steering: 0.25, Throttle: true, Brake: true}},
		{"negative zero", protocol.ControlState{Steering: float32(math.Copysign(0, -1))}},
		{"smallest subnormal", protocol.ControlState{Steering: math.SmallestNonzeroFloat32}},
		{"odd fraction", protocol.ControlState{Steering: -0.3333333}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			frame := protocol.Encode(tc.state)
			decoded, err := protocol.Decode(frame[:])
			require.NoError(t, err)

			assert.Equal(t, math.Float32bits(tc.state.Steering), math.Float32bits(decoded.Steering))
			assert.Equal(t, tc.state.Throttle, decoded.Throttle)
			assert.Equal(t, tc.state.Brake, decoded.Brake)
		})
	}
}

// TestEncodeLayout pins the exact byte layout of a control frame.
func TestEncodeLayout(t *testing.T) {
	frame := protocol.Encode(protocol.ControlState{Steering: 1.0, Throttle: true, Brake: false})

	// 1.0f == 0x3F800000, little-endian.
	assert.Equal(t, [protocol.FrameSize]byte{0x00, 0x00, 0x80, 0x3F, 0x01, 0x00}, frame)
}

// TestDecodeWrongLength verifies that Decode rejects any buffer whose
// length is not exactly FrameSize.
func TestDecodeWrongLength(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
	}{
		{"nil", nil},
		{"empty", []byte{}},
		{"5 bytes (one less than FrameSize)", make([]byte, 5)},
		{"7 bytes (one more than FrameSize)", make([]byte, 7)},
		{"joystick frame", make([]byte, protocol.JoystickFrameSize)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := protocol.Decode(tc.data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, protocol.ErrMalformedFrame))
		})
	}
}

// TestDecodeAcceptsAnyFloat verifies that decoding does not re-validate the
// steering range: NaN, Inf and out-of-range values pass through.
func TestDecodeAcceptsAnyFloat(t *testing.T) {
	values := []float32{
		float32(math.NaN()),
		float32(math.Inf(1)),
		float32(math.Inf(-1)),
		42,
	}

	for _, v := range values {
		frame := protocol.Encode(protocol.ControlState{Steering: v})
		decoded, err := protocol.Decode(frame[:])
		require.NoError(t, err)
		assert.Equal(t, math.Float32bits(v), math.Float32bits(decoded.Steering))
	}
}

// TestDecodeNonZeroIsTrue verifies that any non-zero boolean byte decodes as true.
func TestDecodeNonZeroIsTrue(t *testing.T) {
	decoded, err := protocol.Decode([]byte{0, 0, 0, 0, 0xFF, 0x02})
	require.NoError(t, err)
	assert.True(t, decoded.Throttle)
	assert.True(t, decoded.Brake)
	assert.Zero(t, decoded.Steering)
}

// TestEncodeToPanicsOnShortBuffer documents that EncodeTo requires a
// buffer of at least FrameSize bytes.
func TestEncodeToPanicsOnShortBuffer(t *testing.T) {
	assert.Panics(t, func() {
		protocol.EncodeTo(make([]byte, protocol.FrameSize-1), protocol.ControlState{})
	})
}

// TestJoystickRoundTrip covers the 8-byte joystick frame.
func TestJoystickRoundTrip(t *testing.T) {
	state := protocol.JoystickState{X: 0.6, Y: -0.8}

	frame := protocol.EncodeJoystick(state)
	decoded, err := protocol.DecodeJoystick(frame[:])
	require.NoError(t, err)
	assert.Equal(t, state, decoded)

	_, err = protocol.DecodeJoystick(frame[:protocol.FrameSize])
	assert.ErrorIs(t, err, protocol.ErrMalformedFrame)
}
