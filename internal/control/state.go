// Package control holds the shared control state of the pad and the sampler
// that turns raw input events into it.
package control

import (
	"math"
	"sync/atomic"

	"github.com/1ureka/tiltlink/internal/protocol"
)

// State is the authoritative, mutable control state shared between input
// callbacks and the transmit loop.
//
// Each field is independently atomic. A snapshot taken while another
// goroutine writes may mix old and new fields; that is acceptable since every
// field is a standalone control signal.
type State struct {
	steering atomic.Uint32 // float32 bits
	throttle atomic.Bool
	brake    atomic.Bool

	axisX atomic.Uint32 // float32 bits, joystick mode only
	axisY atomic.Uint32
}

// NewState returns a zeroed State (centered steering, no buttons held).
func NewState() *State {
	return &State{}
}

func (s *State) Steering() float32 { return math.Float32frombits(s.steering.Load()) }
func (s *State) Throttle() bool    { return s.throttle.Load() }
func (s *State) Brake() bool       { return s.brake.Load() }

// Snapshot returns the current control outputs as a wire value.
func (s *State) Snapshot() protocol.ControlState {
	return protocol.ControlState{
		Steering: s.Steering(),
		Throttle: s.Throttle(),
		Brake:    s.Brake(),
	}
}

// Axes returns the current joystick axes as a wire value.
func (s *State) Axes() protocol.JoystickState {
	return protocol.JoystickState{
		X: math.Float32frombits(s.axisX.Load()),
		Y: math.Float32frombits(s.axisY.Load()),
	}
}

// Only the Sampler writes steering; values are already clamped and finite.
func (s *State) setSteering(v float32) { s.steering.Store(math.Float32bits(v)) }

func (s *State) setAxes(x, y float32) {
	s.axisX.Store(math.Float32bits(x))
	s.axisY.Store(math.Float32bits(y))
}
