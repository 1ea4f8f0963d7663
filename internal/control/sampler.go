package control

import (
	"math"

	"github.com/1ureka/tiltlink/internal/util"
)

// Button identifies one of the two pedal buttons.
type Button uint8

const (
	ButtonGas Button = iota + 1
	ButtonBrake
)

func (b Button) String() string {
	switch b {
	case ButtonGas:
		return "gas"
	case ButtonBrake:
		return "brake"
	default:
		return "unknown"
	}
}

// Config tunes the steering and joystick transforms.
type Config struct {
	Center         float64 // tilt angle (radians) that maps to straight ahead
	Gain           float64 // steering units per radian
	SnapThreshold  float64 // max allowed bound-to-bound jump between two samples
	JoystickRadius float64 // drag distance that maps to full deflection
}

// DefaultConfig returns the stock pad transform: 90° of tilt
// either side of center covers the full steering range and drags are capped
// at 50 units.
func DefaultConfig() Config {
	return Config{
		Center:         0,
		Gain:           2 / math.Pi,
		SnapThreshold:  1.0,
		JoystickRadius: 50,
	}
}

// Vector is a 2D drag offset from the joystick center, in screen units
// (x grows right, y grows down).
type Vector struct {
	X float64
	Y float64
}

// Len returns the Euclidean length of v.
func (v Vector) Len() float64 { return math.Hypot(v.X, v.Y) }

// CapVector rescales v onto the circle of the given radius when it lies
// outside of it. Direction is preserved; vectors inside the disc are
// returned unchanged.
func CapVector(v Vector, radius float64) Vector {
	l := v.Len()
	if l <= radius || l == 0 {
		return v
	}
	k := radius / l
	return Vector{X: v.X * k, Y: v.Y * k}
}

// Sampler converts raw input events into the shared State. All writes are
// last-writer-wins; the only history kept is the previous steering value.
type Sampler struct {
	cfg   Config
	state *State
}

// NewSampler creates a Sampler writing into state.
func NewSampler(state *State, cfg Config) *Sampler {
	return &Sampler{cfg: cfg, state: state}
}

// State returns the State this sampler writes into.
func (s *Sampler) State() *State { return s.state }

// Tilt feeds one orientation sample (radians) and returns the steering value
// now held in the state.
//
// The sample is shifted by Center, multiplied by Gain and clamped to [-1, 1].
// Non-finite samples are ignored. When steering sits at one bound and the
// candidate lands on the opposite bound, more than SnapThreshold away, the
// sample is a wrap past ±π rather than a real movement and is rejected in
// favor of the previous value. The next unsaturated sample is accepted.
func (s *Sampler) Tilt(angle float64) float32 {
	prev := s.state.Steering()

	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		return prev
	}

	next := clamp((angle-s.cfg.Center)*s.cfg.Gain, -1, 1)
	if math.IsNaN(next) {
		return prev
	}

	if isSnapThrough(float64(prev), next, s.cfg.SnapThreshold) {
		util.LogDebug("steering snap-through rejected (%.3f -> %.3f)", prev, next)
		return prev
	}

	v := float32(next)
	s.state.setSteering(v)
	return v
}

// Press marks a button as held.
func (s *Sampler) Press(b Button) { s.set(b, true) }

// Release marks a button as released.
func (s *Sampler) Release(b Button) { s.set(b, false) }

func (s *Sampler) set(b Button, held bool) {
	switch b {
	case ButtonGas:
		s.state.throttle.Store(held)
	case ButtonBrake:
		s.state.brake.Store(held)
	}
}

// Drag feeds a joystick offset. The offset is capped to the joystick disc,
// normalized per axis into [-1, 1] with the y axis flipped to point up, and
// the x axis becomes the steering value. The capped offset is returned so a
// UI can draw the knob.
func (s *Sampler) Drag(v Vector) Vector {
	if math.IsNaN(v.X) || math.IsNaN(v.Y) || math.IsInf(v.X, 0) || math.IsInf(v.Y, 0) {
		return Vector{}
	}

	r := s.cfg.JoystickRadius
	capped := CapVector(v, r)

	x := float32(clamp(capped.X/r, -1, 1))
	y := float32(clamp(-capped.Y/r, -1, 1))

	s.state.setAxes(x, y)
	s.state.setSteering(x)
	return capped
}

// EndDrag recenters the joystick.
func (s *Sampler) EndDrag() {
	s.state.setAxes(0, 0)
	s.state.setSteering(0)
}

// isSnapThrough reports a jump from one steering bound straight to the
// other. Both values are already clamped, so a bound is |v| == 1. Any
// candidate short of the opposite bound is a real movement and passes.
func isSnapThrough(prev, next, threshold float64) bool {
	if math.Abs(prev) < 1 || math.Abs(next) < 1 || (prev > 0) == (next > 0) {
		return false
	}
	return math.Abs(next-prev) > threshold
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
