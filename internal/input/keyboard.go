// Package input feeds terminal and synthetic input into the control sampler.
package input

import (
	"context"
	"math"
	"sync/atomic"

	"atomicgo.dev/keyboard"
	"atomicgo.dev/keyboard/keys"

	"github.com/1ureka/tiltlink/internal/control"
	"github.com/1ureka/tiltlink/internal/util"
)

const (
	tiltStep = math.Pi / 16 // radians per arrow press
	dragStep = 10           // joystick units per arrow press
)

// Keyboard maps terminal key presses to sampler events. A terminal reports
// presses only, so pedals toggle on each press.
//
//	←/→, a/d   tilt, or move the joystick horizontally
//	↑/↓, w/s   toggle gas/brake, or move the joystick vertically
//	g, b       toggle gas, toggle brake
//	space      recenter and release both pedals
//	q, esc     quit
type Keyboard struct {
	sampler  *control.Sampler
	joystick bool
	center   float64

	angle float64
	drag  control.Vector
	gas   bool
	brake bool

	// Overridable for tests.
	listen func(func(keys.Key) (bool, error)) error
	wake   func() error
}

// NewKeyboard creates a Keyboard driving s. In joystick mode arrows move the
// joystick knob instead of emulating a tilt sensor.
func NewKeyboard(s *control.Sampler, center float64, joystick bool) *Keyboard {
	return &Keyboard{
		sampler:  s,
		joystick: joystick,
		center:   center,
		angle:    center,
		listen:   keyboard.Listen,
		wake: func() error {
			return keyboard.SimulateKeyPress(keys.Key{Code: keys.Escape})
		},
	}
}

// Run listens to the terminal until a quit key is pressed or ctx is done.
// A quit key calls cancel. The terminal is in raw mode while Run is active;
// when ctx ends first the listener is woken with a synthetic key so it
// restores the terminal before Run returns.
func (k *Keyboard) Run(ctx context.Context, cancel context.CancelFunc) error {
	done := make(chan struct{})
	defer close(done)

	var quit atomic.Bool
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
			return
		}
		if quit.Load() {
			return
		}
		if err := k.wake(); err != nil {
			util.LogDebug("keyboard wake: %v", err)
		}
	}()

	return k.listen(func(key keys.Key) (bool, error) {
		if ctx.Err() != nil {
			return true, nil
		}
		if k.Handle(key) {
			quit.Store(true)
			cancel()
			return true, nil
		}
		return false, nil
	})
}

// Handle applies one key press and reports whether it asked to quit.
func (k *Keyboard) Handle(key keys.Key) bool {
	switch key.Code {
	case keys.CtrlC, keys.Escape:
		return true
	case keys.Left:
		k.horizontal(-1)
	case keys.Right:
		k.horizontal(1)
	case keys.Up:
		k.vertical(-1)
	case keys.Down:
		k.vertical(1)
	case keys.Space:
		k.recenter()
	case keys.RuneKey:
		if len(key.Runes) == 1 {
			return k.rune(key.Runes[0])
		}
	}
	return false
}

func (k *Keyboard) rune(r rune) bool {
	switch r {
	case 'q':
		return true
	case 'a':
		k.horizontal(-1)
	case 'd':
		k.horizontal(1)
	case 'w':
		k.vertical(-1)
	case 's':
		k.vertical(1)
	case 'g':
		k.toggleGas()
	case 'b':
		k.toggleBrake()
	case ' ':
		k.recenter()
	}
	return false
}

func (k *Keyboard) horizontal(dir float64) {
	if k.joystick {
		k.drag.X += dir * dragStep
		k.drag = k.sampler.Drag(k.drag)
		return
	}
	// Mimic an orientation sensor: the angle wraps at ±π.
	k.angle = wrapAngle(k.angle + dir*tiltStep)
	k.sampler.Tilt(k.angle)
}

// vertical moves the knob (screen y grows downward) or works the pedals.
func (k *Keyboard) vertical(dir float64) {
	if k.joystick {
		k.drag.Y += dir * dragStep
		k.drag = k.sampler.Drag(k.drag)
		return
	}
	if dir < 0 {
		k.toggleGas()
	} else {
		k.toggleBrake()
	}
}

func (k *Keyboard) toggleGas() {
	k.gas = !k.gas
	k.toggle(control.ButtonGas, k.gas)
}

func (k *Keyboard) toggleBrake() {
	k.brake = !k.brake
	k.toggle(control.ButtonBrake, k.brake)
}

func (k *Keyboard) toggle(b control.Button, held bool) {
	if held {
		k.sampler.Press(b)
	} else {
		k.sampler.Release(b)
	}
	util.LogDebug("%s %v", b, held)
}

func (k *Keyboard) recenter() {
	if k.joystick {
		k.drag = control.Vector{}
		k.sampler.EndDrag()
	} else {
		k.angle = k.center
		k.sampler.Tilt(k.angle)
	}
	k.gas, k.brake = false, false
	k.sampler.Release(control.ButtonGas)
	k.sampler.Release(control.ButtonBrake)
}

// wrapAngle maps a into (-π, π].
func wrapAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a <= 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}
