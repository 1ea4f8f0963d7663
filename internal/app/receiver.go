package app

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/pterm/pterm"

	"github.com/1ureka/tiltlink/internal/config"
	"github.com/1ureka/tiltlink/internal/protocol"
	"github.com/1ureka/tiltlink/internal/signaling"
	"github.com/1ureka/tiltlink/internal/transmit"
	"github.com/1ureka/tiltlink/internal/util"
)

const (
	refreshInterval = 50 * time.Millisecond
	gaugeHalfWidth  = 10
)

// Receiver decodes inbound frames and keeps the latest values for display.
type Receiver struct {
	mode transmit.Mode

	mu        sync.Mutex
	control   protocol.ControlState
	joystick  protocol.JoystickState
	frames    uint64
	malformed uint64
}

// NewReceiver creates a Receiver expecting frames of the given mode.
func NewReceiver(mode transmit.Mode) *Receiver {
	return &Receiver{mode: mode}
}

// HandleFrame decodes one frame. Decoded frames count as received;
// malformed frames are counted, logged once and dropped.
func (r *Receiver) HandleFrame(data []byte) error {
	var (
		cs  protocol.ControlState
		js  protocol.JoystickState
		err error
	)
	if r.mode == transmit.ModeJoystick {
		js, err = protocol.DecodeJoystick(data)
	} else {
		cs, err = protocol.Decode(data)
	}
	if err != nil {
		util.Stats.AddMalformed()
		r.mu.Lock()
		r.malformed++
		first := r.malformed == 1
		r.mu.Unlock()

		// A mode mismatch makes every frame malformed; warn once, then count.
		if first {
			util.LogWarning("dropping frame: %v (is the pad in %s mode? further drops are only counted)", err, r.mode)
		} else {
			util.LogDebug("dropping frame: %v", err)
		}
		return err
	}
	util.Stats.AddRecv(len(data))

	r.mu.Lock()
	if r.mode == transmit.ModeJoystick {
		r.joystick = js
	} else {
		r.control = cs
	}
	r.frames++
	r.mu.Unlock()

	util.LogDebug("frame %x", data)
	return nil
}

// Control returns the latest decoded control frame.
func (r *Receiver) Control() protocol.ControlState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.control
}

// Joystick returns the latest decoded joystick frame.
func (r *Receiver) Joystick() protocol.JoystickState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.joystick
}

// Frames returns how many frames were decoded.
func (r *Receiver) Frames() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Malformed returns how many frames were dropped as malformed.
func (r *Receiver) Malformed() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.malformed
}

// Render formats the latest values as a one-screen dashboard.
func (r *Receiver) Render() string {
	r.mu.Lock()
	cs, js, n, bad := r.control, r.joystick, r.frames, r.malformed
	r.mu.Unlock()

	var b strings.Builder
	if r.mode == transmit.ModeJoystick {
		fmt.Fprintf(&b, "x     %s %+.2f\n", gauge(js.X), js.X)
		fmt.Fprintf(&b, "y     %s %+.2f\n", gauge(js.Y), js.Y)
	} else {
		fmt.Fprintf(&b, "steer %s %+.2f\n", gauge(cs.Steering), cs.Steering)
		fmt.Fprintf(&b, "gas   %s   brake %s\n", pedal(cs.Throttle), pedal(cs.Brake))
	}
	fmt.Fprintf(&b, "frames %d", n)
	if bad > 0 {
		fmt.Fprintf(&b, "   malformed %d", bad)
	}
	return b.String()
}

// gauge draws v in [-1, 1] as a bar centered on '|'.
func gauge(v float32) string {
	f := float64(v)
	if math.IsNaN(f) {
		f = 0
	}
	f = math.Max(-1, math.Min(1, f))
	pos := int(math.Round(f * gaugeHalfWidth))

	cells := []byte(strings.Repeat(" ", 2*gaugeHalfWidth+1))
	cells[gaugeHalfWidth] = '|'
	lo, hi := gaugeHalfWidth, gaugeHalfWidth+pos
	if pos < 0 {
		lo, hi = gaugeHalfWidth+pos, gaugeHalfWidth
	}
	for i := lo; i <= hi; i++ {
		if i != gaugeHalfWidth {
			cells[i] = '='
		}
	}
	return "[" + string(cells) + "]"
}

func pedal(on bool) string {
	if on {
		return "ON "
	}
	return "off"
}

// RunReceiver executes the receiver role:
//  1. Join the pad over signaling
//  2. Decode every inbound frame
//  3. Show a live dashboard until the pad leaves or ctx is done
func RunReceiver(ctx context.Context, cfg *config.Config) error {
	wsURL, err := signaling.NormalizeURL(cfg.URL)
	if err != nil {
		return err
	}

	// 1. Join.
	spinner, _ := pterm.DefaultSpinner.Start("joining pad at ", wsURL)
	peer, err := signaling.Dial(ctx, wsURL, cfg.Name, cfg.Transport)
	if err != nil {
		if spinner != nil {
			spinner.Fail("failed to join pad")
		}
		return fmt.Errorf("failed to join pad: %w", err)
	}
	defer peer.Close()
	if spinner != nil {
		spinner.Success("joined pad as ", cfg.Name)
	}

	// 2. Decode.
	rx := NewReceiver(cfg.Mode)
	peer.OnFrame(func(data []byte) {
		rx.HandleFrame(data)
	})
	util.StartStatsReporter(ctx, cfg.StatsInterval)

	// 3. Display. Per-frame debug logs would scroll the live area away.
	var area *pterm.AreaPrinter
	if !util.DebugEnabled() {
		area, err = pterm.DefaultArea.Start(rx.Render())
		if err != nil {
			return fmt.Errorf("failed to start display: %w", err)
		}
		defer area.Stop()
	}

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if area != nil {
				area.Update(rx.Render())
			}
		case <-peer.Done():
			util.LogWarning("pad disconnected")
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}
