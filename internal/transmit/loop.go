// Package transmit drives the periodic emission of the control state.
package transmit

import (
	"context"
	"fmt"
	"time"

	"github.com/1ureka/tiltlink/internal/protocol"
	"github.com/1ureka/tiltlink/internal/session"
	"github.com/1ureka/tiltlink/internal/util"
)

// DefaultInterval matches the 100 Hz sensor sampling rate.
const DefaultInterval = 10 * time.Millisecond

// Mode selects the frame layout emitted on each tick.
type Mode string

const (
	ModeControl  Mode = "control"  // 6-byte steering/throttle/brake frame
	ModeJoystick Mode = "joystick" // 8-byte x/y frame
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeControl, ModeJoystick:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown frame mode %q (want %q or %q)", s, ModeControl, ModeJoystick)
	}
}

// Link is the part of the session the loop needs.
type Link interface {
	HasPeers() bool
	Send(data []byte) (session.Report, error)
}

// Source provides the current control values.
type Source interface {
	Snapshot() protocol.ControlState
	Axes() protocol.JoystickState
}

// Loop sends the latest state to all peers once per interval. Nothing is
// buffered: a tick with no peers is skipped and a lost frame is superseded
// by the next one.
type Loop struct {
	link     Link
	src      Source
	interval time.Duration
	mode     Mode
}

// Option configures a Loop.
type Option func(*Loop)

// WithInterval sets the tick period. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.interval = d
		}
	}
}

// WithMode sets the frame layout.
func WithMode(m Mode) Option {
	return func(l *Loop) { l.mode = m }
}

// New creates a Loop reading src and sending through link.
func New(link Link, src Source, opts ...Option) *Loop {
	l := &Loop{
		link:     link,
		src:      src,
		interval: DefaultInterval,
		mode:     ModeControl,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Interval returns the tick period.
func (l *Loop) Interval() time.Duration { return l.interval }

// Tick runs one iteration and reports whether a frame was handed to the
// session.
func (l *Loop) Tick() bool {
	if !l.link.HasPeers() {
		util.Stats.AddSkippedTick()
		return false
	}

	var err error
	switch l.mode {
	case ModeJoystick:
		frame := protocol.EncodeJoystick(l.src.Axes())
		_, err = l.link.Send(frame[:])
	default:
		frame := protocol.Encode(l.src.Snapshot())
		_, err = l.link.Send(frame[:])
	}

	if err != nil {
		util.LogDebug("tick: %v", err)
		return false
	}
	return true
}

// Run ticks until ctx is cancelled. In-flight sends are not awaited.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.Tick()
		case <-ctx.Done():
			return nil
		}
	}
}
