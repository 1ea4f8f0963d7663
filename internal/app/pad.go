// Package app contains the top-level orchestration for the pad and receiver
// roles.
package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/pterm/pterm"

	"github.com/1ureka/tiltlink/internal/config"
	"github.com/1ureka/tiltlink/internal/control"
	"github.com/1ureka/tiltlink/internal/input"
	"github.com/1ureka/tiltlink/internal/session"
	"github.com/1ureka/tiltlink/internal/signaling"
	"github.com/1ureka/tiltlink/internal/transmit"
	"github.com/1ureka/tiltlink/internal/transport"
	"github.com/1ureka/tiltlink/internal/util"
)

const (
	pinLength = 4

	sweepAmplitude = math.Pi / 3
	sweepPeriod    = 4 * time.Second

	inputStopTimeout = time.Second
)

// Pad is the controller side: input is sampled into shared state and
// streamed to every connected receiver.
type Pad struct {
	sampler *control.Sampler
	session *session.Session
	loop    *transmit.Loop
}

// NewPad wires the control core to tr.
func NewPad(cfg *config.Config, tr session.Transport) *Pad {
	state := control.NewState()

	policy := session.PolicyLenient
	if cfg.Strict {
		policy = session.PolicyStrict
	}

	sess := session.New(tr,
		session.WithPolicy(policy),
		session.WithDataHandler(func(peer session.PeerHandle, data []byte) {
			util.LogDebug("[%s] unexpected %d bytes from receiver", peer, len(data))
		}),
	)

	return &Pad{
		sampler: control.NewSampler(state, cfg.Sampler),
		session: sess,
		loop: transmit.New(sess, state,
			transmit.WithInterval(cfg.Interval),
			transmit.WithMode(cfg.Mode),
		),
	}
}

// Sampler returns the sampler input sources feed.
func (p *Pad) Sampler() *control.Sampler { return p.sampler }

// Session returns the pad's peer session.
func (p *Pad) Session() *session.Session { return p.session }

// Run applies transport events and drives the transmit loop until ctx is
// done. In strict mode an unknown peer state ends Run with that error.
func (p *Pad) Run(ctx context.Context, events <-chan session.Event) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	changes, unsubscribe := p.session.Subscribe()
	defer unsubscribe()
	go logChanges(changes)

	errCh := make(chan error, 2)
	go func() { errCh <- p.session.Run(ctx, events) }()
	go func() { errCh <- p.loop.Run(ctx) }()

	err := <-errCh
	cancel()
	err = errors.Join(err, <-errCh)
	return err
}

// Close ends the session and its transport.
func (p *Pad) Close() error {
	return p.session.Close()
}

func logChanges(changes <-chan session.Change) {
	for c := range changes {
		switch c.State {
		case session.StateConnected:
			util.LogSuccess("[%s] receiver joined (%d connected)", c.Peer, c.Active)
		case session.StateDisconnected:
			util.LogInfo("[%s] receiver left (%d connected)", c.Peer, c.Active)
		case session.StateConnecting:
			util.LogInfo("[%s] receiver connecting", c.Peer)
		default:
			util.LogWarning("[%s] receiver in unknown state %s", c.Peer, c.State)
		}
	}
}

// RunPad executes the pad role:
//  1. Start the signaling server
//  2. Print the join details
//  3. Start the input source and stats reporter
//  4. Stream frames to every receiver until ctx is done
func RunPad(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hub := transport.NewHub(ctx, cfg.Transport)
	pad := NewPad(cfg, hub)
	defer pad.Close()

	// 1. Start signaling.
	pin := cfg.PIN
	if pin == "" {
		pin = signaling.GeneratePIN(pinLength)
	}
	srv := signaling.NewServer(ctx, hub, pin)
	port, err := srv.Start(cfg.Listen)
	if err != nil {
		return err
	}
	defer srv.Close()

	// 2. Print join details.
	pterm.Println()
	pterm.DefaultBox.WithTitle("Signaling").Println(fmt.Sprintf(
		"Port : %d\nPIN  : %s\nMode : %s\n\ntiltlink receiver --url ws://<this-host>:%d/ws?pin=%s",
		port, pin, cfg.Mode, port, pin,
	))
	pterm.Println()
	util.LogInfo("waiting for receivers...")

	// 3. Input and stats.
	inputDone := startInput(ctx, cancel, cfg, pad.Sampler())
	util.StartStatsReporter(ctx, cfg.StatsInterval)

	// 4. Stream. The input source is stopped before returning so the
	// keyboard listener can restore the terminal.
	err = pad.Run(ctx, hub.Events())
	cancel()
	waitInput(inputDone, inputStopTimeout)

	if err != nil {
		return fmt.Errorf("session stopped: %w", err)
	}
	return nil
}

// startInput launches the configured input source. The returned channel is
// closed once the source has stopped.
func startInput(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, s *control.Sampler) <-chan struct{} {
	done := make(chan struct{})

	switch cfg.Input {
	case config.SourceKeyboard:
		kb := input.NewKeyboard(s, cfg.Sampler.Center, cfg.Mode == transmit.ModeJoystick)
		util.LogInfo("keyboard: ←/→ steer, ↑ gas, ↓ brake, space recenter, q quit")
		go func() {
			defer close(done)
			if err := kb.Run(ctx, cancel); err != nil {
				util.LogWarning("keyboard input unavailable: %v", err)
			}
		}()
	case config.SourceSweep:
		util.LogInfo("sweep: steering oscillates ±%.0f° every %v", sweepAmplitude*180/math.Pi, sweepPeriod)
		go func() {
			defer close(done)
			input.Sweep(ctx, s, cfg.Sampler.Center, sweepAmplitude, sweepPeriod, input.SensorRate)
		}()
	default:
		close(done)
	}
	return done
}

// waitInput waits up to timeout for the input source to stop.
func waitInput(done <-chan struct{}, timeout time.Duration) bool {
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		util.LogWarning("input source did not stop within %v; run `reset` if the terminal misbehaves", timeout)
		return false
	}
}
