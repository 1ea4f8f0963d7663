package input

import (
	"context"
	"math"
	"time"

	"github.com/1ureka/tiltlink/internal/control"
)

// SensorRate is the rate at which the sweep source emits tilt samples.
const SensorRate = 10 * time.Millisecond

// Sweep emulates a tilt sensor swinging sinusoidally around center with the
// given amplitude (radians) and period, emitting one sample every rate.
// It blocks until ctx is done.
func Sweep(ctx context.Context, s *control.Sampler, center, amplitude float64, period, rate time.Duration) {
	if rate <= 0 {
		rate = SensorRate
	}
	ticker := time.NewTicker(rate)
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case now := <-ticker.C:
			phase := 2 * math.Pi * now.Sub(start).Seconds() / period.Seconds()
			s.Tilt(center + amplitude*math.Sin(phase))
		case <-ctx.Done():
			return
		}
	}
}
