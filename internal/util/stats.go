package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
)

// ──────────────────────────────────────────────────────────────────────────────
// Global stats singleton
// ──────────────────────────────────────────────────────────────────────────────

// Stats is the process-wide control link counter.
var Stats = &stats{}

type stats struct {
	FramesSent   atomic.Int64 // frames handed to a DataChannel, counted per peer
	SendFailures atomic.Int64 // per-peer send errors (dropped frames)
	SkippedTicks atomic.Int64 // ticks with no connected peer
	FramesRecv   atomic.Int64 // inbound frames accepted; the receiver counts decoded frames only
	Malformed    atomic.Int64 // frames rejected by the decoder
	BytesSent    atomic.Int64
	BytesRecv    atomic.Int64
}

func (s *stats) AddSent(n int)   { s.FramesSent.Add(1); s.BytesSent.Add(int64(n)) }
func (s *stats) AddRecv(n int)   { s.FramesRecv.Add(1); s.BytesRecv.Add(int64(n)) }
func (s *stats) AddFailure()     { s.SendFailures.Add(1) }
func (s *stats) AddSkippedTick() { s.SkippedTicks.Add(1) }
func (s *stats) AddMalformed()   { s.Malformed.Add(1) }

// snapshot is a point-in-time copy of the counters used by the reporter.
type snapshot struct {
	sent, failed, recv, malformed int64
}

func (s *stats) snapshot() snapshot {
	return snapshot{
		sent:      s.FramesSent.Load(),
		failed:    s.SendFailures.Load(),
		recv:      s.FramesRecv.Load(),
		malformed: s.Malformed.Load(),
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// StartStatsReporter launches a goroutine that logs frame rates every
// interval. Quiet intervals are not logged. It stops when ctx is cancelled.
func StartStatsReporter(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		prev := Stats.snapshot()
		for {
			select {
			case <-ticker.C:
				cur := Stats.snapshot()
				if line, ok := formatStats(prev, cur, interval); ok {
					pterm.DefaultLogger.Info(line)
				}
				prev = cur

			case <-ctx.Done():
				return
			}
		}
	}()
}

// formatStats returns a one-line summary of the delta between two snapshots,
// and false when nothing happened in between.
func formatStats(prev, cur snapshot, interval time.Duration) (string, bool) {
	sent := cur.sent - prev.sent
	failed := cur.failed - prev.failed
	recv := cur.recv - prev.recv
	malformed := cur.malformed - prev.malformed

	if sent == 0 && failed == 0 && recv == 0 && malformed == 0 {
		return "", false
	}

	secs := interval.Seconds()
	return fmt.Sprintf("Out: %6.1f fps | In: %6.1f fps | Dropped: %d | Malformed: %d",
		float64(sent)/secs,
		float64(recv)/secs,
		failed,
		malformed,
	), true
}
