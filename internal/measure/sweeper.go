package measure

import (
	"context"
	"time"
)

const (
	// DefaultSweepInterval is how often availability is recomputed.
	DefaultSweepInterval = 5 * time.Minute
	// DefaultStaleWindow is how long a measurement stays available
	// without updates.
	DefaultStaleWindow = 4 * time.Minute
)

// Sweeper periodically recomputes measurement availability for one
// registry. Sweeps do not fire observer callbacks; staleness is observed
// through Get and Snapshot.
type Sweeper struct {
	Registry *Registry
	Interval time.Duration
	Window   time.Duration
}

// Run sweeps until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	window := s.Window
	if window <= 0 {
		window = DefaultStaleWindow
	}

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			s.Registry.SweepAvailability(now.UTC(), window)
		}
	}
}
