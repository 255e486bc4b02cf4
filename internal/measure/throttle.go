package measure

import (
	"sync"
	"time"
)

// DefaultMinInterval is the minimum spacing between processed sights of
// one throttle key. Marine instruments repeat sentences several times a
// second; one reading per five seconds is plenty for display.
const DefaultMinInterval = 5 * time.Second

// Throttle rate-limits processing per key. The stamp advances only on
// allowed calls, so a stream arriving faster than the interval passes
// exactly one line per interval.
type Throttle struct {
	mu       sync.Mutex
	interval time.Duration
	last     map[string]time.Time
}

func NewThrottle(interval time.Duration) *Throttle {
	if interval <= 0 {
		interval = DefaultMinInterval
	}
	return &Throttle{interval: interval, last: make(map[string]time.Time)}
}

// Allow reports whether key may be processed at now. A key exactly at the
// interval boundary is allowed.
func (t *Throttle) Allow(key string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	last, seen := t.last[key]
	if seen && now.Sub(last) < t.interval {
		return false
	}
	t.last[key] = now
	return true
}
