package maskflow

import (
	"sync"
	"time"
)

// DefaultProgressInterval is the minimum time between two progress updates
const DefaultProgressInterval = 100 * time.Millisecond

// Status describes how far a stage pass over the sequence has got
type Status struct {
	Stage Stage
	Done  int
	Total int
}

// Percent returns the completion of the stage in percent
func (s Status) Percent() float64 {
	if s.Total == 0 {
		return 100
	}
	return 100 * float64(s.Done) / float64(s.Total)
}

// ProgressFunc receives progress updates
type ProgressFunc func(Status)

// Throttle forwards progress updates to a ProgressFunc at most once per
// interval.  Within a stage the forwarded Done values never decrease and the
// update completing a stage is always forwarded.
type Throttle struct {
	fn       ProgressFunc
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last time.Time
	seen map[Stage]int
}

// NewThrottle returns a Throttle around fn.  A nil fn discards updates.
func NewThrottle(fn ProgressFunc, interval time.Duration) *Throttle {
	return &Throttle{
		fn:       fn,
		interval: interval,
		now:      time.Now,
		seen:     make(map[Stage]int),
	}
}

// Update reports s
func (t *Throttle) Update(s Status) {

	if t == nil || t.fn == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	prev, ok := t.seen[s.Stage]

	if ok && s.Done <= prev {
		return
	}

	t.seen[s.Stage] = s.Done
	now := t.now()
	final := s.Done >= s.Total

	if !final && !t.last.IsZero() && now.Sub(t.last) < t.interval {
		return
	}

	t.last = now
	t.fn(s)
}
