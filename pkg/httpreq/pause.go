package httpreq

import (
	"sync/atomic"
	"time"
)

const (
	// TimeoutThreshold is the number of timeouts that opens a pause window.
	TimeoutThreshold = 3
	// PauseDuration is how long requests are rejected once the threshold is hit.
	PauseDuration = time.Hour
)

// PauseState is the timeout counter and pause-until timestamp shared by every
// request sent through one Transport. All methods are safe for concurrent use.
type PauseState struct {
	count atomic.Int32
	until atomic.Int64 // unix nanos, 0 when never paused
	now   func() time.Time
}

// NewPauseState returns an empty state. A nil clock means time.Now.
func NewPauseState(now func() time.Time) *PauseState {
	if now == nil {
		now = time.Now
	}
	return &PauseState{now: now}
}

// Active reports whether the current time is before the pause-until timestamp.
func (p *PauseState) Active() bool {
	return p.now().UnixNano() < p.until.Load()
}

// Until returns the end of the latest pause window, zero if none was ever set.
func (p *PauseState) Until() time.Time {
	n := p.until.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// Count returns the number of timeouts recorded since the last pause.
func (p *PauseState) Count() int {
	return int(p.count.Load())
}

// RecordTimeout counts one timeout. The call that reaches TimeoutThreshold
// resets the counter and opens a pause window of PauseDuration from now;
// it is the only one that returns true.
func (p *PauseState) RecordTimeout() bool {
	for {
		c := p.count.Load()
		next := c + 1
		if next < TimeoutThreshold {
			if p.count.CompareAndSwap(c, next) {
				return false
			}
			continue
		}
		if p.count.CompareAndSwap(c, 0) {
			p.extend(p.now().Add(PauseDuration))
			return true
		}
	}
}

// extend moves the pause-until timestamp forward, never backward.
func (p *PauseState) extend(until time.Time) {
	target := until.UnixNano()
	for {
		cur := p.until.Load()
		if target <= cur {
			return
		}
		if p.until.CompareAndSwap(cur, target) {
			return
		}
	}
}

// Reset clears the counter and any pause window.
func (p *PauseState) Reset() {
	p.count.Store(0)
	p.until.Store(0)
}
