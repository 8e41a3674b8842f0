// Package latch implements a boolean latch that reports edges only.
package latch

import "sync"

// Edge is the transition observed by Update.
type Edge int

const (
	None Edge = iota
	Rising
	Falling
)

func (e Edge) String() string {
	switch e {
	case Rising:
		return "rising"
	case Falling:
		return "falling"
	default:
		return "none"
	}
}

// Latch remembers the last condition. Steady repetition of the same
// condition reports None.
type Latch struct {
	mu     sync.Mutex
	active bool
}

// New returns an inactive latch.
func New() *Latch {
	return &Latch{}
}

// Update feeds the current condition and returns the resulting edge.
func (l *Latch) Update(cond bool) Edge {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cond == l.active {
		return None
	}
	l.active = cond
	if cond {
		return Rising
	}
	return Falling
}

// Active reports the latched state.
func (l *Latch) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}
