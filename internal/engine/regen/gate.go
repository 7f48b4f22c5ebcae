package regen

import (
	"sync"
	"time"
)

// Gate admits at most one execution per cooldown window. Requests that arrive
// inside the window, or while an execution is in flight, are dropped.
type Gate struct {
	mu       sync.Mutex
	cooldown time.Duration
	now      func() time.Time
	last     time.Time
	running  bool
}

// NewGate creates a gate with the given cooldown.
func NewGate(cooldown time.Duration) *Gate {
	return &Gate{cooldown: cooldown, now: time.Now}
}

// Acquire reports whether an execution may start now. A caller that acquires
// the gate must call Release when the execution ends.
func (g *Gate) Acquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.running {
		return false
	}
	now := g.now()
	if !g.last.IsZero() && now.Sub(g.last) < g.cooldown {
		return false
	}
	g.last = now
	g.running = true
	return true
}

// Release marks the current execution as finished.
func (g *Gate) Release() {
	g.mu.Lock()
	g.running = false
	g.mu.Unlock()
}
