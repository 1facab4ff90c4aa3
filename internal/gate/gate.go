// Package gate limits the number of simultaneously live sessions.
package gate

import "sync"

// Gate is a concurrency-safe admission counter with a fixed ceiling.
type Gate struct {
	mu      sync.Mutex
	active  int
	ceiling int
}

func New(ceiling int) *Gate {
	return &Gate{ceiling: ceiling}
}

// Admit increments the live-session count and returns true, or returns false
// without incrementing when the ceiling is already reached.
func (g *Gate) Admit() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active >= g.ceiling {
		return false
	}
	g.active++
	return true
}

// Release decrements the live-session count. Releasing below zero is a
// programming error and is clamped.
func (g *Gate) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active > 0 {
		g.active--
	}
}

// Active returns the current live-session count.
func (g *Gate) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// Ceiling returns the configured maximum.
func (g *Gate) Ceiling() int {
	return g.ceiling
}
