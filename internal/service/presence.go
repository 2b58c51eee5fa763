package service

import (
	"sync"
	"time"
)

// PresenceTracker derives "currently online" courier counts from recent
// pings. State is time-windowed rather than flag-based, so a courier whose
// app dies without a clean disconnect ages out on its own.
type PresenceTracker struct {
	mu       sync.RWMutex
	lastSeen map[string]time.Time
	window   time.Duration
}

// NewPresenceTracker creates a tracker with the given online window.
func NewPresenceTracker(window time.Duration) *PresenceTracker {
	return &PresenceTracker{
		lastSeen: make(map[string]time.Time),
		window:   window,
	}
}

// Touch records a ping from the courier.
func (p *PresenceTracker) Touch(courierID string, ts time.Time) {
	p.mu.Lock()
	if ts.After(p.lastSeen[courierID]) {
		p.lastSeen[courierID] = ts
	}
	p.mu.Unlock()
}

// OnlineCount returns how many couriers pinged within the window.
func (p *PresenceTracker) OnlineCount(now time.Time) int {
	cutoff := now.Add(-p.window)

	p.mu.RLock()
	defer p.mu.RUnlock()

	count := 0
	for _, ts := range p.lastSeen {
		if ts.After(cutoff) {
			count++
		}
	}
	return count
}

// Sweep discards entries that fell out of the window.
func (p *PresenceTracker) Sweep(now time.Time) {
	cutoff := now.Add(-p.window)

	p.mu.Lock()
	defer p.mu.Unlock()

	for id, ts := range p.lastSeen {
		if !ts.After(cutoff) {
			delete(p.lastSeen, id)
		}
	}
}
