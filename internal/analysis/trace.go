package analysis

import (
	"sync"
	"time"
)

// TracePoint is one speed observation in a courier's recent trace.
type TracePoint struct {
	SpeedKmh  float64
	Lat       float64
	Lng       float64
	Timestamp time.Time
}

// traceBuffer is a fixed-size ring of a single courier's recent samples.
type traceBuffer struct {
	points []TracePoint
	head   int
	count  int
}

func newTraceBuffer(size int) *traceBuffer {
	return &traceBuffer{points: make([]TracePoint, size)}
}

func (b *traceBuffer) push(p TracePoint) {
	b.points[b.head] = p
	b.head = (b.head + 1) % len(b.points)
	if b.count < len(b.points) {
		b.count++
	}
}

// ordered returns the buffered points oldest first.
func (b *traceBuffer) ordered() []TracePoint {
	out := make([]TracePoint, 0, b.count)
	start := b.head - b.count
	if start < 0 {
		start += len(b.points)
	}
	for i := 0; i < b.count; i++ {
		out = append(out, b.points[(start+i)%len(b.points)])
	}
	return out
}

// TraceArena holds one bounded ring buffer per courier. Couriers churn
// online/offline constantly; buffers are recycled once idle so memory
// stays bounded regardless of fleet size.
type TraceArena struct {
	mu         sync.Mutex
	buffers    map[string]*traceBuffer
	lastActive map[string]time.Time
	bufSize    int
	maxIdle    time.Duration
}

// NewTraceArena creates an arena of per-courier ring buffers.
func NewTraceArena(bufSize int, maxIdle time.Duration) *TraceArena {
	if bufSize <= 0 {
		bufSize = 16
	}
	return &TraceArena{
		buffers:    make(map[string]*traceBuffer),
		lastActive: make(map[string]time.Time),
		bufSize:    bufSize,
		maxIdle:    maxIdle,
	}
}

// Push appends a point to the courier's trace and returns the trace
// oldest first.
func (a *TraceArena) Push(courierID string, p TracePoint) []TracePoint {
	a.mu.Lock()
	defer a.mu.Unlock()

	buf, ok := a.buffers[courierID]
	if !ok {
		buf = newTraceBuffer(a.bufSize)
		a.buffers[courierID] = buf
	}
	buf.push(p)
	a.lastActive[courierID] = p.Timestamp
	return buf.ordered()
}

// Trace returns the courier's current trace oldest first, or nil.
func (a *TraceArena) Trace(courierID string) []TracePoint {
	a.mu.Lock()
	defer a.mu.Unlock()

	buf, ok := a.buffers[courierID]
	if !ok {
		return nil
	}
	return buf.ordered()
}

// Sweep recycles buffers of couriers idle past the arena's max idle age.
func (a *TraceArena) Sweep(now time.Time) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := now.Add(-a.maxIdle)
	removed := 0
	for id, ts := range a.lastActive {
		if ts.Before(cutoff) {
			delete(a.buffers, id)
			delete(a.lastActive, id)
			removed++
		}
	}
	return removed
}
