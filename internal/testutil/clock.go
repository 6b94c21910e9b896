package testutil

import "sync"

// Clock is a monotonic logical clock that stamps harness trace events.
// The first call to Next returns 1. Safe for concurrent use.
type Clock struct {
	mu  sync.Mutex
	seq int64
}

// NewClock creates a clock at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next advances the clock and returns the new value.
func (c *Clock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the last value handed out, or 0.
func (c *Clock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset rewinds the clock so a scenario can be replayed with identical seqs.
func (c *Clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}
