package testutil

import (
	"sync"
	"time"
)

// Epoch is the default base time of a DeterministicClock.
var Epoch = time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

// DeterministicClock is a thread-safe clock for tests. Every call to Now
// advances it by one second from its base, so timestamps are
// reproducible across runs.
type DeterministicClock struct {
	mu   sync.Mutex
	base time.Time
	seq  int64
}

// NewDeterministicClock creates a clock starting at base.
// A zero base means Epoch. The first call to Now returns base.
func NewDeterministicClock(base time.Time) *DeterministicClock {
	if base.IsZero() {
		base = Epoch
	}
	return &DeterministicClock{base: base.UTC()}
}

// Now returns the next timestamp.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.base.Add(time.Duration(c.seq) * time.Second)
	c.seq++
	return t
}

// Calls returns how many times Now has been called.
func (c *DeterministicClock) Calls() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset rewinds the clock to its base.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}
