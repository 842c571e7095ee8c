package device

import (
	"sync"
	"time"
)

// SystemClock follows the host clock shifted by the offset applied with Set.
type SystemClock struct {
	mu     sync.RWMutex
	offset time.Duration
	set    bool
}

// NewSystemClock creates a clock. A host clock is considered set.
func NewSystemClock() *SystemClock {
	return &SystemClock{set: true}
}

// Now returns the current time.
func (c *SystemClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Now().Add(c.offset)
}

// Set moves the clock to t.
func (c *SystemClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset = time.Until(t)
	c.set = true
}

// IsSet reports whether the clock holds a valid time.
func (c *SystemClock) IsSet() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.set
}

// ManualClock only moves when told to.
type ManualClock struct {
	mu  sync.RWMutex
	now time.Time
	set bool
}

// NewManualClock creates an unset clock at t.
func NewManualClock(t time.Time) *ManualClock {
	return &ManualClock{now: t}
}

// Now returns the current time.
func (c *ManualClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// Set moves the clock to t and marks it set.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
	c.set = true
}

// IsSet reports whether Set was called.
func (c *ManualClock) IsSet() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.set
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
