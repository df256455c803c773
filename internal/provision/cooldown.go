package provision

import (
	"sync"
	"time"
)

// Cooldown remembers the last provisioning failure of each composition and
// refuses new attempts until the configured duration has passed.
type Cooldown struct {
	mu       sync.Mutex
	duration time.Duration
	failures map[string]time.Time
	now      func() time.Time
}

// NewCooldown creates a Cooldown of duration d. now supplies the current
// time; nil means time.Now.
func NewCooldown(d time.Duration, now func() time.Time) *Cooldown {
	if now == nil {
		now = time.Now
	}
	return &Cooldown{
		duration: d,
		failures: make(map[string]time.Time),
		now:      now,
	}
}

// Record marks a failure of composition at the current time.
func (c *Cooldown) Record(composition string) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now()
	c.failures[composition] = t
	return t
}

// Remaining returns how long composition is still cooling down, or zero.
func (c *Cooldown) Remaining(composition string) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	last, ok := c.failures[composition]
	if !ok {
		return 0
	}
	if left := c.duration - c.now().Sub(last); left > 0 {
		return left
	}
	return 0
}

// Active reports whether composition is cooling down.
func (c *Cooldown) Active(composition string) bool {
	return c.Remaining(composition) > 0
}

// LastFailure returns the time of the last recorded failure.
func (c *Cooldown) LastFailure(composition string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.failures[composition]
	return t, ok
}

// SetDuration changes the cooldown for future checks.
func (c *Cooldown) SetDuration(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.duration = d
}

// Reset forgets the failure of composition.
func (c *Cooldown) Reset(composition string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.failures, composition)
}
