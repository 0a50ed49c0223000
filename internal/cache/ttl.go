package cache

import (
	"sync"
	"time"
)

// TTL memoizes one expensive value with an explicit expiry. Recomputation is
// not locked: duplicate concurrent recomputes are acceptable and the last
// writer wins on the memo.
type TTL struct {
	mu      sync.RWMutex
	ttl     time.Duration
	value   any
	expires time.Time
	now     func() time.Time
}

func NewTTL(ttl time.Duration) *TTL {
	return &TTL{ttl: ttl, now: time.Now}
}

// Get returns the memoized value if present and not expired.
func (c *TTL) Get() (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.value == nil || c.now().After(c.expires) {
		return nil, false
	}
	return c.value, true
}

// Set stores a value and restarts its TTL.
func (c *TTL) Set(value any) {
	c.mu.Lock()
	c.value = value
	c.expires = c.now().Add(c.ttl)
	c.mu.Unlock()
}

// Invalidate drops the memoized value.
func (c *TTL) Invalidate() {
	c.mu.Lock()
	c.value = nil
	c.mu.Unlock()
}

// Do returns the memoized value or computes, stores, and returns a fresh one.
// Errors are not memoized.
func (c *TTL) Do(fn func() (any, error)) (any, error) {
	if value, ok := c.Get(); ok {
		return value, nil
	}
	value, err := fn()
	if err != nil {
		return nil, err
	}
	c.Set(value)
	return value, nil
}
