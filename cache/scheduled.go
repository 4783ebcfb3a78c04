package cache

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultClearInterval is used when a scheduled cache is built with a non-positive interval.
const DefaultClearInterval = time.Hour

// ScheduledCache clears the whole delegate once clearInterval has elapsed since the last clear.
// The check runs lazily on every access; there is no background timer.
type ScheduledCache struct {
	delegate      Cache
	clock         clockwork.Clock
	clearInterval time.Duration
	lastClear     time.Time
}

// NewScheduledCache wraps delegate with interval based flushing.
func NewScheduledCache(delegate Cache, interval time.Duration, clock clockwork.Clock) *ScheduledCache {
	if interval <= 0 {
		interval = DefaultClearInterval
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ScheduledCache{
		delegate:      delegate,
		clock:         clock,
		clearInterval: interval,
		lastClear:     clock.Now(),
	}
}

func (c *ScheduledCache) ID() string { return c.delegate.ID() }

func (c *ScheduledCache) Get(key *CacheKey) (any, bool, error) {
	if c.clearWhenStale() {
		return nil, false, nil
	}
	return c.delegate.Get(key)
}

func (c *ScheduledCache) Put(key *CacheKey, value any) error {
	c.clearWhenStale()
	return c.delegate.Put(key, value)
}

func (c *ScheduledCache) Remove(key *CacheKey) {
	c.clearWhenStale()
	c.delegate.Remove(key)
}

func (c *ScheduledCache) Clear() {
	c.lastClear = c.clock.Now()
	c.delegate.Clear()
}

func (c *ScheduledCache) Size() int {
	c.clearWhenStale()
	return c.delegate.Size()
}

func (c *ScheduledCache) clearWhenStale() bool {
	if c.clock.Since(c.lastClear) > c.clearInterval {
		c.Clear()
		return true
	}
	return false
}
