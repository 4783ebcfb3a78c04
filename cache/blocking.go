package cache

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/puzpuzpuz/xsync/v3"
)

// BlockingCache prevents duplicate miss-fills for the same key.
//
// A Get that misses leaves the caller holding the key lock until it calls Put
// (or Remove) for that key. Concurrent callers asking for the same key wait for
// the lock, then observe the value the first caller stored.
type BlockingCache struct {
	delegate Cache
	timeout  time.Duration
	locks    *xsync.MapOf[string, chan struct{}]
}

// NewBlockingCache wraps delegate. A zero timeout waits forever.
func NewBlockingCache(delegate Cache, timeout time.Duration) *BlockingCache {
	return &BlockingCache{
		delegate: delegate,
		timeout:  timeout,
		locks:    xsync.NewMapOf[string, chan struct{}](),
	}
}

func (c *BlockingCache) ID() string { return c.delegate.ID() }

func (c *BlockingCache) Get(key *CacheKey) (any, bool, error) {
	if err := c.acquireLock(key); err != nil {
		return nil, false, err
	}
	v, ok, err := c.delegate.Get(key)
	if ok || err != nil {
		c.releaseLock(key)
	}
	return v, ok, err
}

// Put stores value and releases the lock taken by the preceding miss.
func (c *BlockingCache) Put(key *CacheKey, value any) error {
	defer c.releaseLock(key)
	return c.delegate.Put(key, value)
}

// Remove only releases the key lock; the entry itself is left alone.
func (c *BlockingCache) Remove(key *CacheKey) {
	c.releaseLock(key)
}

func (c *BlockingCache) Clear() { c.delegate.Clear() }

func (c *BlockingCache) Size() int { return c.delegate.Size() }

// SetTimeout changes how long Get waits for a held key lock.
func (c *BlockingCache) SetTimeout(timeout time.Duration) { c.timeout = timeout }

func (c *BlockingCache) acquireLock(key *CacheKey) error {
	k := key.String()
	var deadline <-chan time.Time
	if c.timeout > 0 {
		timer := time.NewTimer(c.timeout)
		defer timer.Stop()
		deadline = timer.C
	}
	for {
		latch := make(chan struct{})
		held, loaded := c.locks.LoadOrStore(k, latch)
		if !loaded {
			return nil
		}
		select {
		case <-held:
		case <-deadline:
			return errors.Wrapf(ErrLockTimeout, "cache %s", c.ID())
		}
	}
}

func (c *BlockingCache) releaseLock(key *CacheKey) bool {
	latch, ok := c.locks.LoadAndDelete(key.String())
	if !ok {
		return false
	}
	close(latch)
	return true
}
