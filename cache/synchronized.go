package cache

import "sync"

// SynchronizedCache serializes every call to its delegate with a single lock.
type SynchronizedCache struct {
	mu       sync.Mutex
	delegate Cache
}

// NewSynchronizedCache makes delegate safe for concurrent callers.
func NewSynchronizedCache(delegate Cache) *SynchronizedCache {
	return &SynchronizedCache{delegate: delegate}
}

func (c *SynchronizedCache) ID() string { return c.delegate.ID() }

func (c *SynchronizedCache) Get(key *CacheKey) (any, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delegate.Get(key)
}

func (c *SynchronizedCache) Put(key *CacheKey, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delegate.Put(key, value)
}

func (c *SynchronizedCache) Remove(key *CacheKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delegate.Remove(key)
}

func (c *SynchronizedCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delegate.Clear()
}

func (c *SynchronizedCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delegate.Size()
}
