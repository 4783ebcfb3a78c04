package cache

import (
	"container/list"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultEvictionSize is used when an eviction decorator is built without a size.
const DefaultEvictionSize = 1024

// LRUCache evicts the least recently used entry once size is exceeded.
type LRUCache struct {
	delegate Cache
	keys     *lru.Cache[string, *CacheKey]
}

// NewLRUCache wraps delegate with least-recently-used eviction.
func NewLRUCache(delegate Cache, size int) (*LRUCache, error) {
	if size <= 0 {
		size = DefaultEvictionSize
	}
	keys, err := lru.NewWithEvict(size, func(_ string, evicted *CacheKey) {
		delegate.Remove(evicted)
	})
	if err != nil {
		return nil, &ConfigError{Field: "Size", Message: err.Error()}
	}
	return &LRUCache{delegate: delegate, keys: keys}, nil
}

func (c *LRUCache) ID() string { return c.delegate.ID() }

func (c *LRUCache) Get(key *CacheKey) (any, bool, error) {
	c.keys.Get(key.String())
	return c.delegate.Get(key)
}

func (c *LRUCache) Put(key *CacheKey, value any) error {
	if err := c.delegate.Put(key, value); err != nil {
		return err
	}
	if key.Cacheable() {
		c.keys.Add(key.String(), key)
	}
	return nil
}

func (c *LRUCache) Remove(key *CacheKey) {
	c.keys.Remove(key.String())
	c.delegate.Remove(key)
}

func (c *LRUCache) Clear() {
	c.delegate.Clear()
	c.keys.Purge()
}

func (c *LRUCache) Size() int { return c.delegate.Size() }

// SetProperty supports "size".
func (c *LRUCache) SetProperty(name, value string) error {
	if name != "size" {
		return &ConfigError{Field: "Properties." + name, Message: "unsupported by lru eviction"}
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return &ConfigError{Field: "Properties.size", Message: "must be a positive integer"}
	}
	c.keys.Resize(n)
	return nil
}

// FIFOCache evicts the oldest inserted entry once size is exceeded.
type FIFOCache struct {
	delegate Cache
	size     int
	order    *list.List
	index    map[string]*list.Element
}

// NewFIFOCache wraps delegate with first-in-first-out eviction.
func NewFIFOCache(delegate Cache, size int) *FIFOCache {
	if size <= 0 {
		size = DefaultEvictionSize
	}
	return &FIFOCache{
		delegate: delegate,
		size:     size,
		order:    list.New(),
		index:    make(map[string]*list.Element),
	}
}

func (c *FIFOCache) ID() string { return c.delegate.ID() }

func (c *FIFOCache) Get(key *CacheKey) (any, bool, error) {
	return c.delegate.Get(key)
}

func (c *FIFOCache) Put(key *CacheKey, value any) error {
	if key.Cacheable() {
		c.cycleKeyList(key)
	}
	return c.delegate.Put(key, value)
}

func (c *FIFOCache) cycleKeyList(key *CacheKey) {
	s := key.String()
	if _, ok := c.index[s]; ok {
		return
	}
	c.index[s] = c.order.PushBack(key)
	if c.order.Len() > c.size {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		evicted := oldest.Value.(*CacheKey)
		delete(c.index, evicted.String())
		c.delegate.Remove(evicted)
	}
}

func (c *FIFOCache) Remove(key *CacheKey) {
	s := key.String()
	if el, ok := c.index[s]; ok {
		c.order.Remove(el)
		delete(c.index, s)
	}
	c.delegate.Remove(key)
}

func (c *FIFOCache) Clear() {
	c.delegate.Clear()
	c.order.Init()
	clear(c.index)
}

func (c *FIFOCache) Size() int { return c.delegate.Size() }

// SetProperty supports "size".
func (c *FIFOCache) SetProperty(name, value string) error {
	if name != "size" {
		return &ConfigError{Field: "Properties." + name, Message: "unsupported by fifo eviction"}
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return &ConfigError{Field: "Properties.size", Message: "must be a positive integer"}
	}
	c.size = n
	return nil
}
