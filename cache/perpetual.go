package cache

type entry struct {
	key   *CacheKey
	value any
}

// PerpetualCache is the unbounded base cache every standard chain starts from.
// It is not safe for concurrent use on its own; wrap it with NewSynchronizedCache.
type PerpetualCache struct {
	id      string
	entries map[string]entry
}

// NewPerpetualCache creates an empty base cache.
func NewPerpetualCache(id string) *PerpetualCache {
	return &PerpetualCache{id: id, entries: make(map[string]entry)}
}

func (c *PerpetualCache) ID() string { return c.id }

func (c *PerpetualCache) Get(key *CacheKey) (any, bool, error) {
	e, ok := c.entries[key.String()]
	if !ok || e.value == nil {
		return nil, false, nil
	}
	return e.value, true, nil
}

func (c *PerpetualCache) Put(key *CacheKey, value any) error {
	if !key.Cacheable() {
		return nil
	}
	c.entries[key.String()] = entry{key: key, value: value}
	return nil
}

func (c *PerpetualCache) Remove(key *CacheKey) {
	delete(c.entries, key.String())
}

func (c *PerpetualCache) Clear() {
	clear(c.entries)
}

func (c *PerpetualCache) Size() int {
	return len(c.entries)
}

// SetProperty rejects every property; the perpetual cache has none.
func (c *PerpetualCache) SetProperty(name, value string) error {
	return &ConfigError{Field: "Properties." + name, Message: "unsupported by perpetual cache"}
}

// Keys returns the keys currently stored.
func (c *PerpetualCache) Keys() []*CacheKey {
	keys := make([]*CacheKey, 0, len(c.entries))
	for _, e := range c.entries {
		keys = append(keys, e.key)
	}
	return keys
}

