package cache

import (
	"github.com/goliatone/go-sqlsession/internal/cacheinfra"
)

// sturdycCache adapts the sturdyc store to the Cache contract.
// The store is sharded and safe for concurrent use.
type sturdycCache struct {
	id    string
	cfg   cacheinfra.Config
	store *cacheinfra.SturdycStore
}

func newSturdycCache(id string) *sturdycCache {
	return &sturdycCache{id: id, cfg: cacheinfra.DefaultConfig()}
}

// init builds the store once every property has been applied.
func (c *sturdycCache) init() error {
	store, err := cacheinfra.NewSturdycStore(c.cfg)
	if err != nil {
		return err
	}
	c.store = store
	return nil
}

func (c *sturdycCache) SetProperty(name, value string) error {
	if err := c.cfg.Apply(name, value); err != nil {
		return &ConfigError{Field: "Properties." + name, Message: err.Error()}
	}
	return nil
}

func (c *sturdycCache) ID() string { return c.id }

func (c *sturdycCache) Get(key *CacheKey) (any, bool, error) {
	v, ok := c.store.Get(key.String())
	if !ok || v == nil {
		return nil, false, nil
	}
	return v, true, nil
}

func (c *sturdycCache) Put(key *CacheKey, value any) error {
	if key.Cacheable() {
		c.store.Set(key.String(), value)
	}
	return nil
}

func (c *sturdycCache) Remove(key *CacheKey) { c.store.Delete(key.String()) }

func (c *sturdycCache) Clear() { c.store.Clear() }

func (c *sturdycCache) Size() int { return c.store.Size() }
