package cache

// TransactionalCache stages puts and clears for one transaction in front of a shared cache.
//
// Nothing reaches the delegate before Commit. Rollback discards staged work and
// releases any key lock a blocking delegate handed out on a miss. Staging state
// is owned by a single session and needs no locking.
type TransactionalCache struct {
	delegate      Cache
	clearOnCommit bool
	toAdd         map[string]entry
	missed        map[string]*CacheKey
}

// NewTransactionalCache creates a staging overlay for delegate.
func NewTransactionalCache(delegate Cache) *TransactionalCache {
	return &TransactionalCache{
		delegate: delegate,
		toAdd:    make(map[string]entry),
		missed:   make(map[string]*CacheKey),
	}
}

func (c *TransactionalCache) ID() string { return c.delegate.ID() }

// Get reads through to the committed cache unless a clear has been staged.
func (c *TransactionalCache) Get(key *CacheKey) (any, bool, error) {
	v, ok, err := c.delegate.Get(key)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		c.missed[key.String()] = key
	}
	if c.clearOnCommit {
		return nil, false, nil
	}
	return v, ok, nil
}

// Put stages value for commit.
func (c *TransactionalCache) Put(key *CacheKey, value any) error {
	c.toAdd[key.String()] = entry{key: key, value: value}
	return nil
}

// Remove is a no-op; removals are expressed as staged clears.
func (c *TransactionalCache) Remove(key *CacheKey) {}

// Clear stages a full clear of the delegate and drops staged puts.
func (c *TransactionalCache) Clear() {
	c.clearOnCommit = true
	clear(c.toAdd)
}

// Size reports the committed size.
func (c *TransactionalCache) Size() int { return c.delegate.Size() }

// Commit applies the staged clear and puts to the delegate.
func (c *TransactionalCache) Commit() error {
	if c.clearOnCommit {
		c.delegate.Clear()
	}
	err := c.flushPending()
	c.reset()
	return err
}

// Rollback discards staged work.
func (c *TransactionalCache) Rollback() {
	c.unlockMissed()
	c.reset()
}

func (c *TransactionalCache) flushPending() error {
	var firstErr error
	for _, e := range c.toAdd {
		if err := c.delegate.Put(e.key, e.value); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	// a nil put releases locks taken by misses that were never filled
	for k, key := range c.missed {
		if _, ok := c.toAdd[k]; ok {
			continue
		}
		if err := c.delegate.Put(key, nil); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *TransactionalCache) unlockMissed() {
	for _, key := range c.missed {
		c.delegate.Remove(key)
	}
}

func (c *TransactionalCache) reset() {
	c.clearOnCommit = false
	clear(c.toAdd)
	clear(c.missed)
}

// TransactionalCacheManager keeps one TransactionalCache per touched shared cache.
type TransactionalCacheManager struct {
	caches map[Cache]*TransactionalCache
	order  []Cache
}

// NewTransactionalCacheManager creates an empty manager.
func NewTransactionalCacheManager() *TransactionalCacheManager {
	return &TransactionalCacheManager{caches: make(map[Cache]*TransactionalCache)}
}

// Clear stages a full clear of c.
func (m *TransactionalCacheManager) Clear(c Cache) {
	m.transactional(c).Clear()
}

// Get reads key through the staging overlay of c.
func (m *TransactionalCacheManager) Get(c Cache, key *CacheKey) (any, bool, error) {
	return m.transactional(c).Get(key)
}

// Put stages value under key for c.
func (m *TransactionalCacheManager) Put(c Cache, key *CacheKey, value any) error {
	return m.transactional(c).Put(key, value)
}

// Commit applies staged work to every touched cache, in first-touch order.
func (m *TransactionalCacheManager) Commit() error {
	var firstErr error
	for _, c := range m.order {
		if err := m.caches[c].Commit(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Rollback discards staged work on every touched cache.
func (m *TransactionalCacheManager) Rollback() {
	for _, c := range m.order {
		m.caches[c].Rollback()
	}
}

func (m *TransactionalCacheManager) transactional(c Cache) *TransactionalCache {
	tc, ok := m.caches[c]
	if !ok {
		tc = NewTransactionalCache(c)
		m.caches[c] = tc
		m.order = append(m.order, c)
	}
	return tc
}
