package cache

import "github.com/cockroachdb/errors"

// Cache is the capability every cache in a decorator chain exposes.
// Implementations are keyed by CacheKey equality, not pointer identity.
type Cache interface {
	// ID returns the cache identifier, usually the owning namespace.
	ID() string
	// Get returns the value stored under key. A nil stored value is reported as a miss.
	Get(key *CacheKey) (any, bool, error)
	// Put stores value under key.
	Put(key *CacheKey, value any) error
	// Remove drops the entry stored under key, if any.
	Remove(key *CacheKey)
	// Clear drops every entry.
	Clear()
	// Size returns the number of stored entries.
	Size() int
}

// Decorator wraps a cache with additional behaviour.
type Decorator func(Cache) (Cache, error)

// PropertySetter is implemented by caches that accept declarative properties.
// Unknown properties must be rejected with a *ConfigError.
type PropertySetter interface {
	SetProperty(name, value string) error
}

// ErrLockTimeout is returned by a blocking cache when a key lock could not be acquired in time.
var ErrLockTimeout = errors.New("cache: timed out waiting for key lock")
