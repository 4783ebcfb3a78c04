// Package cache provides the cache contract, composite cache keys and the
// decorator chain used for both session (L1) and namespace (L2) caching.
//
// # Overview
//
// Every cache implements the small Cache interface (Get, Put, Remove, Clear,
// Size). A concrete namespace cache is a base store wrapped by decorators that
// are selected declaratively through Config and composed by Build:
//
//   - PerpetualCache: unbounded map keyed by CacheKey equality
//   - LRUCache / FIFOCache: bounded eviction
//   - ScheduledCache: clears everything once the flush interval has elapsed, checked lazily
//   - SerializedCache: msgpack snapshots so callers never alias cached state
//   - LoggingCache: hit ratio reporting
//   - SynchronizedCache: single lock around the whole chain
//   - BlockingCache: per-key lock held from a miss until the matching Put
//
// # Basic Usage
//
//	cfg := cache.DefaultConfig("users")
//	cfg.FlushInterval = 10 * time.Minute
//	cfg.Blocking = true
//
//	users, err := cache.Build(cfg)
//	if err != nil {
//		return err // configuration problems are reported here, never per request
//	}
//
// # Cache Keys
//
// CacheKey is an ordered list of contributed values. Each value is serialized
// to a type-tagged canonical string by the default KeySerializer, hashed with
// xxhash and folded into a running hash. Equality compares the ordered
// canonical values, not just the hash:
//
//	key := cache.NewCacheKey("users.byID", 0, math.MaxInt32, "SELECT * FROM users WHERE id = ?", 42)
//
// # Transactions
//
// TransactionalCache stages puts and clears for one session. Staged work
// reaches the shared cache only on Commit; Rollback discards it. The
// TransactionalCacheManager keeps one staging overlay per shared cache a
// session touches.
//
// # Implementations
//
// The sturdyc implementation stores entries in a sharded sturdyc client and
// accepts the properties capacity, numShards, ttl and evictionPercentage. It
// runs no background eviction; expired entries are dropped on read. Size sets
// its capacity unless the capacity property is given. It evicts by its own
// policy, so the fifo eviction is rejected. The remaining decorators apply to
// both implementations. The perpetual implementation accepts no properties.
package cache
