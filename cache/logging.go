package cache

import (
	"log/slog"
	"sync/atomic"
)

// LoggingCache counts requests and hits and reports the hit ratio at debug level.
type LoggingCache struct {
	delegate Cache
	logger   *slog.Logger
	requests atomic.Int64
	hits     atomic.Int64
}

// NewLoggingCache wraps delegate with hit ratio logging.
func NewLoggingCache(delegate Cache, logger *slog.Logger) *LoggingCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingCache{
		delegate: delegate,
		logger:   logger.With(slog.String("component", "cache"), slog.String("cache_id", delegate.ID())),
	}
}

func (c *LoggingCache) ID() string { return c.delegate.ID() }

func (c *LoggingCache) Get(key *CacheKey) (any, bool, error) {
	c.requests.Add(1)
	v, ok, err := c.delegate.Get(key)
	if ok {
		c.hits.Add(1)
	}
	c.logger.Debug("cache lookup", slog.Bool("hit", ok), slog.Float64("hit_ratio", c.HitRatio()))
	return v, ok, err
}

func (c *LoggingCache) Put(key *CacheKey, value any) error { return c.delegate.Put(key, value) }

func (c *LoggingCache) Remove(key *CacheKey) { c.delegate.Remove(key) }

func (c *LoggingCache) Clear() { c.delegate.Clear() }

func (c *LoggingCache) Size() int { return c.delegate.Size() }

// HitRatio returns hits over requests, or 0 before the first request.
func (c *LoggingCache) HitRatio() float64 {
	requests := c.requests.Load()
	if requests == 0 {
		return 0
	}
	return float64(c.hits.Load()) / float64(requests)
}
