package cacheinfra

import (
	"strconv"
	"time"

	"github.com/viccon/sturdyc"
)

// Config holds the configuration for the sturdyc backed cache store.
// It encapsulates the core sturdyc options needed for cache initialization.
type Config struct {
	// Capacity defines the maximum number of entries that the store can hold.
	// Must be greater than 0.
	Capacity int

	// NumShards determines the number of shards for concurrent access.
	// Must be greater than 0. Default: 64
	NumShards int

	// TTL is the time-to-live for stored entries.
	// Must be greater than 0.
	TTL time.Duration

	// EvictionPercentage specifies what percentage of entries to evict
	// when the store reaches its capacity. Must be between 1-100.
	EvictionPercentage int
}

// DefaultConfig returns a Config with sensible defaults for a namespace cache.
func DefaultConfig() Config {
	return Config{
		Capacity:           10000,
		NumShards:          64,
		TTL:                time.Hour,
		EvictionPercentage: 10,
	}
}

// ToSturdycOptions returns the sturdyc options every store is created with.
// Capacity, NumShards, TTL and EvictionPercentage go to sturdyc.New directly.
// Continuous evictions are disabled so a store never starts a goroutine;
// expired entries are filtered on read and the least recently used entries
// are evicted once a shard is full.
func (c Config) ToSturdycOptions() []sturdyc.Option {
	return []sturdyc.Option{sturdyc.WithNoContinuousEvictions()}
}

// Validate checks if the configuration values are valid.
func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return &ConfigError{Field: "Capacity", Message: "must be greater than 0"}
	}

	if c.NumShards <= 0 {
		return &ConfigError{Field: "NumShards", Message: "must be greater than 0"}
	}

	if c.Capacity < c.NumShards {
		return &ConfigError{Field: "Capacity", Message: "must be at least NumShards"}
	}

	if c.TTL <= 0 {
		return &ConfigError{Field: "TTL", Message: "must be greater than 0"}
	}

	if c.EvictionPercentage < 1 || c.EvictionPercentage > 100 {
		return &ConfigError{Field: "EvictionPercentage", Message: "must be between 1 and 100"}
	}

	return nil
}

// Apply sets a single named property on the config.
// Names follow the declarative cache options: capacity, numShards, ttl and
// evictionPercentage.
func (c *Config) Apply(name, value string) error {
	var err error
	switch name {
	case "capacity":
		c.Capacity, err = strconv.Atoi(value)
	case "numShards":
		c.NumShards, err = strconv.Atoi(value)
	case "ttl":
		c.TTL, err = time.ParseDuration(value)
	case "evictionPercentage":
		c.EvictionPercentage, err = strconv.Atoi(value)
	default:
		return &ConfigError{Field: name, Message: "unsupported property"}
	}
	if err != nil {
		return &ConfigError{Field: name, Message: err.Error()}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}

// SturdycStore wraps a sturdyc client as a string keyed store.
type SturdycStore struct {
	cfg    Config
	client *sturdyc.Client[any]
}

// NewSturdycStore validates cfg and creates the underlying sturdyc client.
func NewSturdycStore(cfg Config) (*SturdycStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[any](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.ToSturdycOptions()...,
	)

	return &SturdycStore{cfg: cfg, client: client}, nil
}

// Config returns the configuration the store was built with.
func (s *SturdycStore) Config() Config {
	return s.cfg
}

// Get returns the value stored under key.
func (s *SturdycStore) Get(key string) (any, bool) {
	return s.client.Get(key)
}

// Set stores value under key.
func (s *SturdycStore) Set(key string, value any) {
	s.client.Set(key, value)
}

// Delete removes a single entry.
func (s *SturdycStore) Delete(key string) {
	s.client.Delete(key)
}

// Clear removes every entry currently held by the client.
func (s *SturdycStore) Clear() {
	for _, key := range s.client.ScanKeys() {
		s.client.Delete(key)
	}
}

// Size returns the number of entries held by the client.
func (s *SturdycStore) Size() int {
	return s.client.Size()
}
