package cache

import (
	"log/slog"
	"sort"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/jonboulle/clockwork"
)

// Base cache implementations.
const (
	ImplementationPerpetual = "perpetual"
	ImplementationSturdyc   = "sturdyc"
)

// Eviction policies applied to perpetual chains.
const (
	EvictionLRU  = "lru"
	EvictionFIFO = "fifo"
)

// Config declares how a namespace cache is composed.
type Config struct {
	// ID identifies the cache, usually the owning namespace.
	ID string
	// Implementation selects the base cache. Default: perpetual.
	Implementation string
	// Eviction selects the eviction decorator for perpetual chains. Default: lru.
	Eviction string
	// Size bounds the eviction decorator. Zero uses DefaultEvictionSize.
	Size int
	// FlushInterval clears the whole cache once elapsed since the last clear. Zero disables it.
	FlushInterval time.Duration
	// ReadWrite hands out copies of cached values instead of shared references.
	ReadWrite bool
	// Blocking makes concurrent misses on one key wait for the first miss-fill.
	Blocking bool
	// BlockingTimeout bounds the wait on a held key lock. Zero waits forever.
	BlockingTimeout time.Duration
	// Properties are applied to the base implementation; unknown names fail the build.
	Properties map[string]string
	// Decorators are applied in order right after the eviction decorator.
	Decorators []Decorator
	// OnBuild runs once the chain is fully composed.
	OnBuild func(Cache) error

	Clock  clockwork.Clock
	Logger *slog.Logger
}

// DefaultConfig returns a read-write LRU perpetual cache configuration.
func DefaultConfig(id string) Config {
	return Config{
		ID:             id,
		Implementation: ImplementationPerpetual,
		Eviction:       EvictionLRU,
		Size:           DefaultEvictionSize,
		ReadWrite:      true,
	}
}

// Validate checks the declared options.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.ID, validation.Required),
		validation.Field(&c.Implementation, validation.In(ImplementationPerpetual, ImplementationSturdyc)),
		validation.Field(&c.Eviction, validation.In(EvictionLRU, EvictionFIFO)),
		validation.Field(&c.Size, validation.Min(0)),
		validation.Field(&c.FlushInterval, validation.Min(time.Duration(0))),
		validation.Field(&c.BlockingTimeout, validation.Min(time.Duration(0))),
	)
	if err != nil {
		return toConfigError(err)
	}
	if c.Implementation == ImplementationSturdyc && c.Eviction != "" && c.Eviction != EvictionLRU {
		return &ConfigError{Field: "Eviction", Message: "the sturdyc implementation only evicts least recently used entries"}
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.Implementation == "" {
		c.Implementation = ImplementationPerpetual
	}
	if c.Eviction == "" {
		c.Eviction = EvictionLRU
	}
	if c.Size == 0 {
		c.Size = DefaultEvictionSize
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// ConfigError represents a cache configuration error detected at build time.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}

// toConfigError reports the first field error in a stable order.
func toConfigError(err error) error {
	if err == nil {
		return nil
	}
	errs, ok := err.(validation.Errors)
	if !ok || len(errs) == 0 {
		return &ConfigError{Field: "", Message: err.Error()}
	}
	fields := make([]string, 0, len(errs))
	for f := range errs {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return &ConfigError{Field: fields[0], Message: errs[fields[0]].Error()}
}
