package cache

import (
	"sort"

	"github.com/cockroachdb/errors"
)

// Build composes a cache chain from cfg.
//
// The base is decorated in a fixed order: eviction, custom decorators,
// scheduled flush, serialization, logging, synchronization and blocking.
// A sturdyc base evicts on its own, so only the lru policy is accepted for it
// and Size becomes its capacity. Every configuration problem surfaces here,
// never at request time.
func Build(cfg Config) (Cache, error) {
	sized := cfg.Size > 0
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	base, err := newBase(cfg, sized)
	if err != nil {
		return nil, err
	}

	var c Cache = base
	if _, perpetual := base.(*PerpetualCache); perpetual {
		if c, err = applyEviction(c, cfg); err != nil {
			return nil, err
		}
	}
	if c, err = applyDecorators(c, cfg.Decorators); err != nil {
		return nil, err
	}
	c = applyStandardDecorators(c, cfg)

	if cfg.OnBuild != nil {
		if err := cfg.OnBuild(c); err != nil {
			return nil, errors.Wrapf(err, "cache %s: on-build hook", cfg.ID)
		}
	}
	return c, nil
}

func newBase(cfg Config, sized bool) (Cache, error) {
	var base Cache
	switch cfg.Implementation {
	case ImplementationSturdyc:
		sc := newSturdycCache(cfg.ID)
		if sized {
			sc.cfg.Capacity = cfg.Size
		}
		base = sc
	default:
		base = NewPerpetualCache(cfg.ID)
	}

	if err := setProperties(base, cfg.Properties); err != nil {
		return nil, err
	}

	if sc, ok := base.(*sturdycCache); ok {
		if err := sc.init(); err != nil {
			return nil, &ConfigError{Field: "Properties", Message: err.Error()}
		}
	}
	return base, nil
}

func setProperties(c Cache, props map[string]string) error {
	if len(props) == 0 {
		return nil
	}
	setter, ok := c.(PropertySetter)
	if !ok {
		return &ConfigError{Field: "Properties", Message: "implementation does not accept properties"}
	}
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := setter.SetProperty(name, props[name]); err != nil {
			return err
		}
	}
	return nil
}

func applyEviction(c Cache, cfg Config) (Cache, error) {
	switch cfg.Eviction {
	case EvictionFIFO:
		return NewFIFOCache(c, cfg.Size), nil
	default:
		lru, err := NewLRUCache(c, cfg.Size)
		if err != nil {
			return nil, err
		}
		return lru, nil
	}
}

func applyDecorators(c Cache, decorators []Decorator) (Cache, error) {
	for i, decorate := range decorators {
		if decorate == nil {
			return nil, &ConfigError{Field: "Decorators", Message: "nil decorator"}
		}
		next, err := decorate(c)
		if err != nil {
			return nil, errors.Wrapf(err, "cache %s: decorator %d", c.ID(), i)
		}
		c = next
	}
	return c, nil
}

func applyStandardDecorators(c Cache, cfg Config) Cache {
	if cfg.FlushInterval > 0 {
		c = NewScheduledCache(c, cfg.FlushInterval, cfg.Clock)
	}
	if cfg.ReadWrite {
		c = NewSerializedCache(c)
	}
	c = NewLoggingCache(c, cfg.Logger)
	c = NewSynchronizedCache(c)
	if cfg.Blocking {
		c = NewBlockingCache(c, cfg.BlockingTimeout)
	}
	return c
}
