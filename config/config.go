package config

import (
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/goliatone/go-sqlsession/cache"
	"github.com/goliatone/go-sqlsession/executor"
	"github.com/goliatone/go-sqlsession/pool"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. SQLSESSION_POOL_MAX_ACTIVE.
const EnvPrefix = "SQLSESSION"

// keyDelimiter replaces viper's "." so dotted namespaces stay single keys.
const keyDelimiter = "::"

// Config holds the runtime configuration.
type Config struct {
	Pool     pool.Config            `mapstructure:"pool"`
	Executor executor.Config        `mapstructure:"executor"`
	Caches   map[string]CacheConfig `mapstructure:"caches"`
	Logging  LoggingConfig          `mapstructure:"logging"`
}

// CacheConfig declares one namespace cache. A cache with Ref set shares the
// cache of the referenced namespace and ignores its other options.
type CacheConfig struct {
	Implementation  string            `mapstructure:"implementation"`
	Eviction        string            `mapstructure:"eviction"`
	Size            int               `mapstructure:"size"`
	FlushInterval   time.Duration     `mapstructure:"flush_interval"`
	ReadWrite       *bool             `mapstructure:"read_write"`
	Blocking        bool              `mapstructure:"blocking"`
	BlockingTimeout time.Duration     `mapstructure:"blocking_timeout"`
	Properties      map[string]string `mapstructure:"properties"`
	Ref             string            `mapstructure:"ref"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// Load reads configuration from path, or from sqlsession.yaml in ./config or
// the working directory when path is empty, then applies environment overrides.
// A missing default file is not an error.
func Load(path string) (*Config, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter(keyDelimiter))

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("sqlsession")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(keyDelimiter, "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "failed to read config")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	key := func(parts ...string) string { return strings.Join(parts, keyDelimiter) }

	p := pool.DefaultConfig()
	v.SetDefault(key("pool", "driver"), "")
	v.SetDefault(key("pool", "url"), "")
	v.SetDefault(key("pool", "username"), "")
	v.SetDefault(key("pool", "password"), "")
	v.SetDefault(key("pool", "max_active"), p.MaxActive)
	v.SetDefault(key("pool", "max_idle"), p.MaxIdle)
	v.SetDefault(key("pool", "max_checkout_time"), p.MaxCheckoutTime)
	v.SetDefault(key("pool", "time_to_wait"), p.TimeToWait)
	v.SetDefault(key("pool", "max_wait"), p.MaxWait)
	v.SetDefault(key("pool", "bad_connection_tolerance"), p.BadConnectionTolerance)
	v.SetDefault(key("pool", "ping_enabled"), p.PingEnabled)
	v.SetDefault(key("pool", "ping_query"), p.PingQuery)
	v.SetDefault(key("pool", "ping_not_used_for"), p.PingNotUsedFor)

	e := executor.DefaultConfig()
	v.SetDefault(key("executor", "default_type"), string(e.DefaultType))
	v.SetDefault(key("executor", "cache_enabled"), e.CacheEnabled)
	v.SetDefault(key("executor", "local_cache_scope"), string(e.LocalCacheScope))
	v.SetDefault(key("executor", "environment_id"), e.EnvironmentID)

	v.SetDefault(key("logging", "level"), "info")
	v.SetDefault(key("logging", "format"), "json")
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Pool.Validate(); err != nil {
		return errors.Wrap(err, "pool")
	}
	if err := c.Executor.Validate(); err != nil {
		return errors.Wrap(err, "executor")
	}
	for _, ns := range c.cacheNamespaces() {
		cc := c.Caches[ns]
		if cc.Ref != "" {
			target, ok := c.Caches[cc.Ref]
			if !ok {
				return errors.Newf("cache %s: ref to undeclared namespace %q", ns, cc.Ref)
			}
			if target.Ref != "" {
				return errors.Newf("cache %s: ref target %q is itself a ref", ns, cc.Ref)
			}
			continue
		}
		if err := cc.CacheConfig(ns).Validate(); err != nil {
			return errors.Wrapf(err, "cache %s", ns)
		}
	}
	return nil
}

// CacheConfig converts the declaration into a cache.Config for namespace.
func (cc CacheConfig) CacheConfig(namespace string) cache.Config {
	out := cache.DefaultConfig(namespace)
	if cc.Implementation != "" {
		out.Implementation = cc.Implementation
	}
	if cc.Eviction != "" {
		out.Eviction = cc.Eviction
	}
	if cc.Size != 0 {
		out.Size = cc.Size
	}
	if cc.ReadWrite != nil {
		out.ReadWrite = *cc.ReadWrite
	}
	out.FlushInterval = cc.FlushInterval
	out.Blocking = cc.Blocking
	out.BlockingTimeout = cc.BlockingTimeout
	out.Properties = cc.Properties
	return out
}

// RegisterCaches builds every declared cache into reg. Refs are resolved after
// all owned caches exist.
func (c *Config) RegisterCaches(reg *cache.Registry, logger *slog.Logger) error {
	namespaces := c.cacheNamespaces()
	for _, ns := range namespaces {
		cc := c.Caches[ns]
		if cc.Ref != "" {
			continue
		}
		cfg := cc.CacheConfig(ns)
		cfg.Logger = logger
		if _, err := reg.Register(ns, cfg); err != nil {
			return errors.Wrapf(err, "cache %s", ns)
		}
	}
	for _, ns := range namespaces {
		if ref := c.Caches[ns].Ref; ref != "" {
			if _, err := reg.Ref(ns, ref); err != nil {
				return errors.Wrapf(err, "cache %s", ns)
			}
		}
	}
	return nil
}

func (c *Config) cacheNamespaces() []string {
	out := make([]string, 0, len(c.Caches))
	for ns := range c.Caches {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}
