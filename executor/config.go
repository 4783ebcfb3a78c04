package executor

import (
	"fmt"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-sqlsession/transaction"
)

// Config selects the executor built for new sessions.
type Config struct {
	DefaultType     Type            `mapstructure:"default_type"`
	CacheEnabled    bool            `mapstructure:"cache_enabled"`
	LocalCacheScope LocalCacheScope `mapstructure:"local_cache_scope"`
	// EnvironmentID is added to every cache key.
	EnvironmentID string `mapstructure:"environment_id"`
}

// DefaultConfig returns simple executors with the second level cache enabled.
func DefaultConfig() Config {
	return Config{
		DefaultType:     TypeSimple,
		CacheEnabled:    true,
		LocalCacheScope: ScopeSession,
	}
}

// Validate checks the configuration for invalid values.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.DefaultType, validation.Required, validation.In(TypeSimple, TypeReuse, TypeBatch)),
		validation.Field(&c.LocalCacheScope, validation.Required, validation.In(ScopeSession, ScopeStatement)),
	)
	if err == nil {
		return nil
	}
	if errs, ok := err.(validation.Errors); ok {
		fields := make([]string, 0, len(errs))
		for f := range errs {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		return &ConfigError{Field: fields[0], Message: errs[fields[0]].Error()}
	}
	return err
}

// ConfigError represents an executor configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error in field %s: %s", e.Field, e.Message)
}

// New builds an executor of type typ, or cfg.DefaultType when typ is empty,
// wrapped with the second level cache when cfg.CacheEnabled is set.
func New(cfg Config, typ Type, tx *transaction.Transaction, opts ...Option) (Executor, error) {
	if typ == "" {
		typ = cfg.DefaultType
	}
	cfg.DefaultType = typ
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts = append([]Option{
		WithLocalCacheScope(cfg.LocalCacheScope),
		WithEnvironmentID(cfg.EnvironmentID),
	}, opts...)

	var e Executor
	switch typ {
	case TypeReuse:
		e = NewReuseExecutor(tx, opts...)
	case TypeBatch:
		e = NewBatchExecutor(tx, opts...)
	default:
		e = NewSimpleExecutor(tx, opts...)
	}
	if cfg.CacheEnabled {
		e = NewCachingExecutor(e)
	}
	return e, nil
}
