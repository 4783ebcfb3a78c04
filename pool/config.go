package pool

import (
	"fmt"
	"sort"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config controls the bounds and health checks of a Pool.
type Config struct {
	// Driver is the database/sql driver name used when the pool opens its own data source.
	Driver   string `mapstructure:"driver"`
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`

	// MaxActive bounds the connections checked out at once.
	MaxActive int `mapstructure:"max_active"`
	// MaxIdle bounds the connections kept open while unused.
	MaxIdle int `mapstructure:"max_idle"`
	// MaxCheckoutTime is how long a connection may stay checked out before
	// another caller is allowed to reclaim it.
	MaxCheckoutTime time.Duration `mapstructure:"max_checkout_time"`
	// TimeToWait bounds a single wait for a released connection before the
	// acquire decision is re-evaluated.
	TimeToWait time.Duration `mapstructure:"time_to_wait"`
	// MaxWait bounds a whole acquire. Zero leaves it bounded by the context
	// and by overdue reclaim only.
	MaxWait time.Duration `mapstructure:"max_wait"`
	// BadConnectionTolerance is how many invalid connections, beyond MaxIdle,
	// one acquire discards before giving up.
	BadConnectionTolerance int `mapstructure:"bad_connection_tolerance"`

	PingEnabled bool `mapstructure:"ping_enabled"`
	// PingQuery is run to check a connection; empty uses the driver's Ping.
	PingQuery string `mapstructure:"ping_query"`
	// PingNotUsedFor only pings connections idle for longer than this.
	PingNotUsedFor time.Duration `mapstructure:"ping_not_used_for"`
}

// DefaultConfig returns the default pool bounds.
func DefaultConfig() Config {
	return Config{
		MaxActive:              10,
		MaxIdle:                5,
		MaxCheckoutTime:        20 * time.Second,
		TimeToWait:             20 * time.Second,
		BadConnectionTolerance: 3,
	}
}

// Validate checks the configuration for invalid values.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.MaxActive, validation.Required, validation.Min(1)),
		validation.Field(&c.MaxIdle, validation.Min(0)),
		validation.Field(&c.MaxCheckoutTime, validation.Min(time.Duration(0))),
		validation.Field(&c.TimeToWait, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.MaxWait, validation.Min(time.Duration(0))),
		validation.Field(&c.BadConnectionTolerance, validation.Min(0)),
		validation.Field(&c.PingNotUsedFor, validation.Min(time.Duration(0))),
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

// ConfigError represents a pool configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error in field %s: %s", e.Field, e.Message)
}
