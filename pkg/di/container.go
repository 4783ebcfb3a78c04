package di

import (
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/goliatone/go-sqlsession/bunhook"
	"github.com/goliatone/go-sqlsession/cache"
	"github.com/goliatone/go-sqlsession/config"
	"github.com/goliatone/go-sqlsession/executor"
	"github.com/goliatone/go-sqlsession/internal/observability"
	"github.com/goliatone/go-sqlsession/pool"
	"github.com/goliatone/go-sqlsession/statement"
	"github.com/goliatone/go-sqlsession/transaction"
)

// Container wires the runtime together. It owns the connection pool and the
// namespace cache registry, and creates sessions that share both.
type Container struct {
	config   config.Config
	pool     *pool.Pool
	registry *cache.Registry
	logger   *slog.Logger
}

// Option configures a Container.
type Option func(*containerOptions)

type containerOptions struct {
	dataSource *pool.UnpooledDataSource
	logger     *slog.Logger
	poolOpts   []pool.Option
}

// WithDataSource makes the pool open connections from ds instead of the
// configured driver and URL.
func WithDataSource(ds *pool.UnpooledDataSource) Option {
	return func(o *containerOptions) { o.dataSource = ds }
}

// WithLogger replaces the logger built from the logging configuration.
func WithLogger(l *slog.Logger) Option {
	return func(o *containerOptions) { o.logger = l }
}

// WithPoolOptions passes extra options to the pool.
func WithPoolOptions(opts ...pool.Option) Option {
	return func(o *containerOptions) { o.poolOpts = append(o.poolOpts, opts...) }
}

// NewContainer validates cfg, opens the pool and builds every declared cache.
func NewContainer(cfg config.Config, opts ...Option) (*Container, error) {
	var o containerOptions
	for _, opt := range opts {
		opt(&o)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if o.logger == nil {
		o.logger = observability.NewLogger(cfg.Logging.Level, cfg.Logging.Format).Logger
	}

	poolOpts := append([]pool.Option{pool.WithLogger(o.logger)}, o.poolOpts...)
	var (
		p   *pool.Pool
		err error
	)
	if o.dataSource != nil {
		p, err = pool.New(cfg.Pool, o.dataSource, poolOpts...)
	} else {
		p, err = pool.Open(cfg.Pool, poolOpts...)
	}
	if err != nil {
		return nil, errors.Wrap(err, "open pool")
	}

	registry := cache.NewRegistry()
	if err := cfg.RegisterCaches(registry, o.logger); err != nil {
		_ = p.Close()
		return nil, err
	}

	return &Container{
		config:   cfg,
		pool:     p,
		registry: registry,
		logger:   o.logger,
	}, nil
}

// NewContainerFromFile loads the configuration at path and builds a container.
func NewContainerFromFile(path string, opts ...Option) (*Container, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return NewContainer(*cfg, opts...)
}

// Pool returns the shared connection pool.
func (c *Container) Pool() *pool.Pool {
	return c.pool
}

// Registry returns the namespace cache registry.
func (c *Container) Registry() *cache.Registry {
	return c.registry
}

// Config returns a copy of the configuration used by this container.
func (c *Container) Config() config.Config {
	return c.config
}

// Logger returns the container logger.
func (c *Container) Logger() *slog.Logger {
	return c.logger
}

// NewSession opens a session of the configured default executor type.
func (c *Container) NewSession(autoCommit bool) (executor.Executor, error) {
	return c.NewExecutor(c.config.Executor.DefaultType, autoCommit)
}

// NewExecutor opens a session of type typ. The session acquires a connection
// on first use; closing it returns the connection to the pool.
func (c *Container) NewExecutor(typ executor.Type, autoCommit bool) (executor.Executor, error) {
	tx := transaction.New(c.pool,
		transaction.WithAutoCommit(autoCommit),
		transaction.WithLogger(c.logger),
	)
	return executor.New(c.config.Executor, typ, tx, executor.WithLogger(c.logger))
}

// Statement creates a mapped statement bound to the cache registered for its
// namespace, if there is one. Options may still override the cache.
func (c *Container) Statement(id string, kind statement.Kind, source statement.SQLSource, opts ...statement.Option) *statement.MappedStatement {
	ms := statement.New(id, kind, source, opts...)
	if ms.Cache == nil {
		if ch, ok := c.registry.Get(ms.Namespace); ok {
			ms.Cache = ch
		}
	}
	return ms
}

// FlushHook returns a bun query hook that flushes this container's caches.
func (c *Container) FlushHook(opts ...bunhook.Option) *bunhook.FlushHook {
	return bunhook.New(c.registry, append([]bunhook.Option{bunhook.WithLogger(c.logger)}, opts...)...)
}

// Close closes every pooled connection.
func (c *Container) Close() error {
	return c.pool.Close()
}
