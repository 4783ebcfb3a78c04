package executor

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/goliatone/go-sqlsession/cache"
	"github.com/goliatone/go-sqlsession/statement"
	"github.com/goliatone/go-sqlsession/transaction"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrExecutorClosed is returned by every operation after Close.
	ErrExecutorClosed = errors.New("executor: closed")
	// ErrOutParamsNotCacheable is returned when a cached statement declares output parameters.
	ErrOutParamsNotCacheable = errors.New("executor: statements with output parameters cannot use the second level cache")
)

// Executor runs mapped statements for one session.
type Executor interface {
	// Update clears the local cache and runs an insert, update or delete.
	Update(ctx context.Context, ms *statement.MappedStatement, param any) (int64, error)
	// Query runs a select, serving it from the local cache when possible.
	// With a non-nil handler rows are passed to it and the returned list is nil.
	Query(ctx context.Context, ms *statement.MappedStatement, param any, bounds statement.RowBounds, handler statement.ResultHandler) ([]any, error)
	// QueryWithKey is Query with a precomputed cache key and bound SQL.
	QueryWithKey(ctx context.Context, ms *statement.MappedStatement, param any, bounds statement.RowBounds, handler statement.ResultHandler, key *cache.CacheKey, bound *statement.BoundSQL) ([]any, error)
	// QueryCursor runs a select and returns its rows lazily. Cursors bypass both caches.
	QueryCursor(ctx context.Context, ms *statement.MappedStatement, param any, bounds statement.RowBounds) (*Cursor, error)
	// FlushStatements executes pending batches and releases reusable statements.
	FlushStatements(ctx context.Context) ([]BatchResult, error)
	Commit(ctx context.Context, required bool) error
	Rollback(ctx context.Context, required bool) error
	CreateCacheKey(ms *statement.MappedStatement, param any, bounds statement.RowBounds, bound *statement.BoundSQL) (*cache.CacheKey, error)
	// IsCached reports whether key is in the local cache, resolved or in flight.
	IsCached(ms *statement.MappedStatement, key *cache.CacheKey) bool
	ClearLocalCache()
	// DeferLoad hands the rows cached under key to assign, immediately when they
	// are resolved and otherwise once the outermost query completes.
	DeferLoad(ms *statement.MappedStatement, key *cache.CacheKey, assign func(rows []any) error) error
	Transaction() *transaction.Transaction
	// Close rolls back when forceRollback is set and releases the connection.
	Close(ctx context.Context, forceRollback bool) error
	IsClosed() bool
}

// Type selects an executor strategy.
type Type string

const (
	TypeSimple Type = "simple"
	TypeReuse  Type = "reuse"
	TypeBatch  Type = "batch"
)

// LocalCacheScope controls how long local cache entries live.
type LocalCacheScope string

const (
	// ScopeSession keeps entries until an update, commit, rollback or close.
	ScopeSession LocalCacheScope = "session"
	// ScopeStatement clears the local cache after every outermost query.
	ScopeStatement LocalCacheScope = "statement"
)

// Option configures an executor.
type Option func(*options)

type options struct {
	scope         LocalCacheScope
	environmentID string
	logger        *slog.Logger
	tracer        trace.Tracer
}

// WithLocalCacheScope sets the local cache scope.
func WithLocalCacheScope(s LocalCacheScope) Option { return func(o *options) { o.scope = s } }

// WithEnvironmentID adds id to every cache key.
func WithEnvironmentID(id string) Option { return func(o *options) { o.environmentID = id } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// WithTracer sets the tracer used for statement spans.
func WithTracer(t trace.Tracer) Option { return func(o *options) { o.tracer = t } }

type ctxKey struct{}

// FromContext returns the executor running the query whose rows are being
// mapped, so result mappers can issue nested queries on the same session.
func FromContext(ctx context.Context) (Executor, bool) {
	e, ok := ctx.Value(ctxKey{}).(Executor)
	return e, ok
}

func withExecutor(ctx context.Context, e Executor) context.Context {
	return context.WithValue(ctx, ctxKey{}, e)
}
