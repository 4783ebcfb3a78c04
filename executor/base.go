package executor

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/goliatone/go-sqlsession/cache"
	"github.com/goliatone/go-sqlsession/internal/observability"
	"github.com/goliatone/go-sqlsession/statement"
	"github.com/goliatone/go-sqlsession/transaction"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// strategy is the statement handling that differs between executor types.
type strategy interface {
	doUpdate(ctx context.Context, ms *statement.MappedStatement, param any) (int64, error)
	doQuery(ctx context.Context, ms *statement.MappedStatement, param any, bounds statement.RowBounds, handler statement.ResultHandler, bound *statement.BoundSQL) ([]any, error)
	doQueryCursor(ctx context.Context, ms *statement.MappedStatement, param any, bounds statement.RowBounds, bound *statement.BoundSQL) (*Cursor, error)
	doFlushStatements(ctx context.Context, rollback bool) ([]BatchResult, error)
}

// placeholder marks a key whose query is still running.
type placeholder struct{}

type deferredLoad struct {
	key    *cache.CacheKey
	assign func(rows []any) error
}

// baseExecutor holds the session state shared by every strategy: the local
// cache, the local output parameter cache, deferred loads and the query stack.
type baseExecutor struct {
	id      string
	tx      *transaction.Transaction
	impl    strategy
	opts    options
	optList []Option
	logger *slog.Logger
	tracer trace.Tracer

	// wrapper is the outermost executor, used for nested queries.
	wrapper Executor

	localCache       *cache.PerpetualCache
	localOutputCache *cache.PerpetualCache
	deferred         []deferredLoad
	cursors          []*Cursor
	queryStack       int
	closed           bool
}

func newBaseExecutor(tx *transaction.Transaction, opts []Option) *baseExecutor {
	o := options{scope: ScopeSession}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.tracer == nil {
		o.tracer = observability.Tracer("executor")
	}
	id := uuid.NewString()
	return &baseExecutor{
		id:               id,
		tx:               tx,
		opts:             o,
		optList:          opts,
		logger:           o.logger.With("component", "executor", "session_id", id),
		tracer:           o.tracer,
		localCache:       cache.NewPerpetualCache("LocalCache"),
		localOutputCache: cache.NewPerpetualCache("LocalOutputParameterCache"),
	}
}

func (e *baseExecutor) setWrapper(w Executor) { e.wrapper = w }

func (e *baseExecutor) Transaction() *transaction.Transaction { return e.tx }

func (e *baseExecutor) IsClosed() bool { return e.closed }

func (e *baseExecutor) Update(ctx context.Context, ms *statement.MappedStatement, param any) (int64, error) {
	if e.closed {
		return 0, ErrExecutorClosed
	}
	ctx, span := e.startSpan(ctx, "executor.Update", ms)
	defer span.End()

	e.ClearLocalCache()
	ctx, cancel := withTimeout(ctx, ms)
	defer cancel()
	n, err := e.impl.doUpdate(ctx, ms, param)
	if err != nil {
		recordError(span, err)
		return 0, err
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", n))
	return n, nil
}

func (e *baseExecutor) Query(ctx context.Context, ms *statement.MappedStatement, param any, bounds statement.RowBounds, handler statement.ResultHandler) ([]any, error) {
	if e.closed {
		return nil, ErrExecutorClosed
	}
	bound, err := ms.BoundSQL(param)
	if err != nil {
		return nil, err
	}
	key, err := e.CreateCacheKey(ms, param, bounds, bound)
	if err != nil {
		return nil, err
	}
	return e.QueryWithKey(ctx, ms, param, bounds, handler, key, bound)
}

func (e *baseExecutor) QueryWithKey(ctx context.Context, ms *statement.MappedStatement, param any, bounds statement.RowBounds, handler statement.ResultHandler, key *cache.CacheKey, bound *statement.BoundSQL) ([]any, error) {
	if e.closed {
		return nil, ErrExecutorClosed
	}
	ctx, span := e.startSpan(ctx, "executor.Query", ms)
	defer span.End()

	if e.queryStack == 0 && ms.FlushCacheRequired {
		e.ClearLocalCache()
	}

	list, err := e.queryStacked(ctx, ms, param, bounds, handler, key, bound)
	if e.queryStack == 0 {
		if derr := e.runDeferredLoads(); derr != nil && err == nil {
			err = derr
		}
		if e.opts.scope == ScopeStatement {
			e.ClearLocalCache()
		}
	}
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	return list, nil
}

func (e *baseExecutor) queryStacked(ctx context.Context, ms *statement.MappedStatement, param any, bounds statement.RowBounds, handler statement.ResultHandler, key *cache.CacheKey, bound *statement.BoundSQL) ([]any, error) {
	e.queryStack++
	defer func() { e.queryStack-- }()

	if handler == nil {
		if v, ok, _ := e.localCache.Get(key); ok {
			// an in-flight placeholder falls through to the database
			if list, isList := v.([]any); isList {
				trace.SpanFromContext(ctx).SetAttributes(attribute.Bool("cache.local_hit", true))
				if ms.Callable {
					if err := e.replayOutputParameters(key, param); err != nil {
						return nil, err
					}
				}
				return list, nil
			}
		}
	}
	return e.queryFromDatabase(ctx, ms, param, bounds, handler, key, bound)
}

func (e *baseExecutor) queryFromDatabase(ctx context.Context, ms *statement.MappedStatement, param any, bounds statement.RowBounds, handler statement.ResultHandler, key *cache.CacheKey, bound *statement.BoundSQL) ([]any, error) {
	_ = e.localCache.Put(key, placeholder{})

	ctx, cancel := withTimeout(withExecutor(ctx, e.outer()), ms)
	defer cancel()
	list, err := e.impl.doQuery(ctx, ms, param, bounds, handler, bound)
	e.localCache.Remove(key)
	if err != nil {
		return nil, err
	}
	if handler != nil {
		// rows went to the handler; there is no list to cache
		return nil, nil
	}
	if list == nil {
		list = []any{}
	}
	_ = e.localCache.Put(key, list)
	if ms.Callable {
		e.captureOutputParameters(key, bound, param)
	}
	return list, nil
}

func (e *baseExecutor) captureOutputParameters(key *cache.CacheKey, bound *statement.BoundSQL, param any) {
	outs := make(map[string]any)
	for _, m := range bound.ParameterMappings {
		if m.Mode == statement.ModeIn {
			continue
		}
		if v, err := statement.PropertyValue(param, m.Property); err == nil {
			outs[m.Property] = v
		}
	}
	_ = e.localOutputCache.Put(key, outs)
}

func (e *baseExecutor) replayOutputParameters(key *cache.CacheKey, param any) error {
	v, ok, _ := e.localOutputCache.Get(key)
	if !ok || param == nil {
		return nil
	}
	for property, value := range v.(map[string]any) {
		if err := statement.SetPropertyValue(param, property, value); err != nil {
			return errors.Wrapf(err, "replay output parameter %q", property)
		}
	}
	return nil
}

func (e *baseExecutor) runDeferredLoads() error {
	loads := e.deferred
	e.deferred = nil
	var first error
	for _, d := range loads {
		if err := e.load(d); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (e *baseExecutor) load(d deferredLoad) error {
	v, _, _ := e.localCache.Get(d.key)
	rows, _ := v.([]any)
	return d.assign(rows)
}

func (e *baseExecutor) QueryCursor(ctx context.Context, ms *statement.MappedStatement, param any, bounds statement.RowBounds) (*Cursor, error) {
	if e.closed {
		return nil, ErrExecutorClosed
	}
	bound, err := ms.BoundSQL(param)
	if err != nil {
		return nil, err
	}
	cur, err := e.impl.doQueryCursor(withExecutor(ctx, e.outer()), ms, param, bounds, bound)
	if err != nil {
		return nil, err
	}
	e.cursors = append(e.cursors, cur)
	return cur, nil
}

func (e *baseExecutor) FlushStatements(ctx context.Context) ([]BatchResult, error) {
	return e.flushStatements(ctx, false)
}

func (e *baseExecutor) flushStatements(ctx context.Context, rollback bool) ([]BatchResult, error) {
	if e.closed {
		return nil, ErrExecutorClosed
	}
	return e.impl.doFlushStatements(ctx, rollback)
}

func (e *baseExecutor) Commit(ctx context.Context, required bool) error {
	if e.closed {
		return errors.Wrap(ErrExecutorClosed, "cannot commit")
	}
	e.ClearLocalCache()
	if _, err := e.flushStatements(ctx, false); err != nil {
		return err
	}
	if required {
		return e.tx.Commit()
	}
	return nil
}

func (e *baseExecutor) Rollback(ctx context.Context, required bool) error {
	if e.closed {
		return errors.Wrap(ErrExecutorClosed, "cannot rollback")
	}
	e.ClearLocalCache()
	_, ferr := e.flushStatements(ctx, true)
	if required {
		if err := e.tx.Rollback(); err != nil {
			return err
		}
	}
	return ferr
}

func (e *baseExecutor) Close(ctx context.Context, forceRollback bool) error {
	if e.closed {
		return nil
	}
	for _, cur := range e.cursors {
		if err := cur.Close(); err != nil {
			e.logger.Debug("close cursor failed", "error", err)
		}
	}
	e.cursors = nil
	rerr := e.Rollback(ctx, forceRollback)
	if rerr != nil {
		e.logger.Warn("rollback on close failed", "error", rerr)
	}
	cerr := e.tx.Close()
	e.closed = true
	e.deferred = nil
	e.localCache.Clear()
	e.localOutputCache.Clear()
	return errors.CombineErrors(rerr, cerr)
}

func (e *baseExecutor) CreateCacheKey(ms *statement.MappedStatement, param any, bounds statement.RowBounds, bound *statement.BoundSQL) (*cache.CacheKey, error) {
	if e.closed {
		return nil, ErrExecutorClosed
	}
	key := cache.NewCacheKey(ms.ID, bounds.Offset, bounds.Limit, bound.SQL)
	for _, m := range bound.ParameterMappings {
		if m.Mode == statement.ModeOut {
			continue
		}
		v, err := bound.Value(m)
		if err != nil {
			return nil, errors.Wrapf(err, "statement %s: cache key", ms.ID)
		}
		key.Update(v)
	}
	if e.opts.environmentID != "" {
		key.Update(e.opts.environmentID)
	}
	return key, nil
}

func (e *baseExecutor) IsCached(_ *statement.MappedStatement, key *cache.CacheKey) bool {
	_, ok, _ := e.localCache.Get(key)
	return ok
}

func (e *baseExecutor) ClearLocalCache() {
	if e.closed {
		return
	}
	e.localCache.Clear()
	e.localOutputCache.Clear()
}

func (e *baseExecutor) DeferLoad(_ *statement.MappedStatement, key *cache.CacheKey, assign func(rows []any) error) error {
	if e.closed {
		return ErrExecutorClosed
	}
	d := deferredLoad{key: key, assign: assign}
	if v, ok, _ := e.localCache.Get(key); ok {
		if _, resolved := v.([]any); resolved {
			return e.load(d)
		}
	}
	e.deferred = append(e.deferred, d)
	return nil
}

func (e *baseExecutor) outer() Executor {
	return e.wrapper
}

func (e *baseExecutor) startSpan(ctx context.Context, name string, ms *statement.MappedStatement) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("statement.id", ms.ID),
		attribute.String("statement.kind", ms.Kind.String()),
		attribute.String("session.id", e.id),
	))
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
