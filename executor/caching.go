package executor

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/goliatone/go-sqlsession/cache"
	"github.com/goliatone/go-sqlsession/statement"
	"github.com/goliatone/go-sqlsession/transaction"
)

type wrappable interface {
	setWrapper(Executor)
}

// CachingExecutor adds the namespace (second level) cache to any executor.
// Results and clears are staged per session and reach the shared caches only
// on commit.
type CachingExecutor struct {
	delegate Executor
	tcm      *cache.TransactionalCacheManager
}

// NewCachingExecutor wraps delegate. Nested queries issued while mapping rows
// go through the wrapper.
func NewCachingExecutor(delegate Executor) *CachingExecutor {
	c := &CachingExecutor{delegate: delegate, tcm: cache.NewTransactionalCacheManager()}
	if w, ok := delegate.(wrappable); ok {
		w.setWrapper(c)
	}
	return c
}

func (c *CachingExecutor) Transaction() *transaction.Transaction { return c.delegate.Transaction() }

func (c *CachingExecutor) IsClosed() bool { return c.delegate.IsClosed() }

func (c *CachingExecutor) Close(ctx context.Context, forceRollback bool) error {
	if c.IsClosed() {
		return nil
	}
	var terr error
	if forceRollback {
		c.tcm.Rollback()
	} else {
		terr = c.tcm.Commit()
	}
	return errors.CombineErrors(terr, c.delegate.Close(ctx, forceRollback))
}

func (c *CachingExecutor) Update(ctx context.Context, ms *statement.MappedStatement, param any) (int64, error) {
	if c.IsClosed() {
		return 0, ErrExecutorClosed
	}
	c.flushCacheIfRequired(ms)
	return c.delegate.Update(ctx, ms, param)
}

func (c *CachingExecutor) Query(ctx context.Context, ms *statement.MappedStatement, param any, bounds statement.RowBounds, handler statement.ResultHandler) ([]any, error) {
	if c.IsClosed() {
		return nil, ErrExecutorClosed
	}
	bound, err := ms.BoundSQL(param)
	if err != nil {
		return nil, err
	}
	key, err := c.CreateCacheKey(ms, param, bounds, bound)
	if err != nil {
		return nil, err
	}
	return c.QueryWithKey(ctx, ms, param, bounds, handler, key, bound)
}

func (c *CachingExecutor) QueryWithKey(ctx context.Context, ms *statement.MappedStatement, param any, bounds statement.RowBounds, handler statement.ResultHandler, key *cache.CacheKey, bound *statement.BoundSQL) ([]any, error) {
	if c.IsClosed() {
		return nil, ErrExecutorClosed
	}
	if ms.Cache == nil {
		return c.delegate.QueryWithKey(ctx, ms, param, bounds, handler, key, bound)
	}
	c.flushCacheIfRequired(ms)
	if !ms.UseCache || handler != nil {
		return c.delegate.QueryWithKey(ctx, ms, param, bounds, handler, key, bound)
	}
	if ms.Callable && bound.HasOutParameters() {
		return nil, errors.Wrapf(ErrOutParamsNotCacheable, "statement %s", ms.ID)
	}

	v, ok, err := c.tcm.Get(ms.Cache, key)
	if err != nil {
		return nil, errors.Wrapf(err, "statement %s: cache lookup", ms.ID)
	}
	if ok {
		if list, isList := v.([]any); isList {
			return list, nil
		}
		return nil, errors.Newf("statement %s: cache %s holds %T, not a row list", ms.ID, ms.Cache.ID(), v)
	}

	list, err := c.delegate.QueryWithKey(ctx, ms, param, bounds, handler, key, bound)
	if err != nil {
		return nil, err
	}
	if err := c.tcm.Put(ms.Cache, key, list); err != nil {
		return nil, errors.Wrapf(err, "statement %s: cache put", ms.ID)
	}
	return list, nil
}

func (c *CachingExecutor) QueryCursor(ctx context.Context, ms *statement.MappedStatement, param any, bounds statement.RowBounds) (*Cursor, error) {
	c.flushCacheIfRequired(ms)
	return c.delegate.QueryCursor(ctx, ms, param, bounds)
}

func (c *CachingExecutor) FlushStatements(ctx context.Context) ([]BatchResult, error) {
	return c.delegate.FlushStatements(ctx)
}

func (c *CachingExecutor) Commit(ctx context.Context, required bool) error {
	if err := c.delegate.Commit(ctx, required); err != nil {
		return err
	}
	return c.tcm.Commit()
}

func (c *CachingExecutor) Rollback(ctx context.Context, required bool) error {
	if c.IsClosed() {
		return errors.Wrap(ErrExecutorClosed, "cannot rollback")
	}
	err := c.delegate.Rollback(ctx, required)
	if required {
		c.tcm.Rollback()
	}
	return err
}

func (c *CachingExecutor) CreateCacheKey(ms *statement.MappedStatement, param any, bounds statement.RowBounds, bound *statement.BoundSQL) (*cache.CacheKey, error) {
	return c.delegate.CreateCacheKey(ms, param, bounds, bound)
}

func (c *CachingExecutor) IsCached(ms *statement.MappedStatement, key *cache.CacheKey) bool {
	return c.delegate.IsCached(ms, key)
}

func (c *CachingExecutor) ClearLocalCache() { c.delegate.ClearLocalCache() }

func (c *CachingExecutor) DeferLoad(ms *statement.MappedStatement, key *cache.CacheKey, assign func(rows []any) error) error {
	return c.delegate.DeferLoad(ms, key, assign)
}

func (c *CachingExecutor) flushCacheIfRequired(ms *statement.MappedStatement) {
	if ms.Cache != nil && ms.FlushCacheRequired {
		c.tcm.Clear(ms.Cache)
	}
}
