package executor

import (
	"context"
	"database/sql/driver"

	"github.com/goliatone/go-sqlsession/pool"
	"github.com/goliatone/go-sqlsession/statement"
	"github.com/goliatone/go-sqlsession/transaction"
)

// ReuseExecutor keeps one prepared statement per distinct SQL text until the
// statements are flushed.
type ReuseExecutor struct {
	*baseExecutor
	statements map[string]driver.Stmt
}

// NewReuseExecutor creates a statement reusing executor over tx.
func NewReuseExecutor(tx *transaction.Transaction, opts ...Option) *ReuseExecutor {
	e := &ReuseExecutor{
		baseExecutor: newBaseExecutor(tx, opts),
		statements:   make(map[string]driver.Stmt),
	}
	e.impl = e
	e.wrapper = e
	return e
}

func (e *ReuseExecutor) prepareReused(ctx context.Context, conn *pool.PooledConn, query string) (driver.Stmt, error) {
	if stmt, ok := e.statements[query]; ok {
		return stmt, nil
	}
	stmt, err := prepare(ctx, conn, query)
	if err != nil {
		return nil, err
	}
	e.statements[query] = stmt
	return stmt, nil
}

func (e *ReuseExecutor) doUpdate(ctx context.Context, ms *statement.MappedStatement, param any) (int64, error) {
	conn, err := e.tx.Conn(ctx)
	if err != nil {
		return 0, err
	}
	if err := e.generateKeysBefore(ctx, ms, param); err != nil {
		return 0, err
	}
	bound, err := ms.BoundSQL(param)
	if err != nil {
		return 0, err
	}
	stmt, err := e.prepareReused(ctx, conn, bound.SQL)
	if err != nil {
		return 0, err
	}
	res, err := runUpdate(ctx, conn, stmt, ms, param, bound)
	if err != nil {
		return 0, err
	}
	if err := e.generateKeysAfter(ctx, ms, res, param); err != nil {
		return 0, err
	}
	return rowsAffected(res), nil
}

func (e *ReuseExecutor) doQuery(ctx context.Context, ms *statement.MappedStatement, param any, bounds statement.RowBounds, handler statement.ResultHandler, bound *statement.BoundSQL) ([]any, error) {
	conn, err := e.tx.Conn(ctx)
	if err != nil {
		return nil, err
	}
	stmt, err := e.prepareReused(ctx, conn, bound.SQL)
	if err != nil {
		return nil, err
	}
	return runQuery(ctx, conn, stmt, ms, param, bounds, handler, bound)
}

func (e *ReuseExecutor) doQueryCursor(ctx context.Context, ms *statement.MappedStatement, _ any, bounds statement.RowBounds, bound *statement.BoundSQL) (*Cursor, error) {
	conn, err := e.tx.Conn(ctx)
	if err != nil {
		return nil, err
	}
	stmt, err := e.prepareReused(ctx, conn, bound.SQL)
	if err != nil {
		return nil, err
	}
	return openCursor(ctx, conn, stmt, ms, bounds, bound, nil)
}

func (e *ReuseExecutor) doFlushStatements(context.Context, bool) ([]BatchResult, error) {
	for query, stmt := range e.statements {
		closeStmt(stmt, e.logger)
		delete(e.statements, query)
	}
	return nil, nil
}
