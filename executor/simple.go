package executor

import (
	"context"

	"github.com/goliatone/go-sqlsession/statement"
	"github.com/goliatone/go-sqlsession/transaction"
)

// SimpleExecutor prepares a new statement for every call and closes it right after.
type SimpleExecutor struct {
	*baseExecutor
}

// NewSimpleExecutor creates a simple executor over tx.
func NewSimpleExecutor(tx *transaction.Transaction, opts ...Option) *SimpleExecutor {
	e := &SimpleExecutor{baseExecutor: newBaseExecutor(tx, opts)}
	e.impl = e
	e.wrapper = e
	return e
}

func (e *SimpleExecutor) doUpdate(ctx context.Context, ms *statement.MappedStatement, param any) (int64, error) {
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
	stmt, err := prepare(ctx, conn, bound.SQL)
	if err != nil {
		return 0, err
	}
	defer closeStmt(stmt, e.logger)

	res, err := runUpdate(ctx, conn, stmt, ms, param, bound)
	if err != nil {
		return 0, err
	}
	if err := e.generateKeysAfter(ctx, ms, res, param); err != nil {
		return 0, err
	}
	return rowsAffected(res), nil
}

func (e *SimpleExecutor) doQuery(ctx context.Context, ms *statement.MappedStatement, param any, bounds statement.RowBounds, handler statement.ResultHandler, bound *statement.BoundSQL) ([]any, error) {
	conn, err := e.tx.Conn(ctx)
	if err != nil {
		return nil, err
	}
	stmt, err := prepare(ctx, conn, bound.SQL)
	if err != nil {
		return nil, err
	}
	defer closeStmt(stmt, e.logger)
	return runQuery(ctx, conn, stmt, ms, param, bounds, handler, bound)
}

func (e *SimpleExecutor) doQueryCursor(ctx context.Context, ms *statement.MappedStatement, _ any, bounds statement.RowBounds, bound *statement.BoundSQL) (*Cursor, error) {
	conn, err := e.tx.Conn(ctx)
	if err != nil {
		return nil, err
	}
	stmt, err := prepare(ctx, conn, bound.SQL)
	if err != nil {
		return nil, err
	}
	cur, err := openCursor(ctx, conn, stmt, ms, bounds, bound, stmt.Close)
	if err != nil {
		closeStmt(stmt, e.logger)
		return nil, err
	}
	return cur, nil
}

func (e *SimpleExecutor) doFlushStatements(context.Context, bool) ([]BatchResult, error) {
	return nil, nil
}
