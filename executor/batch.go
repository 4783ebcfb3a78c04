package executor

import (
	"context"
	"database/sql/driver"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/goliatone/go-sqlsession/statement"
	"github.com/goliatone/go-sqlsession/transaction"
)

// BatchPending is returned by BatchExecutor.Update; the real counts are
// reported by FlushStatements.
const BatchPending int64 = math.MinInt32 + 1002

// BatchStmt is implemented by driver statements that can run a whole batch in
// one round trip.
type BatchStmt interface {
	ExecBatch(ctx context.Context, batch [][]driver.NamedValue) ([]driver.Result, error)
}

type batchGroup struct {
	stmt   driver.Stmt
	args   [][]driver.NamedValue
	result *BatchResult
}

// BatchExecutor queues consecutive updates that share a statement and SQL text
// on one prepared statement and runs them when statements are flushed.
// Queries flush pending batches first.
type BatchExecutor struct {
	*baseExecutor
	groups []*batchGroup
}

// NewBatchExecutor creates a batching executor over tx.
func NewBatchExecutor(tx *transaction.Transaction, opts ...Option) *BatchExecutor {
	e := &BatchExecutor{baseExecutor: newBaseExecutor(tx, opts)}
	e.impl = e
	e.wrapper = e
	return e
}

func (e *BatchExecutor) doUpdate(ctx context.Context, ms *statement.MappedStatement, param any) (int64, error) {
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

	var g *batchGroup
	if n := len(e.groups); n > 0 {
		last := e.groups[n-1]
		if last.result.SQL == bound.SQL && last.result.Statement == ms {
			g = last
		}
	}
	if g == nil {
		stmt, err := prepare(ctx, conn, bound.SQL)
		if err != nil {
			return 0, err
		}
		g = &batchGroup{stmt: stmt, result: &BatchResult{Statement: ms, SQL: bound.SQL}}
		e.groups = append(e.groups, g)
	}

	b, err := bind(conn, g.stmt, ms, bound)
	if err != nil {
		return 0, err
	}
	if len(b.outs) > 0 {
		return 0, errors.Newf("statement %s: output parameters cannot be batched", ms.ID)
	}
	g.args = append(g.args, b.args)
	g.result.Parameters = append(g.result.Parameters, param)
	return BatchPending, nil
}

func (e *BatchExecutor) doQuery(ctx context.Context, ms *statement.MappedStatement, param any, bounds statement.RowBounds, handler statement.ResultHandler, bound *statement.BoundSQL) ([]any, error) {
	if _, err := e.flushStatements(ctx, false); err != nil {
		return nil, err
	}
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

func (e *BatchExecutor) doQueryCursor(ctx context.Context, ms *statement.MappedStatement, _ any, bounds statement.RowBounds, bound *statement.BoundSQL) (*Cursor, error) {
	if _, err := e.flushStatements(ctx, false); err != nil {
		return nil, err
	}
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

func (e *BatchExecutor) doFlushStatements(ctx context.Context, rollback bool) ([]BatchResult, error) {
	groups := e.groups
	e.groups = nil
	defer func() {
		for _, g := range groups {
			closeStmt(g.stmt, e.logger)
		}
	}()
	if rollback || len(groups) == 0 {
		return nil, nil
	}

	results := make([]BatchResult, 0, len(groups))
	for i, g := range groups {
		if err := e.runGroup(ctx, g); err != nil {
			return results, &BatchError{
				Index:       i,
				StatementID: g.result.Statement.ID,
				SQL:         g.result.SQL,
				Successful:  results,
				Err:         err,
			}
		}
		results = append(results, *g.result)
	}
	e.logger.Debug("flushed batch", "groups", len(results))
	return results, nil
}

func (e *BatchExecutor) runGroup(ctx context.Context, g *batchGroup) error {
	var (
		res []driver.Result
		err error
	)
	if bs, ok := g.stmt.(BatchStmt); ok {
		res, err = bs.ExecBatch(ctx, g.args)
	} else {
		res = make([]driver.Result, 0, len(g.args))
		for _, args := range g.args {
			r, xerr := execStmt(ctx, g.stmt, args)
			if xerr != nil {
				err = xerr
				break
			}
			res = append(res, r)
		}
	}
	if err != nil {
		return errors.Wrapf(err, "statement %s: exec batch", g.result.Statement.ID)
	}
	if len(res) != len(g.args) {
		return errors.Newf("statement %s: driver returned %d results for %d batched executions",
			g.result.Statement.ID, len(res), len(g.args))
	}

	g.result.UpdateCounts = make([]int64, len(res))
	for i, r := range res {
		g.result.UpdateCounts[i] = rowsAffected(r)
	}
	for i, param := range g.result.Parameters {
		if err := e.generateKeysAfter(ctx, g.result.Statement, res[i], param); err != nil {
			return err
		}
	}
	return nil
}
