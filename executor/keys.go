package executor

import (
	"context"
	"database/sql/driver"

	"github.com/cockroachdb/errors"
	"github.com/goliatone/go-sqlsession/statement"
)

// keyRunner runs key generator selects on a simple executor sharing the
// session transaction, so they never flush a pending batch.
type keyRunner struct {
	e *baseExecutor
}

func (r keyRunner) Query(ctx context.Context, ms *statement.MappedStatement, param any) ([]any, error) {
	ke := NewSimpleExecutor(r.e.tx, r.e.optList...)
	return ke.Query(ctx, ms, param, statement.DefaultRowBounds(), nil)
}

func (e *baseExecutor) generateKeysBefore(ctx context.Context, ms *statement.MappedStatement, param any) error {
	if ms.KeyGenerator == nil {
		return nil
	}
	if err := ms.KeyGenerator.ProcessBefore(ctx, keyRunner{e: e}, ms, param); err != nil {
		return errors.Wrapf(err, "statement %s: generate keys", ms.ID)
	}
	return nil
}

func (e *baseExecutor) generateKeysAfter(ctx context.Context, ms *statement.MappedStatement, res driver.Result, param any) error {
	if ms.KeyGenerator == nil {
		return nil
	}
	if err := ms.KeyGenerator.ProcessAfter(ctx, keyRunner{e: e}, ms, res, param); err != nil {
		return errors.Wrapf(err, "statement %s: generate keys", ms.ID)
	}
	return nil
}
