package statement

import (
	"context"
	"database/sql/driver"

	"github.com/cockroachdb/errors"
)

// NoKeyGenerator does nothing.
type NoKeyGenerator struct{}

func (NoKeyGenerator) ProcessBefore(context.Context, QueryRunner, *MappedStatement, any) error {
	return nil
}

func (NoKeyGenerator) ProcessAfter(context.Context, QueryRunner, *MappedStatement, driver.Result, any) error {
	return nil
}

// LastInsertIDGenerator copies the driver reported insert id into Property.
type LastInsertIDGenerator struct {
	Property string
}

func (LastInsertIDGenerator) ProcessBefore(context.Context, QueryRunner, *MappedStatement, any) error {
	return nil
}

func (g LastInsertIDGenerator) ProcessAfter(_ context.Context, _ QueryRunner, ms *MappedStatement, result driver.Result, param any) error {
	if result == nil || param == nil {
		return nil
	}
	id, err := result.LastInsertId()
	if err != nil {
		return errors.Wrapf(err, "statement %s: last insert id", ms.ID)
	}
	return SetPropertyValue(param, g.Property, id)
}

// SelectKeyGenerator runs Statement through the calling executor and copies its single
// result into Property, before the update when Before is set and after it otherwise.
type SelectKeyGenerator struct {
	Statement *MappedStatement
	Property  string
	Before    bool
}

func (g SelectKeyGenerator) ProcessBefore(ctx context.Context, runner QueryRunner, _ *MappedStatement, param any) error {
	if !g.Before {
		return nil
	}
	return g.assign(ctx, runner, param)
}

func (g SelectKeyGenerator) ProcessAfter(ctx context.Context, runner QueryRunner, _ *MappedStatement, _ driver.Result, param any) error {
	if g.Before {
		return nil
	}
	return g.assign(ctx, runner, param)
}

func (g SelectKeyGenerator) assign(ctx context.Context, runner QueryRunner, param any) error {
	if param == nil {
		return nil
	}
	rows, err := runner.Query(ctx, g.Statement, param)
	if err != nil {
		return errors.Wrapf(err, "select key %s", g.Statement.ID)
	}
	if len(rows) != 1 {
		return errors.Newf("select key %s: expected one row, got %d", g.Statement.ID, len(rows))
	}
	value := rows[0]
	if row, ok := value.(map[string]any); ok {
		if len(row) != 1 {
			return errors.Newf("select key %s: expected one column, got %d", g.Statement.ID, len(row))
		}
		for _, v := range row {
			value = v
		}
	}
	return SetPropertyValue(param, g.Property, value)
}
