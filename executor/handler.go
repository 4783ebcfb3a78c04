package executor

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"io"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/goliatone/go-sqlsession/pool"
	"github.com/goliatone/go-sqlsession/statement"
)

type outParam struct {
	property string
	dest     *any
}

type binding struct {
	args []driver.NamedValue
	outs []outParam
}

func prepare(ctx context.Context, conn *pool.PooledConn, query string) (driver.Stmt, error) {
	stmt, err := conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, errors.Wrapf(err, "prepare %q", query)
	}
	return stmt, nil
}

// bind resolves the arguments for one execution. OUT and INOUT mappings bind
// sql.Out destinations that writeOutputs copies back onto the parameter object.
func bind(conn *pool.PooledConn, stmt driver.Stmt, ms *statement.MappedStatement, bound *statement.BoundSQL) (binding, error) {
	var checker driver.NamedValueChecker
	if c, ok := stmt.(driver.NamedValueChecker); ok {
		checker = c
	} else if raw, err := conn.Raw(); err == nil {
		checker, _ = raw.(driver.NamedValueChecker)
	}

	var b binding
	for i, m := range bound.ParameterMappings {
		nv := driver.NamedValue{Ordinal: i + 1}
		switch m.Mode {
		case statement.ModeIn:
			v, err := bound.Value(m)
			if err != nil {
				return binding{}, errors.Wrapf(err, "statement %s: parameter %d", ms.ID, i+1)
			}
			nv.Value = v
		default:
			if !ms.Callable {
				return binding{}, errors.Newf("statement %s: output parameter %q on a non-callable statement", ms.ID, m.Property)
			}
			holder := new(any)
			if m.Mode == statement.ModeInOut {
				v, err := bound.Value(m)
				if err != nil {
					return binding{}, errors.Wrapf(err, "statement %s: parameter %d", ms.ID, i+1)
				}
				*holder = v
			}
			nv.Value = sql.Out{Dest: holder, In: m.Mode == statement.ModeInOut}
			b.outs = append(b.outs, outParam{property: m.Property, dest: holder})
		}
		if err := checkValue(checker, &nv); err != nil {
			return binding{}, errors.Wrapf(err, "statement %s: parameter %d", ms.ID, i+1)
		}
		b.args = append(b.args, nv)
	}
	return b, nil
}

func checkValue(checker driver.NamedValueChecker, nv *driver.NamedValue) error {
	if checker != nil {
		err := checker.CheckNamedValue(nv)
		if err == nil {
			return nil
		}
		if !errors.Is(err, driver.ErrSkip) {
			return err
		}
	}
	if _, ok := nv.Value.(sql.Out); ok {
		return errors.New("driver does not support output parameters")
	}
	v, err := driver.DefaultParameterConverter.ConvertValue(nv.Value)
	if err != nil {
		return err
	}
	nv.Value = v
	return nil
}

func writeOutputs(param any, outs []outParam) error {
	for _, o := range outs {
		if err := statement.SetPropertyValue(param, o.property, *o.dest); err != nil {
			return err
		}
	}
	return nil
}

func execStmt(ctx context.Context, stmt driver.Stmt, args []driver.NamedValue) (driver.Result, error) {
	if s, ok := stmt.(driver.StmtExecContext); ok {
		return s.ExecContext(ctx, args)
	}
	values, err := positional(args)
	if err != nil {
		return nil, err
	}
	return stmt.Exec(values)
}

func queryStmt(ctx context.Context, stmt driver.Stmt, args []driver.NamedValue) (driver.Rows, error) {
	if s, ok := stmt.(driver.StmtQueryContext); ok {
		return s.QueryContext(ctx, args)
	}
	values, err := positional(args)
	if err != nil {
		return nil, err
	}
	return stmt.Query(values)
}

func positional(args []driver.NamedValue) ([]driver.Value, error) {
	values := make([]driver.Value, len(args))
	for i, a := range args {
		if a.Name != "" {
			return nil, errors.New("driver does not support named parameters")
		}
		values[i] = a.Value
	}
	return values, nil
}

func rowsAffected(res driver.Result) int64 {
	if res == nil {
		return 0
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}

// mapRows maps the rows inside bounds. With a handler every row is passed to it
// and nil is returned.
func mapRows(ctx context.Context, ms *statement.MappedStatement, rows driver.Rows, bounds statement.RowBounds, handler statement.ResultHandler) ([]any, error) {
	mapper := ms.Mapper
	if mapper == nil {
		mapper = statement.MapRowMapper{}
	}
	cols := rows.Columns()
	dest := make([]driver.Value, len(cols))

	for i := 0; i < bounds.Offset; i++ {
		if err := rows.Next(dest); err != nil {
			if errors.Is(err, io.EOF) {
				return emptyResult(handler), nil
			}
			return nil, err
		}
	}

	list := emptyResult(handler)
	rc := &statement.ResultContext{}
	for rc.Count < bounds.Limit && !rc.IsStopped() {
		if err := rows.Next(dest); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		obj, err := mapper.MapRow(ctx, cols, dest)
		if err != nil {
			return nil, errors.Wrapf(err, "statement %s: map row %d", ms.ID, rc.Count+1)
		}
		rc.Object = obj
		rc.Count++
		if handler != nil {
			handler.HandleResult(rc)
			continue
		}
		list = append(list, obj)
	}
	return list, nil
}

func emptyResult(handler statement.ResultHandler) []any {
	if handler != nil {
		return nil
	}
	return []any{}
}

func withTimeout(ctx context.Context, ms *statement.MappedStatement) (context.Context, context.CancelFunc) {
	if ms.Timeout > 0 {
		return context.WithTimeout(ctx, ms.Timeout)
	}
	return ctx, func() {}
}

func closeStmt(stmt driver.Stmt, logger *slog.Logger) {
	if err := stmt.Close(); err != nil {
		logger.Debug("close statement failed", "error", err)
	}
}

// runUpdate binds and executes one update on a prepared statement.
func runUpdate(ctx context.Context, conn *pool.PooledConn, stmt driver.Stmt, ms *statement.MappedStatement, param any, bound *statement.BoundSQL) (driver.Result, error) {
	b, err := bind(conn, stmt, ms, bound)
	if err != nil {
		return nil, err
	}
	res, err := execStmt(ctx, stmt, b.args)
	if err != nil {
		return nil, errors.Wrapf(err, "statement %s: exec", ms.ID)
	}
	if err := writeOutputs(param, b.outs); err != nil {
		return nil, errors.Wrapf(err, "statement %s: output parameters", ms.ID)
	}
	return res, nil
}

// runQuery binds and queries one prepared statement and maps its rows.
func runQuery(ctx context.Context, conn *pool.PooledConn, stmt driver.Stmt, ms *statement.MappedStatement, param any, bounds statement.RowBounds, handler statement.ResultHandler, bound *statement.BoundSQL) ([]any, error) {
	b, err := bind(conn, stmt, ms, bound)
	if err != nil {
		return nil, err
	}
	rows, err := queryStmt(ctx, stmt, b.args)
	if err != nil {
		return nil, errors.Wrapf(err, "statement %s: query", ms.ID)
	}
	list, err := mapRows(ctx, ms, rows, bounds, handler)
	cerr := rows.Close()
	if err != nil {
		return nil, err
	}
	if cerr != nil {
		return nil, errors.Wrapf(cerr, "statement %s: close rows", ms.ID)
	}
	if err := writeOutputs(param, b.outs); err != nil {
		return nil, errors.Wrapf(err, "statement %s: output parameters", ms.ID)
	}
	return list, nil
}

// openCursor binds and queries one prepared statement, leaving the rows open.
func openCursor(ctx context.Context, conn *pool.PooledConn, stmt driver.Stmt, ms *statement.MappedStatement, bounds statement.RowBounds, bound *statement.BoundSQL, release func() error) (*Cursor, error) {
	b, err := bind(conn, stmt, ms, bound)
	if err != nil {
		return nil, err
	}
	if len(b.outs) > 0 {
		return nil, errors.Newf("statement %s: cursors do not support output parameters", ms.ID)
	}
	rows, err := queryStmt(ctx, stmt, b.args)
	if err != nil {
		return nil, errors.Wrapf(err, "statement %s: query", ms.ID)
	}
	return newCursor(ctx, ms, rows, bounds, release), nil
}
