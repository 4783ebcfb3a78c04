package statement

import (
	"context"
	"database/sql/driver"
)

// ResultMapper turns one driver row into a result object.
type ResultMapper interface {
	MapRow(ctx context.Context, columns []string, values []driver.Value) (any, error)
}

// ResultMapperFunc adapts a function to ResultMapper.
type ResultMapperFunc func(ctx context.Context, columns []string, values []driver.Value) (any, error)

func (f ResultMapperFunc) MapRow(ctx context.Context, columns []string, values []driver.Value) (any, error) {
	return f(ctx, columns, values)
}

// MapRowMapper maps every row to a map[string]any keyed by column name.
type MapRowMapper struct{}

func (MapRowMapper) MapRow(_ context.Context, columns []string, values []driver.Value) (any, error) {
	row := make(map[string]any, len(columns))
	for i, col := range columns {
		v := values[i]
		if b, ok := v.([]byte); ok {
			// drivers may reuse the buffer on the next row
			v = append([]byte(nil), b...)
		}
		row[col] = v
	}
	return row, nil
}

// ResultContext is handed to a ResultHandler for every mapped row.
type ResultContext struct {
	Object  any
	Count   int
	stopped bool
}

// Stop ends row processing after the current row.
func (c *ResultContext) Stop() { c.stopped = true }

// IsStopped reports whether Stop was called.
func (c *ResultContext) IsStopped() bool { return c.stopped }

// ResultHandler receives mapped rows instead of collecting them into a list.
type ResultHandler interface {
	HandleResult(rc *ResultContext)
}

// ResultHandlerFunc adapts a function to ResultHandler.
type ResultHandlerFunc func(rc *ResultContext)

func (f ResultHandlerFunc) HandleResult(rc *ResultContext) { f(rc) }
