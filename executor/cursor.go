package executor

import (
	"context"
	"database/sql/driver"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/goliatone/go-sqlsession/statement"
)

// Cursor iterates mapped rows lazily. It is closed automatically once the
// rows or the row bounds are exhausted, and when its executor closes.
//
//	cur, err := exec.QueryCursor(ctx, ms, param, statement.DefaultRowBounds())
//	if err != nil {
//		return err
//	}
//	defer cur.Close()
//	for cur.Next() {
//		row := cur.Value()
//	}
//	return cur.Err()
type Cursor struct {
	ctx     context.Context
	ms      *statement.MappedStatement
	mapper  statement.ResultMapper
	rows    driver.Rows
	release func() error
	bounds  statement.RowBounds

	cols     []string
	dest     []driver.Value
	skipped  bool
	index    int
	current  any
	err      error
	consumed bool
	closed   bool
}

func newCursor(ctx context.Context, ms *statement.MappedStatement, rows driver.Rows, bounds statement.RowBounds, release func() error) *Cursor {
	mapper := ms.Mapper
	if mapper == nil {
		mapper = statement.MapRowMapper{}
	}
	cols := rows.Columns()
	return &Cursor{
		ctx:     ctx,
		ms:      ms,
		mapper:  mapper,
		rows:    rows,
		release: release,
		bounds:  bounds,
		cols:    cols,
		dest:    make([]driver.Value, len(cols)),
		index:   -1,
	}
}

// Next advances to the next row inside the bounds.
func (c *Cursor) Next() bool {
	if c.closed || c.consumed {
		return false
	}
	if !c.skipped {
		c.skipped = true
		for i := 0; i < c.bounds.Offset; i++ {
			if !c.advance() {
				return false
			}
		}
	}
	if c.index+1 >= c.bounds.Limit {
		c.finish(nil)
		return false
	}
	if !c.advance() {
		return false
	}
	obj, err := c.mapper.MapRow(c.ctx, c.cols, c.dest)
	if err != nil {
		c.finish(errors.Wrapf(err, "statement %s: map row %d", c.ms.ID, c.index+1))
		return false
	}
	c.current = obj
	c.index++
	return true
}

func (c *Cursor) advance() bool {
	if err := c.rows.Next(c.dest); err != nil {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		c.finish(err)
		return false
	}
	return true
}

func (c *Cursor) finish(err error) {
	c.err = err
	c.consumed = true
	if cerr := c.Close(); cerr != nil && c.err == nil {
		c.err = cerr
	}
}

// Value returns the current mapped row.
func (c *Cursor) Value() any { return c.current }

// Index returns the zero-based index of the current row, or -1 before the first.
func (c *Cursor) Index() int { return c.index }

// Err returns the error that stopped iteration, if any.
func (c *Cursor) Err() error { return c.err }

// IsOpen reports whether the cursor still holds its rows.
func (c *Cursor) IsOpen() bool { return !c.closed }

// IsConsumed reports whether every row inside the bounds was read.
func (c *Cursor) IsConsumed() bool { return c.consumed }

// Close releases the rows and, for statements prepared only for this cursor,
// the statement. Closing twice is a no-op.
func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	err := c.rows.Close()
	if c.release != nil {
		err = errors.CombineErrors(err, c.release())
	}
	return err
}
