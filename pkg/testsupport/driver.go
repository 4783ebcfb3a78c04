package testsupport

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"io"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// QueryFunc answers a query with column names and rows.
type QueryFunc func(query string, args []driver.NamedValue) (cols []string, rows [][]driver.Value, err error)

// ExecFunc answers an exec.
type ExecFunc func(query string, args []driver.NamedValue) (driver.Result, error)

// Call records one statement execution seen by the driver.
type Call struct {
	Kind string // "exec", "query" or "batch"
	SQL  string
	Args [][]driver.NamedValue
}

// Counters is a snapshot of driver activity.
type Counters struct {
	Opens      int64
	Closes     int64
	Prepares   int64
	StmtCloses int64
	Execs      int64
	Queries    int64
	BatchCalls int64
	Begins     int64
	Commits    int64
	Rollbacks  int64
	Pings      int64
}

// Result is a fixed driver.Result.
type Result struct {
	InsertID int64
	Affected int64
}

func (r Result) LastInsertId() (int64, error) { return r.InsertID, nil }
func (r Result) RowsAffected() (int64, error) { return r.Affected, nil }

// Driver is an in-memory database/sql driver and connector that records
// every call it receives. It is safe for concurrent use.
type Driver struct {
	// OnQuery answers queries; nil returns no rows.
	OnQuery QueryFunc
	// OnExec answers execs; nil reports one affected row.
	OnExec ExecFunc
	// Batch makes prepared statements accept a whole batch in one call.
	Batch bool

	opens, closes, prepares, stmtCloses   atomic.Int64
	execs, queries, batchCalls            atomic.Int64
	begins, commits, rollbacks, pingCalls atomic.Int64

	broken atomic.Bool

	mu       sync.Mutex
	calls    []Call
	conns    []*Conn
	openErr  error
	execErrs map[string]error
}

var (
	_ driver.Driver    = (*Driver)(nil)
	_ driver.Connector = (*Driver)(nil)
)

// NewDriver returns a driver with no scripted behaviour.
func NewDriver() *Driver { return &Driver{} }

// Register installs d under name for sql.Open.
func (d *Driver) Register(name string) { sql.Register(name, d) }

// DB returns a *sql.DB backed by d.
func (d *Driver) DB() *sql.DB { return sql.OpenDB(d) }

func (d *Driver) Open(string) (driver.Conn, error) { return d.Connect(context.Background()) }

func (d *Driver) Connect(ctx context.Context) (driver.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return nil, d.openErr
	}
	d.opens.Add(1)
	c := &Conn{d: d}
	c.valid.Store(!d.broken.Load())
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *Driver) Driver() driver.Driver { return d }

// FailOpen makes every later Connect fail with err; nil restores it.
func (d *Driver) FailOpen(err error) {
	d.mu.Lock()
	d.openErr = err
	d.mu.Unlock()
}

// FailExec makes execs of query fail with err; nil restores it.
func (d *Driver) FailExec(query string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.execErrs == nil {
		d.execErrs = make(map[string]error)
	}
	if err == nil {
		delete(d.execErrs, query)
		return
	}
	d.execErrs[query] = err
}

// SetBroken makes connections opened from now on unusable until it is reset.
func (d *Driver) SetBroken(broken bool) { d.broken.Store(broken) }

// BreakAll marks every open connection as no longer usable.
func (d *Driver) BreakAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.conns {
		c.valid.Store(false)
	}
}

// Counters returns a snapshot of the activity counters.
func (d *Driver) Counters() Counters {
	return Counters{
		Opens:      d.opens.Load(),
		Closes:     d.closes.Load(),
		Prepares:   d.prepares.Load(),
		StmtCloses: d.stmtCloses.Load(),
		Execs:      d.execs.Load(),
		Queries:    d.queries.Load(),
		BatchCalls: d.batchCalls.Load(),
		Begins:     d.begins.Load(),
		Commits:    d.commits.Load(),
		Rollbacks:  d.rollbacks.Load(),
		Pings:      d.pingCalls.Load(),
	}
}

// Calls returns the recorded executions in order.
func (d *Driver) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Call(nil), d.calls...)
}

func (d *Driver) record(c Call) {
	d.mu.Lock()
	d.calls = append(d.calls, c)
	d.mu.Unlock()
}

func (d *Driver) exec(query string, args []driver.NamedValue) (driver.Result, error) {
	d.mu.Lock()
	err := d.execErrs[query]
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if d.OnExec != nil {
		return d.OnExec(query, args)
	}
	return Result{Affected: 1}, nil
}

func (d *Driver) query(query string, args []driver.NamedValue) (driver.Rows, error) {
	if d.OnQuery == nil {
		return &Rows{}, nil
	}
	cols, data, err := d.OnQuery(query, args)
	if err != nil {
		return nil, err
	}
	return &Rows{cols: cols, data: data}, nil
}

// Conn is a fake connection.
type Conn struct {
	d      *Driver
	valid  atomic.Bool
	closed atomic.Bool
}

var (
	_ driver.ConnPrepareContext = (*Conn)(nil)
	_ driver.ConnBeginTx        = (*Conn)(nil)
	_ driver.Pinger             = (*Conn)(nil)
	_ driver.Validator          = (*Conn)(nil)
	_ driver.NamedValueChecker  = (*Conn)(nil)
	_ driver.ExecerContext      = (*Conn)(nil)
	_ driver.QueryerContext     = (*Conn)(nil)
)

func (c *Conn) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

func (c *Conn) PrepareContext(_ context.Context, query string) (driver.Stmt, error) {
	if c.closed.Load() {
		return nil, driver.ErrBadConn
	}
	c.d.prepares.Add(1)
	s := &Stmt{c: c, query: query}
	if c.d.Batch {
		return &BatchStmt{Stmt: s}, nil
	}
	return s, nil
}

func (c *Conn) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		c.d.closes.Add(1)
	}
	return nil
}

// IsClosed reports whether Close was called.
func (c *Conn) IsClosed() bool { return c.closed.Load() }

func (c *Conn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *Conn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	c.d.begins.Add(1)
	return &Tx{d: c.d}, nil
}

func (c *Conn) Ping(context.Context) error {
	c.d.pingCalls.Add(1)
	if !c.valid.Load() {
		return driver.ErrBadConn
	}
	return nil
}

func (c *Conn) IsValid() bool { return c.valid.Load() && !c.closed.Load() }

// CheckNamedValue accepts every value, including sql.Out destinations.
func (c *Conn) CheckNamedValue(nv *driver.NamedValue) error {
	if _, ok := nv.Value.(sql.Out); ok {
		return nil
	}
	v, err := driver.DefaultParameterConverter.ConvertValue(nv.Value)
	if err != nil {
		return err
	}
	nv.Value = v
	return nil
}

func (c *Conn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.d.execs.Add(1)
	c.d.record(Call{Kind: "exec", SQL: query, Args: [][]driver.NamedValue{args}})
	return c.d.exec(query, args)
}

func (c *Conn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	c.d.queries.Add(1)
	c.d.record(Call{Kind: "query", SQL: query, Args: [][]driver.NamedValue{args}})
	return c.d.query(query, args)
}

// Stmt is a fake prepared statement.
type Stmt struct {
	c     *Conn
	query string
}

var (
	_ driver.StmtExecContext  = (*Stmt)(nil)
	_ driver.StmtQueryContext = (*Stmt)(nil)
)

func (s *Stmt) Close() error {
	s.c.d.stmtCloses.Add(1)
	return nil
}

func (s *Stmt) NumInput() int { return -1 }

func (s *Stmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.ExecContext(context.Background(), named(args))
}

func (s *Stmt) Query(args []driver.Value) (driver.Rows, error) {
	return s.QueryContext(context.Background(), named(args))
}

func (s *Stmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	return s.c.ExecContext(ctx, s.query, args)
}

func (s *Stmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	return s.c.QueryContext(ctx, s.query, args)
}

// BatchStmt is a prepared statement that runs a whole batch in one call.
type BatchStmt struct {
	*Stmt
}

// ExecBatch executes every argument set in one round trip.
func (s *BatchStmt) ExecBatch(_ context.Context, batch [][]driver.NamedValue) ([]driver.Result, error) {
	d := s.c.d
	d.batchCalls.Add(1)
	d.record(Call{Kind: "batch", SQL: s.query, Args: batch})
	out := make([]driver.Result, 0, len(batch))
	for _, args := range batch {
		res, err := d.exec(s.query, args)
		if err != nil {
			return out, errors.Wrapf(err, "batch entry %d", len(out))
		}
		out = append(out, res)
	}
	return out, nil
}

// Tx is a fake transaction.
type Tx struct {
	d *Driver
}

func (t *Tx) Commit() error {
	t.d.commits.Add(1)
	return nil
}

func (t *Tx) Rollback() error {
	t.d.rollbacks.Add(1)
	return nil
}

// Rows is a fixed row set.
type Rows struct {
	cols []string
	data [][]driver.Value
	i    int
}

func (r *Rows) Columns() []string { return append([]string(nil), r.cols...) }
func (r *Rows) Close() error      { return nil }

func (r *Rows) Next(dest []driver.Value) error {
	if r.i >= len(r.data) {
		return io.EOF
	}
	row := r.data[r.i]
	for i := range dest {
		if i < len(row) {
			dest[i] = row[i]
		} else {
			dest[i] = nil
		}
	}
	r.i++
	return nil
}

func named(args []driver.Value) []driver.NamedValue {
	out := make([]driver.NamedValue, len(args))
	for i, v := range args {
		out[i] = driver.NamedValue{Ordinal: i + 1, Value: v}
	}
	return out
}
