package pool

import (
	"context"
	"database/sql/driver"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// PooledConn is a checked out handle on one real connection. A handle is
// superseded when it is released or reclaimed; every later use fails with
// ErrConnectionInvalid.
type PooledConn struct {
	id       string
	pool     *Pool
	raw      driver.Conn
	typeCode uint64
	valid    atomic.Bool

	createdAt time.Time

	mu         sync.Mutex
	lastUsedAt time.Time
	checkoutAt time.Time
	tx         *pooledTx
}

func newPooledConn(p *Pool, raw driver.Conn, now time.Time) *PooledConn {
	c := &PooledConn{
		id:         uuid.NewString(),
		pool:       p,
		raw:        raw,
		createdAt:  now,
		lastUsedAt: now,
	}
	c.valid.Store(true)
	return c
}

// rewrap hands the real connection to a fresh handle, keeping its timestamps.
func (c *PooledConn) rewrap() *PooledConn {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := &PooledConn{
		id:         uuid.NewString(),
		pool:       c.pool,
		raw:        c.raw,
		typeCode:   c.typeCode,
		createdAt:  c.createdAt,
		lastUsedAt: c.lastUsedAt,
	}
	n.valid.Store(true)
	return n
}

// ID identifies the handle.
func (c *PooledConn) ID() string { return c.id }

// IsValid reports whether the handle may still be used.
func (c *PooledConn) IsValid() bool {
	if !c.valid.Load() || c.raw == nil {
		return false
	}
	if v, ok := c.raw.(driver.Validator); ok {
		return v.IsValid()
	}
	return true
}

func (c *PooledConn) invalidate() { c.valid.Store(false) }

// Raw returns the underlying driver connection.
func (c *PooledConn) Raw() (driver.Conn, error) {
	if !c.valid.Load() {
		return nil, errors.Wrapf(ErrConnectionInvalid, "connection %s", c.id)
	}
	c.touch()
	return c.raw, nil
}

// PrepareContext prepares a statement on the real connection.
func (c *PooledConn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	raw, err := c.Raw()
	if err != nil {
		return nil, err
	}
	if pc, ok := raw.(driver.ConnPrepareContext); ok {
		return pc.PrepareContext(ctx, query)
	}
	return raw.Prepare(query)
}

// BeginTx starts a transaction that the pool rolls back if the handle is
// released or reclaimed while it is still open.
func (c *PooledConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	raw, err := c.Raw()
	if err != nil {
		return nil, err
	}
	var tx driver.Tx
	if bt, ok := raw.(driver.ConnBeginTx); ok {
		tx, err = bt.BeginTx(ctx, opts)
	} else {
		tx, err = raw.Begin()
	}
	if err != nil {
		return nil, err
	}
	ptx := &pooledTx{Tx: tx, conn: c}
	c.mu.Lock()
	c.tx = ptx
	c.mu.Unlock()
	return ptx, nil
}

// Close returns the handle to its pool.
func (c *PooledConn) Close() error {
	return c.pool.Release(c)
}

// CreatedAt is when the real connection was opened.
func (c *PooledConn) CreatedAt() time.Time { return c.createdAt }

// LastUsedAt is when the real connection was last handed to a caller.
func (c *PooledConn) LastUsedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUsedAt
}

// CheckoutAt is when the handle was checked out.
func (c *PooledConn) CheckoutAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.checkoutAt
}

func (c *PooledConn) touch() {
	c.mu.Lock()
	c.lastUsedAt = c.pool.clock.Now()
	c.mu.Unlock()
}

func (c *PooledConn) checkout(now time.Time, typeCode uint64) {
	c.mu.Lock()
	c.checkoutAt = now
	c.lastUsedAt = now
	c.typeCode = typeCode
	c.mu.Unlock()
}

// rollbackOpenTx rolls back a transaction left open on the handle.
func (c *PooledConn) rollbackOpenTx() error {
	c.mu.Lock()
	tx := c.tx
	c.tx = nil
	c.mu.Unlock()
	if tx == nil {
		return nil
	}
	return tx.Tx.Rollback()
}

func (c *PooledConn) clearTx(tx *pooledTx) {
	c.mu.Lock()
	if c.tx == tx {
		c.tx = nil
	}
	c.mu.Unlock()
}

type pooledTx struct {
	driver.Tx
	conn *PooledConn
}

func (t *pooledTx) Commit() error {
	defer t.conn.clearTx(t)
	if !t.conn.valid.Load() {
		return errors.Wrapf(ErrConnectionInvalid, "commit on connection %s", t.conn.id)
	}
	return t.Tx.Commit()
}

func (t *pooledTx) Rollback() error {
	defer t.conn.clearTx(t)
	if !t.conn.valid.Load() {
		return errors.Wrapf(ErrConnectionInvalid, "rollback on connection %s", t.conn.id)
	}
	return t.Tx.Rollback()
}
