// Package transaction binds one session to one pooled connection.
package transaction

import (
	"context"
	"database/sql/driver"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/goliatone/go-sqlsession/pool"
)

// ErrTransactionClosed is returned by every operation after Close.
var ErrTransactionClosed = errors.New("transaction: closed")

// ConnectionSource hands out pooled connections.
type ConnectionSource interface {
	Acquire(ctx context.Context) (*pool.PooledConn, error)
}

// Option configures a Transaction.
type Option func(*Transaction)

// WithAutoCommit runs every statement in its own implicit transaction.
func WithAutoCommit(autoCommit bool) Option {
	return func(t *Transaction) { t.autoCommit = autoCommit }
}

// WithTxOptions sets the isolation level and read-only flag used for BEGIN.
func WithTxOptions(opts driver.TxOptions) Option {
	return func(t *Transaction) { t.txOpts = opts }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Transaction) { t.logger = l }
}

// Transaction acquires its connection on first use and, unless autocommit is
// set, begins a database transaction on first use after every commit or rollback.
// A Transaction belongs to one session and is not safe for concurrent use.
type Transaction struct {
	src        ConnectionSource
	txOpts     driver.TxOptions
	autoCommit bool
	logger     *slog.Logger

	conn   *pool.PooledConn
	tx     driver.Tx
	closed bool
}

// New creates a transaction drawing its connection from src.
func New(src ConnectionSource, opts ...Option) *Transaction {
	t := &Transaction{src: src}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	return t
}

// AutoCommit reports whether statements run outside an explicit transaction.
func (t *Transaction) AutoCommit() bool { return t.autoCommit }

// Conn returns the session connection, acquiring it and beginning a
// transaction as needed.
func (t *Transaction) Conn(ctx context.Context) (*pool.PooledConn, error) {
	if t.closed {
		return nil, ErrTransactionClosed
	}
	if t.conn == nil {
		conn, err := t.src.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		t.conn = conn
	} else if !t.conn.IsValid() {
		return nil, errors.Wrapf(pool.ErrConnectionInvalid, "transaction connection %s", t.conn.ID())
	}
	if !t.autoCommit && t.tx == nil {
		tx, err := t.conn.BeginTx(ctx, t.txOpts)
		if err != nil {
			return nil, errors.Wrap(err, "transaction: begin")
		}
		t.tx = tx
	}
	return t.conn, nil
}

// Commit commits the open database transaction, if any.
func (t *Transaction) Commit() error {
	if t.closed {
		return ErrTransactionClosed
	}
	if t.tx == nil {
		return nil
	}
	tx := t.tx
	t.tx = nil
	return errors.Wrap(tx.Commit(), "transaction: commit")
}

// Rollback rolls back the open database transaction, if any.
func (t *Transaction) Rollback() error {
	if t.closed {
		return ErrTransactionClosed
	}
	if t.tx == nil {
		return nil
	}
	tx := t.tx
	t.tx = nil
	return errors.Wrap(tx.Rollback(), "transaction: rollback")
}

// Close rolls back any open database transaction and returns the connection
// to its pool. Closing twice is a no-op.
func (t *Transaction) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	if t.conn == nil {
		return nil
	}
	if t.tx != nil {
		if err := t.tx.Rollback(); err != nil {
			t.logger.Debug("rollback on close failed", "connection_id", t.conn.ID(), "error", err)
		}
		t.tx = nil
	}
	conn := t.conn
	t.conn = nil
	return conn.Close()
}
