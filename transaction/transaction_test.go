package transaction

import (
	"context"
	"testing"

	"github.com/goliatone/go-sqlsession/pkg/testsupport"
	"github.com/goliatone/go-sqlsession/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPool(t *testing.T, mutate func(*pool.Config)) (*pool.Pool, *testsupport.Driver) {
	t.Helper()
	d := testsupport.NewDriver()
	cfg := pool.DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	p, err := pool.New(cfg, pool.NewConnectorDataSource(d))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p, d
}

func TestTransaction_LazyAcquireAndBegin(t *testing.T) {
	p, d := newPool(t, nil)
	tx := New(p)
	ctx := context.Background()

	assert.Zero(t, d.Counters().Opens, "nothing is acquired before first use")

	c1, err := tx.Conn(ctx)
	require.NoError(t, err)
	c2, err := tx.Conn(ctx)
	require.NoError(t, err)
	assert.Same(t, c1, c2)
	assert.Equal(t, int64(1), d.Counters().Begins)

	require.NoError(t, tx.Commit())
	assert.Equal(t, int64(1), d.Counters().Commits)
	require.NoError(t, tx.Commit(), "commit without an open transaction is a no-op")
	assert.Equal(t, int64(1), d.Counters().Commits)

	_, err = tx.Conn(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), d.Counters().Begins, "the next use begins a new transaction")

	require.NoError(t, tx.Rollback())
	assert.Equal(t, int64(1), d.Counters().Rollbacks)
}

func TestTransaction_AutoCommit(t *testing.T) {
	p, d := newPool(t, nil)
	tx := New(p, WithAutoCommit(true))

	_, err := tx.Conn(context.Background())
	require.NoError(t, err)
	assert.True(t, tx.AutoCommit())
	assert.Zero(t, d.Counters().Begins)
	require.NoError(t, tx.Commit())
	assert.Zero(t, d.Counters().Commits)
}

func TestTransaction_CloseReleasesConnection(t *testing.T) {
	p, d := newPool(t, nil)
	tx := New(p)

	_, err := tx.Conn(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Close())
	require.NoError(t, tx.Close())

	assert.Equal(t, int64(1), d.Counters().Rollbacks, "open transaction is rolled back")
	s := p.Stats()
	assert.Zero(t, s.Active)
	assert.Equal(t, 1, s.Idle)

	_, err = tx.Conn(context.Background())
	assert.ErrorIs(t, err, ErrTransactionClosed)
	assert.ErrorIs(t, tx.Commit(), ErrTransactionClosed)
	assert.ErrorIs(t, tx.Rollback(), ErrTransactionClosed)
}

func TestTransaction_ReclaimedConnectionFails(t *testing.T) {
	p, _ := newPool(t, func(c *pool.Config) {
		c.MaxActive = 1
		c.MaxCheckoutTime = 0
	})
	ctx := context.Background()

	first := New(p)
	_, err := first.Conn(ctx)
	require.NoError(t, err)

	second := New(p)
	_, err = second.Conn(ctx)
	require.NoError(t, err)

	_, err = first.Conn(ctx)
	assert.ErrorIs(t, err, pool.ErrConnectionInvalid)
	assert.NoError(t, first.Close())
	assert.NoError(t, second.Close())
}
