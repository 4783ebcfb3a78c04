package executor

import (
	"context"
	"database/sql/driver"
	"testing"

	"github.com/goliatone/go-sqlsession/cache"
	"github.com/goliatone/go-sqlsession/statement"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNamespaceCache(t *testing.T) cache.Cache {
	t.Helper()
	c, err := cache.Build(cache.DefaultConfig("users"))
	require.NoError(t, err)
	return c
}

func TestCachingExecutor_CommitPublishesResults(t *testing.T) {
	env := newTestEnv(t)
	users := newNamespaceCache(t)
	ms := selectUser(statement.WithCache(users))
	ctx := context.Background()

	a := env.session(t, TypeSimple, true)
	_, err := a.Query(ctx, ms, int64(1), all(), nil)
	require.NoError(t, err)
	assert.Zero(t, users.Size(), "results stay staged until commit")
	require.NoError(t, a.Commit(ctx, true))
	assert.Equal(t, 1, users.Size())

	b := env.session(t, TypeSimple, true)
	list, err := b.Query(ctx, ms, int64(1), all(), nil)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "ana", list[0].(map[string]any)["name"])
	assert.Equal(t, int64(1), env.queries(), "the second session is served by the namespace cache")
}

func TestCachingExecutor_UncommittedResultsAreInvisible(t *testing.T) {
	env := newTestEnv(t)
	ms := selectUser(statement.WithCache(newNamespaceCache(t)))
	ctx := context.Background()

	a := env.session(t, TypeSimple, true)
	_, err := a.Query(ctx, ms, int64(1), all(), nil)
	require.NoError(t, err)

	b := env.session(t, TypeSimple, true)
	_, err = b.Query(ctx, ms, int64(1), all(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), env.queries())
}

func TestCachingExecutor_RollbackDiscardsStagedResults(t *testing.T) {
	env := newTestEnv(t)
	users := newNamespaceCache(t)
	ms := selectUser(statement.WithCache(users))
	ctx := context.Background()

	a := env.session(t, TypeSimple, true)
	_, err := a.Query(ctx, ms, int64(1), all(), nil)
	require.NoError(t, err)
	require.NoError(t, a.Rollback(ctx, true))
	require.NoError(t, a.Commit(ctx, false))
	assert.Zero(t, users.Size())

	b := env.session(t, TypeSimple, true)
	_, err = b.Query(ctx, ms, int64(1), all(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), env.queries())
}

func TestCachingExecutor_CloseCommitsUnlessForced(t *testing.T) {
	env := newTestEnv(t)
	users := newNamespaceCache(t)
	ms := selectUser(statement.WithCache(users))
	ctx := context.Background()

	forced := env.session(t, TypeSimple, true)
	_, err := forced.Query(ctx, ms, int64(1), all(), nil)
	require.NoError(t, err)
	require.NoError(t, forced.Close(ctx, true))
	assert.Zero(t, users.Size())

	normal := env.session(t, TypeSimple, true)
	_, err = normal.Query(ctx, ms, int64(1), all(), nil)
	require.NoError(t, err)
	require.NoError(t, normal.Close(ctx, false))
	assert.Equal(t, 1, users.Size())
}

func TestCachingExecutor_FlushingUpdateClearsOnCommit(t *testing.T) {
	env := newTestEnv(t)
	users := newNamespaceCache(t)
	sel := selectUser(statement.WithCache(users))
	rename := renameUser(statement.WithCache(users))
	ctx := context.Background()

	a := env.session(t, TypeSimple, true)
	_, err := a.Query(ctx, sel, int64(1), all(), nil)
	require.NoError(t, err)
	require.NoError(t, a.Commit(ctx, true))

	b := env.session(t, TypeSimple, true)
	_, err = b.Update(ctx, rename, map[string]any{"id": int64(1), "name": "bo"})
	require.NoError(t, err)

	c := env.session(t, TypeSimple, true)
	_, err = c.Query(ctx, sel, int64(1), all(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), env.queries(), "the clear is staged until b commits")

	require.NoError(t, b.Commit(ctx, true))
	assert.Zero(t, users.Size())

	d := env.session(t, TypeSimple, true)
	_, err = d.Query(ctx, sel, int64(1), all(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), env.queries())
}

func TestCachingExecutor_ReadYourWrites(t *testing.T) {
	env := newTestEnv(t)
	users := newNamespaceCache(t)
	sel := selectUser(statement.WithCache(users))
	ctx := context.Background()

	ex := env.session(t, TypeSimple, true)
	_, err := ex.Query(ctx, sel, int64(1), all(), nil)
	require.NoError(t, err)
	_, err = ex.Update(ctx, renameUser(statement.WithCache(users)), map[string]any{"id": int64(1), "name": "bo"})
	require.NoError(t, err)
	_, err = ex.Query(ctx, sel, int64(1), all(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), env.queries())
}

func TestCachingExecutor_UseCacheDisabled(t *testing.T) {
	env := newTestEnv(t)
	users := newNamespaceCache(t)
	ms := selectUser(statement.WithCache(users), statement.WithUseCache(false))
	ctx := context.Background()

	a := env.session(t, TypeSimple, true)
	_, err := a.Query(ctx, ms, int64(1), all(), nil)
	require.NoError(t, err)
	require.NoError(t, a.Commit(ctx, true))
	assert.Zero(t, users.Size())
}

func TestCachingExecutor_OutputParametersAreNotCacheable(t *testing.T) {
	env := newTestEnv(t)
	ms := statement.New("orders.total", statement.KindSelect,
		statement.StaticSQL{SQL: "CALL order_total(?, ?)", Mappings: []statement.ParameterMapping{statement.In("id"), statement.Out("total")}},
		statement.WithCallable(), statement.WithCache(newNamespaceCache(t)))

	ex := env.session(t, TypeSimple, true)
	_, err := ex.Query(context.Background(), ms, map[string]any{"id": int64(1)}, all(), nil)
	assert.ErrorIs(t, err, ErrOutParamsNotCacheable)
	assert.Zero(t, env.queries())
}

func TestCachingExecutor_NestedQueriesGoThroughWrapper(t *testing.T) {
	env := newTestEnv(t)
	ex := env.session(t, TypeSimple, true)

	var nested Executor
	ms := selectUser(statement.WithMapper(statement.ResultMapperFunc(func(ctx context.Context, _ []string, values []driver.Value) (any, error) {
		nested, _ = FromContext(ctx)
		return values[0], nil
	})))

	_, err := ex.Query(context.Background(), ms, int64(1), all(), nil)
	require.NoError(t, err)
	assert.Same(t, ex, nested)
}
