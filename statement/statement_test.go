package statement

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type user struct {
	ID        int64  `db:"id"`
	Name      string `db:"user_name"`
	CreatedAt time.Time
	secret    string
}

func TestNew_DefaultsByKind(t *testing.T) {
	sel := New("users.byID", KindSelect, StaticSQL{SQL: "SELECT 1"})
	assert.True(t, sel.UseCache)
	assert.False(t, sel.FlushCacheRequired)
	assert.Equal(t, "users", sel.Namespace)
	assert.IsType(t, MapRowMapper{}, sel.Mapper)

	upd := New("users.rename", KindUpdate, StaticSQL{SQL: "UPDATE users"})
	assert.False(t, upd.UseCache)
	assert.True(t, upd.FlushCacheRequired)

	custom := New("plain", KindSelect, nil, WithUseCache(false), WithFlushCache(true), WithNamespace("ns"), WithCallable())
	assert.False(t, custom.UseCache)
	assert.True(t, custom.FlushCacheRequired)
	assert.True(t, custom.Callable)
	assert.Equal(t, "ns", custom.Namespace)

	_, err := custom.BoundSQL(nil)
	assert.Error(t, err)
}

func TestBoundSQL_Args(t *testing.T) {
	mappings := []ParameterMapping{In("id"), Out("total"), In("user_name")}
	b := NewBoundSQL("CALL f(?, ?, ?)", mappings, &user{ID: 7, Name: "ana"})

	args, err := b.Args()
	require.NoError(t, err)
	require.Len(t, args, 2)
	assert.Equal(t, driver.NamedValue{Ordinal: 1, Value: int64(7)}, args[0])
	assert.Equal(t, driver.NamedValue{Ordinal: 3, Value: "ana"}, args[1])
	assert.True(t, b.HasOutParameters())
}

func TestBoundSQL_ValueResolution(t *testing.T) {
	simple := NewBoundSQL("SELECT ?", []ParameterMapping{In("anything")}, 42)
	v, err := simple.Value(In("anything"))
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	withMap := NewBoundSQL("SELECT ?", nil, map[string]any{"a": "x"})
	v, err = withMap.Value(In("a"))
	require.NoError(t, err)
	assert.Equal(t, "x", v)

	withMap.SetAdditionalParameter("a", "override")
	v, err = withMap.Value(In("a"))
	require.NoError(t, err)
	assert.Equal(t, "override", v)

	none := NewBoundSQL("SELECT ?", nil, nil)
	v, err = none.Value(In("a"))
	require.NoError(t, err)
	assert.Nil(t, v)

	missing := NewBoundSQL("SELECT ?", nil, user{})
	_, err = missing.Value(In("nope"))
	assert.Error(t, err)
}

func TestRowBounds(t *testing.T) {
	assert.True(t, DefaultRowBounds().IsDefault())
	assert.False(t, RowBounds{Offset: 1, Limit: NoRowLimit}.IsDefault())
}

func TestPropertyValue(t *testing.T) {
	u := &user{ID: 3, Name: "bo", secret: "s"}

	tests := []struct {
		name string
		prop string
		want any
	}{
		{name: "field name", prop: "ID", want: int64(3)},
		{name: "case insensitive", prop: "name", want: "bo"},
		{name: "db tag", prop: "user_name", want: "bo"},
		{name: "empty returns param", prop: "", want: u},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PropertyValue(u, tt.prop)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := PropertyValue(u, "secret")
	assert.Error(t, err, "unexported fields are not properties")

	_, err = PropertyValue([]int{1}, "x")
	assert.Error(t, err)

	var nilUser *user
	v, err := PropertyValue(nilUser, "id")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestSetPropertyValue(t *testing.T) {
	u := &user{}
	require.NoError(t, SetPropertyValue(u, "id", int64(9)))
	assert.Equal(t, int64(9), u.ID)

	require.NoError(t, SetPropertyValue(u, "id", int32(11)), "numeric values convert")
	assert.Equal(t, int64(11), u.ID)

	require.NoError(t, SetPropertyValue(u, "user_name", "cy"))
	assert.Equal(t, "cy", u.Name)

	require.NoError(t, SetPropertyValue(u, "name", nil))
	assert.Empty(t, u.Name)

	assert.Error(t, SetPropertyValue(u, "name", 5), "int does not become a string")
	assert.Error(t, SetPropertyValue(*u, "id", int64(1)), "struct values are not addressable")

	m := map[string]any{}
	require.NoError(t, SetPropertyValue(m, "id", 1))
	assert.Equal(t, 1, m["id"])
}

func TestIsSimpleValue(t *testing.T) {
	assert.True(t, IsSimpleValue(nil))
	assert.True(t, IsSimpleValue(1))
	assert.True(t, IsSimpleValue("a"))
	assert.True(t, IsSimpleValue([]byte("a")))
	assert.True(t, IsSimpleValue(time.Now()))
	assert.False(t, IsSimpleValue(user{}))
	assert.False(t, IsSimpleValue(map[string]any{}))
}

func TestMapRowMapper_CopiesBytes(t *testing.T) {
	buf := []byte("abc")
	row, err := MapRowMapper{}.MapRow(context.Background(), []string{"id", "raw"}, []driver.Value{int64(1), buf})
	require.NoError(t, err)
	buf[0] = 'z'

	m := row.(map[string]any)
	assert.Equal(t, int64(1), m["id"])
	assert.Equal(t, []byte("abc"), m["raw"])
}

func TestResultContext_Stop(t *testing.T) {
	var seen []any
	h := ResultHandlerFunc(func(rc *ResultContext) {
		seen = append(seen, rc.Object)
		if rc.Count == 2 {
			rc.Stop()
		}
	})
	rc := &ResultContext{}
	for _, v := range []any{"a", "b", "c"} {
		rc.Object = v
		rc.Count++
		h.HandleResult(rc)
		if rc.IsStopped() {
			break
		}
	}
	assert.Equal(t, []any{"a", "b"}, seen)
}

type fakeResult struct{ id int64 }

func (r fakeResult) LastInsertId() (int64, error) { return r.id, nil }
func (r fakeResult) RowsAffected() (int64, error) { return 1, nil }

type fakeRunner struct {
	rows []any
	ran  int
}

func (r *fakeRunner) Query(context.Context, *MappedStatement, any) ([]any, error) {
	r.ran++
	return r.rows, nil
}

func TestLastInsertIDGenerator(t *testing.T) {
	ms := New("users.insert", KindInsert, StaticSQL{SQL: "INSERT"})
	u := &user{}
	g := LastInsertIDGenerator{Property: "id"}

	require.NoError(t, g.ProcessBefore(context.Background(), nil, ms, u))
	require.NoError(t, g.ProcessAfter(context.Background(), nil, ms, fakeResult{id: 44}, u))
	assert.Equal(t, int64(44), u.ID)
}

func TestSelectKeyGenerator(t *testing.T) {
	keyStmt := New("users.nextID", KindSelect, StaticSQL{SQL: "SELECT nextval('users')"})
	ms := New("users.insert", KindInsert, StaticSQL{SQL: "INSERT"})
	ctx := context.Background()

	t.Run("before", func(t *testing.T) {
		runner := &fakeRunner{rows: []any{map[string]any{"nextval": int64(100)}}}
		g := SelectKeyGenerator{Statement: keyStmt, Property: "id", Before: true}
		u := &user{}

		require.NoError(t, g.ProcessBefore(ctx, runner, ms, u))
		require.NoError(t, g.ProcessAfter(ctx, runner, ms, nil, u))
		assert.Equal(t, int64(100), u.ID)
		assert.Equal(t, 1, runner.ran)
	})

	t.Run("after", func(t *testing.T) {
		runner := &fakeRunner{rows: []any{int64(5)}}
		g := SelectKeyGenerator{Statement: keyStmt, Property: "id"}
		u := &user{}

		require.NoError(t, g.ProcessBefore(ctx, runner, ms, u))
		assert.Zero(t, runner.ran)
		require.NoError(t, g.ProcessAfter(ctx, runner, ms, nil, u))
		assert.Equal(t, int64(5), u.ID)
	})

	t.Run("too many rows", func(t *testing.T) {
		runner := &fakeRunner{rows: []any{int64(1), int64(2)}}
		g := SelectKeyGenerator{Statement: keyStmt, Property: "id", Before: true}
		assert.Error(t, g.ProcessBefore(ctx, runner, ms, &user{}))
	})
}
