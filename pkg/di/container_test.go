package di

import (
	"context"
	"database/sql/driver"
	"io"
	"log/slog"
	"testing"

	"github.com/goliatone/go-sqlsession/bunhook"
	"github.com/goliatone/go-sqlsession/config"
	"github.com/goliatone/go-sqlsession/executor"
	"github.com/goliatone/go-sqlsession/pkg/testsupport"
	"github.com/goliatone/go-sqlsession/pool"
	"github.com/goliatone/go-sqlsession/statement"
	"github.com/uptrace/bun"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() config.Config {
	return config.Config{
		Pool:     pool.DefaultConfig(),
		Executor: executor.DefaultConfig(),
		Caches: map[string]config.CacheConfig{
			"users":  {Size: 100},
			"audits": {Ref: "users"},
		},
	}
}

func init() {
	testsupport.NewDriver().Register("ditest")
}

func newFakeContainer(tb testing.TB, cfg config.Config) (*Container, *testsupport.Driver) {
	tb.Helper()
	d := testsupport.NewDriver()
	d.OnQuery = func(string, []driver.NamedValue) ([]string, [][]driver.Value, error) {
		return []string{"id", "name"}, [][]driver.Value{{int64(1), "ana"}}, nil
	}
	container, err := NewContainer(cfg,
		WithDataSource(pool.NewConnectorDataSource(d)),
		WithLogger(quietLogger()),
	)
	if err != nil {
		tb.Fatalf("NewContainer() failed: %v", err)
	}
	tb.Cleanup(func() { _ = container.Close() })
	return container, d
}

func TestNewContainer(t *testing.T) {
	container, _ := newFakeContainer(t, testConfig())

	if container.Pool() == nil {
		t.Fatal("Container should have a non-nil pool")
	}
	if container.Logger() == nil {
		t.Error("Container should have a non-nil logger")
	}

	namespaces := container.Registry().Namespaces()
	if len(namespaces) != 2 {
		t.Fatalf("Expected 2 registered namespaces, got %v", namespaces)
	}
	users, _ := container.Registry().Get("users")
	audits, _ := container.Registry().Get("audits")
	if users == nil || users != audits {
		t.Error("audits should share the users cache")
	}

	if got := container.Config().Pool.MaxActive; got != pool.DefaultConfig().MaxActive {
		t.Errorf("Expected max active %d, got %d", pool.DefaultConfig().MaxActive, got)
	}
}

func TestNewContainer_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"pool", func(c *config.Config) { c.Pool.TimeToWait = 0 }},
		{"executor", func(c *config.Config) { c.Executor.DefaultType = "parallel" }},
		{"cache", func(c *config.Config) { c.Caches["users"] = config.CacheConfig{Eviction: "random"} }},
		{"ref", func(c *config.Config) { c.Caches["audits"] = config.CacheConfig{Ref: "missing"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			_, err := NewContainer(cfg,
				WithDataSource(pool.NewConnectorDataSource(testsupport.NewDriver())),
				WithLogger(quietLogger()),
			)
			if err == nil {
				t.Fatal("Expected NewContainer() to fail")
			}
		})
	}
}

func TestNewContainer_UnknownDriver(t *testing.T) {
	cfg := testConfig()
	cfg.Pool.Driver = "no-such-driver"
	if _, err := NewContainer(cfg, WithLogger(quietLogger())); err == nil {
		t.Fatal("Expected an error for an unregistered driver")
	}
}

func TestNewContainerFromFile(t *testing.T) {
	body := "pool:\n  driver: ditest\n  max_active: 2\nexecutor:\n  default_type: reuse\ncaches:\n  users:\n    size: 10\n"
	path := testsupport.WriteFixture(t, "sqlsession.yaml", body)

	container, err := NewContainerFromFile(path, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("NewContainerFromFile() failed: %v", err)
	}
	defer container.Close()

	if got := container.Pool().Config().MaxActive; got != 2 {
		t.Errorf("Expected max active 2, got %d", got)
	}
	session, err := container.NewSession(false)
	if err != nil {
		t.Fatal(err)
	}
	defer session.Close(context.Background(), false)
	if _, ok := session.(*executor.CachingExecutor); !ok {
		t.Errorf("Expected a caching executor, got %T", session)
	}
}

func TestContainer_Statement(t *testing.T) {
	container, _ := newFakeContainer(t, testConfig())
	users, _ := container.Registry().Get("users")

	byID := container.Statement("users.byID", statement.KindSelect, statement.StaticSQL{SQL: "SELECT 1"})
	if byID.Cache != users {
		t.Error("users.byID should use the users namespace cache")
	}

	orphan := container.Statement("reports.daily", statement.KindSelect, statement.StaticSQL{SQL: "SELECT 1"})
	if orphan.Cache != nil {
		t.Error("statements of unregistered namespaces should not be cached")
	}

	moved := container.Statement("x.y", statement.KindSelect, statement.StaticSQL{SQL: "SELECT 1"}, statement.WithNamespace("audits"))
	if moved.Cache != users {
		t.Error("an explicit namespace should select its cache")
	}
}

func TestContainer_SessionsShareSecondLevelCache(t *testing.T) {
	container, d := newFakeContainer(t, testConfig())
	ctx := context.Background()
	byID := container.Statement("users.byID", statement.KindSelect, statement.StaticSQL{
		SQL:      "SELECT id, name FROM users WHERE id = ?",
		Mappings: []statement.ParameterMapping{statement.In("")},
	})

	for i := 0; i < 3; i++ {
		session, err := container.NewSession(false)
		if err != nil {
			t.Fatal(err)
		}
		list, err := session.Query(ctx, byID, int64(1), statement.DefaultRowBounds(), nil)
		if err != nil {
			t.Fatalf("Query() failed: %v", err)
		}
		if len(list) != 1 {
			t.Fatalf("Expected 1 row, got %d", len(list))
		}
		if err := session.Close(ctx, false); err != nil {
			t.Fatalf("Close() failed: %v", err)
		}
	}

	if got := d.Counters().Queries; got != 1 {
		t.Errorf("Expected 1 database query, got %d", got)
	}
	if got := container.Pool().Stats().Active; got != 0 {
		t.Errorf("Expected every connection released, %d still active", got)
	}
}

func TestContainer_NewExecutorTypes(t *testing.T) {
	cfg := testConfig()
	cfg.Executor.CacheEnabled = false
	container, _ := newFakeContainer(t, cfg)

	tests := []struct {
		typ   executor.Type
		check func(executor.Executor) bool
	}{
		{executor.TypeSimple, func(e executor.Executor) bool { _, ok := e.(*executor.SimpleExecutor); return ok }},
		{executor.TypeReuse, func(e executor.Executor) bool { _, ok := e.(*executor.ReuseExecutor); return ok }},
		{executor.TypeBatch, func(e executor.Executor) bool { _, ok := e.(*executor.BatchExecutor); return ok }},
	}
	for _, tt := range tests {
		session, err := container.NewExecutor(tt.typ, true)
		if err != nil {
			t.Fatalf("NewExecutor(%s) failed: %v", tt.typ, err)
		}
		if !tt.check(session) {
			t.Errorf("%s: got %T", tt.typ, session)
		}
		if !session.Transaction().AutoCommit() {
			t.Errorf("%s: expected an autocommit transaction", tt.typ)
		}
	}
}

func TestContainer_FlushHook(t *testing.T) {
	container, _ := newFakeContainer(t, testConfig())
	users, _ := container.Registry().Get("users")
	byID := container.Statement("users.byID", statement.KindSelect, statement.StaticSQL{SQL: "SELECT id, name FROM users"})

	ctx := context.Background()
	session, err := container.NewSession(false)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := session.Query(ctx, byID, nil, statement.DefaultRowBounds(), nil); err != nil {
		t.Fatal(err)
	}
	if err := session.Close(ctx, false); err != nil {
		t.Fatal(err)
	}
	if users.Size() != 1 {
		t.Fatalf("Expected the committed result in the users cache, size %d", users.Size())
	}

	hook := container.FlushHook(bunhook.WithTable("app_users", "users"))
	hook.AfterQuery(ctx, &bun.QueryEvent{Query: "DELETE FROM app_users WHERE id = 1"})
	if users.Size() != 0 {
		t.Errorf("Expected the users cache flushed, size %d", users.Size())
	}
}
