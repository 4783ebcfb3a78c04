package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/goliatone/go-sqlsession/cache"
	"github.com/goliatone/go-sqlsession/executor"
	"github.com/goliatone/go-sqlsession/pkg/testsupport"
	"github.com/goliatone/go-sqlsession/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	return testsupport.WriteFixture(t, "sqlsession.yaml", body)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, pool.DefaultConfig(), cfg.Pool)
	assert.Equal(t, executor.DefaultConfig(), cfg.Executor)
	assert.Empty(t, cfg.Caches)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
pool:
  driver: sqlite
  url: file::memory:
  max_active: 4
  time_to_wait: 250ms
  ping_enabled: true
  ping_query: SELECT 1
executor:
  default_type: batch
  local_cache_scope: statement
caches:
  blog.posts:
    eviction: fifo
    size: 50
    flush_interval: 10m
    read_write: false
    properties:
      size: 40
  blog.comments:
    ref: blog.posts
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Pool.Driver)
	assert.Equal(t, 4, cfg.Pool.MaxActive)
	assert.Equal(t, 5, cfg.Pool.MaxIdle, "unset keys keep their defaults")
	assert.Equal(t, 250*time.Millisecond, cfg.Pool.TimeToWait)
	assert.True(t, cfg.Pool.PingEnabled)
	assert.Equal(t, executor.TypeBatch, cfg.Executor.DefaultType)
	assert.Equal(t, executor.ScopeStatement, cfg.Executor.LocalCacheScope)
	assert.True(t, cfg.Executor.CacheEnabled)

	require.Contains(t, cfg.Caches, "blog.posts")
	posts := cfg.Caches["blog.posts"].CacheConfig("blog.posts")
	assert.Equal(t, cache.EvictionFIFO, posts.Eviction)
	assert.Equal(t, 50, posts.Size)
	assert.Equal(t, 10*time.Minute, posts.FlushInterval)
	assert.False(t, posts.ReadWrite)
	assert.Equal(t, map[string]string{"size": "40"}, posts.Properties)
	assert.Equal(t, "blog.posts", cfg.Caches["blog.comments"].Ref)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("SQLSESSION_POOL_MAX_ACTIVE", "7")
	t.Setenv("SQLSESSION_EXECUTOR_DEFAULT_TYPE", "reuse")

	cfg, err := Load(writeConfig(t, "pool:\n  max_active: 3\n"))
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Pool.MaxActive)
	assert.Equal(t, executor.TypeReuse, cfg.Executor.DefaultType)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"pool bounds", "pool:\n  max_active: 0\n", "MaxActive"},
		{"executor type", "executor:\n  default_type: parallel\n", "DefaultType"},
		{"cache eviction", "caches:\n  users:\n    eviction: lfu\n", "Eviction"},
		{"sturdyc fifo", "caches:\n  users:\n    implementation: sturdyc\n    eviction: fifo\n", "least recently used"},
		{"unknown ref", "caches:\n  users:\n    ref: accounts\n", "undeclared"},
		{"chained ref", "caches:\n  a:\n    size: 1\n  b:\n    ref: a\n  c:\n    ref: b\n", "itself a ref"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err, "an explicit path must exist")
}

func TestRegisterCaches(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
caches:
  users:
    size: 10
  audit:
    ref: users
  orders:
    implementation: sturdyc
`))
	require.NoError(t, err)

	reg := cache.NewRegistry()
	require.NoError(t, cfg.RegisterCaches(reg, nil))
	assert.Equal(t, []string{"audit", "orders", "users"}, reg.Namespaces())

	users, ok := reg.Get("users")
	require.True(t, ok)
	audit, ok := reg.Get("audit")
	require.True(t, ok)
	assert.Same(t, users, audit)
}
