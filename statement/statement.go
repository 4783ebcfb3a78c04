package statement

import (
	"context"
	"database/sql/driver"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/goliatone/go-sqlsession/cache"
)

// Kind is the SQL command kind of a statement.
type Kind int

const (
	KindUnknown Kind = iota
	KindSelect
	KindInsert
	KindUpdate
	KindDelete
)

func (k Kind) String() string {
	switch k {
	case KindSelect:
		return "SELECT"
	case KindInsert:
		return "INSERT"
	case KindUpdate:
		return "UPDATE"
	case KindDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// SQLSource produces the SQL text and parameter mappings for one call.
type SQLSource interface {
	BoundSQL(param any) (*BoundSQL, error)
}

// SQLSourceFunc adapts a function to SQLSource.
type SQLSourceFunc func(param any) (*BoundSQL, error)

func (f SQLSourceFunc) BoundSQL(param any) (*BoundSQL, error) { return f(param) }

// StaticSQL is a SQL source whose text does not depend on the parameter.
type StaticSQL struct {
	SQL      string
	Mappings []ParameterMapping
}

func (s StaticSQL) BoundSQL(param any) (*BoundSQL, error) {
	return NewBoundSQL(s.SQL, s.Mappings, param), nil
}

// QueryRunner lets key generators run other statements through the calling executor.
type QueryRunner interface {
	Query(ctx context.Context, ms *MappedStatement, param any) ([]any, error)
}

// KeyGenerator fills generated keys into the parameter object around an update.
type KeyGenerator interface {
	ProcessBefore(ctx context.Context, runner QueryRunner, ms *MappedStatement, param any) error
	ProcessAfter(ctx context.Context, runner QueryRunner, ms *MappedStatement, result driver.Result, param any) error
}

// MappedStatement describes one declared statement.
type MappedStatement struct {
	ID        string
	Namespace string
	Kind      Kind
	// Callable statements may carry OUT parameters written back onto the parameter object.
	Callable bool
	Source   SQLSource
	// Cache is the namespace (L2) cache; nil disables second level caching.
	Cache cache.Cache
	// UseCache allows results of this statement to be stored in Cache.
	UseCache bool
	// FlushCacheRequired clears the local cache and stages a clear of Cache before running.
	FlushCacheRequired bool
	Mapper             ResultMapper
	KeyGenerator       KeyGenerator
	Timeout            time.Duration
}

// Option configures a MappedStatement.
type Option func(*MappedStatement)

// New creates a statement with defaults for its kind: selects use the cache and
// leave it alone, every other kind flushes it.
func New(id string, kind Kind, source SQLSource, opts ...Option) *MappedStatement {
	ms := &MappedStatement{
		ID:                 id,
		Namespace:          namespaceOf(id),
		Kind:               kind,
		Source:             source,
		UseCache:           kind == KindSelect,
		FlushCacheRequired: kind != KindSelect,
		Mapper:             MapRowMapper{},
	}
	for _, opt := range opts {
		opt(ms)
	}
	return ms
}

// WithCache attaches the namespace cache.
func WithCache(c cache.Cache) Option { return func(ms *MappedStatement) { ms.Cache = c } }

// WithUseCache overrides cache eligibility.
func WithUseCache(use bool) Option { return func(ms *MappedStatement) { ms.UseCache = use } }

// WithFlushCache overrides the flush flag.
func WithFlushCache(flush bool) Option {
	return func(ms *MappedStatement) { ms.FlushCacheRequired = flush }
}

// WithMapper sets the row mapper.
func WithMapper(m ResultMapper) Option { return func(ms *MappedStatement) { ms.Mapper = m } }

// WithKeyGenerator sets the key generator.
func WithKeyGenerator(g KeyGenerator) Option {
	return func(ms *MappedStatement) { ms.KeyGenerator = g }
}

// WithCallable marks the statement as a stored procedure call.
func WithCallable() Option { return func(ms *MappedStatement) { ms.Callable = true } }

// WithTimeout bounds each execution of the statement.
func WithTimeout(d time.Duration) Option { return func(ms *MappedStatement) { ms.Timeout = d } }

// WithNamespace overrides the namespace derived from the id.
func WithNamespace(ns string) Option { return func(ms *MappedStatement) { ms.Namespace = ns } }

// BoundSQL resolves the SQL for param.
func (ms *MappedStatement) BoundSQL(param any) (*BoundSQL, error) {
	if ms.Source == nil {
		return nil, errors.Newf("statement %s: no SQL source", ms.ID)
	}
	b, err := ms.Source.BoundSQL(param)
	if err != nil {
		return nil, errors.Wrapf(err, "statement %s: build SQL", ms.ID)
	}
	return b, nil
}

func namespaceOf(id string) string {
	if i := strings.LastIndexByte(id, '.'); i > 0 {
		return id[:i]
	}
	return ""
}
