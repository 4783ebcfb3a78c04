package bunhook

import (
	"context"
	"log/slog"
	"strings"

	"github.com/goliatone/go-sqlsession/cache"
	"github.com/uptrace/bun"
)

// FlushHook clears namespace caches after writes executed through a bun.DB,
// so code paths that bypass sessions do not leave stale second level entries.
//
// Writes issued through bun are not part of a session transaction, so the
// shared caches are cleared directly once the statement succeeds.
type FlushHook struct {
	registry *cache.Registry
	tables   map[string][]string
	logger   *slog.Logger
}

var _ bun.QueryHook = (*FlushHook)(nil)

// Option configures a FlushHook.
type Option func(*FlushHook)

// WithTable maps table to the namespaces whose caches hold its rows. Tables
// without a mapping flush the namespace named like the table, if registered.
func WithTable(table string, namespaces ...string) Option {
	return func(h *FlushHook) {
		t := normalizeTable(table)
		h.tables[t] = append(h.tables[t], namespaces...)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(h *FlushHook) { h.logger = l } }

// New creates a hook flushing caches held by registry.
func New(registry *cache.Registry, opts ...Option) *FlushHook {
	h := &FlushHook{registry: registry, tables: make(map[string][]string)}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	h.logger = h.logger.With("component", "bunhook")
	return h
}

func (h *FlushHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *FlushHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	if event.Err != nil || !isWrite(event.Operation()) {
		return
	}
	table := tableName(event)
	if table == "" {
		return
	}
	for _, ns := range h.namespaces(table) {
		if c, ok := h.registry.Get(ns); ok {
			c.Clear()
			h.logger.Debug("flushed cache after write", "namespace", ns, "table", table)
		}
	}
}

func (h *FlushHook) namespaces(table string) []string {
	if ns, ok := h.tables[table]; ok {
		return ns
	}
	return []string{table}
}

func isWrite(op string) bool {
	switch strings.ToUpper(op) {
	case "INSERT", "UPDATE", "DELETE", "MERGE", "TRUNCATE":
		return true
	default:
		return false
	}
}

func tableName(event *bun.QueryEvent) string {
	if event.IQuery != nil {
		if t := event.IQuery.GetTableName(); t != "" {
			return normalizeTable(t)
		}
	}
	return normalizeTable(parseTable(event.Query))
}

// parseTable returns the target table of a write statement.
func parseTable(query string) string {
	fields := strings.Fields(query)
	skip := map[string]bool{"INTO": true, "FROM": true, "TABLE": true, "ONLY": true, "IGNORE": true}
	for i := 1; i < len(fields); i++ {
		word := strings.ToUpper(fields[i])
		if skip[word] {
			continue
		}
		return fields[i]
	}
	return ""
}

func normalizeTable(t string) string {
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = t[:i]
	}
	t = strings.NewReplacer(`"`, "", "`", "", "[", "", "]", "").Replace(t)
	if i := strings.LastIndexByte(t, '.'); i >= 0 {
		t = t[i+1:]
	}
	return strings.ToLower(t)
}
