package cache

import (
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/puzpuzpuz/xsync/v3"
)

// Registry maps namespaces to their second level cache.
// A namespace may own a cache or reference the cache of another namespace.
type Registry struct {
	caches *xsync.MapOf[string, Cache]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{caches: xsync.NewMapOf[string, Cache]()}
}

// Register builds the cache described by cfg for namespace.
func (r *Registry) Register(namespace string, cfg Config) (Cache, error) {
	if cfg.ID == "" {
		cfg.ID = namespace
	}
	c, err := Build(cfg)
	if err != nil {
		return nil, err
	}
	if err := r.Add(namespace, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Add registers an already built cache for namespace.
func (r *Registry) Add(namespace string, c Cache) error {
	if _, loaded := r.caches.LoadOrStore(namespace, c); loaded {
		return errors.Newf("cache: namespace %q already has a cache", namespace)
	}
	return nil
}

// Ref makes namespace share the cache registered for target.
func (r *Registry) Ref(namespace, target string) (Cache, error) {
	c, ok := r.caches.Load(target)
	if !ok {
		return nil, &ConfigError{Field: "Ref", Message: "no cache registered for namespace " + target}
	}
	if err := r.Add(namespace, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns the cache for namespace.
func (r *Registry) Get(namespace string) (Cache, bool) {
	return r.caches.Load(namespace)
}

// Namespaces lists every registered namespace in sorted order.
func (r *Registry) Namespaces() []string {
	var out []string
	r.caches.Range(func(ns string, _ Cache) bool {
		out = append(out, ns)
		return true
	})
	sort.Strings(out)
	return out
}

// ClearAll clears every distinct cache once.
func (r *Registry) ClearAll() {
	seen := make(map[Cache]struct{})
	r.caches.Range(func(_ string, c Cache) bool {
		if _, ok := seen[c]; !ok {
			seen[c] = struct{}{}
			c.Clear()
		}
		return true
	})
}
