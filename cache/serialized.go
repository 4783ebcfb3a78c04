package cache

import (
	"reflect"

	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// SerializedCache stores msgpack snapshots of values and decodes a fresh copy on every Get,
// so callers never alias mutable state held by the cache.
//
// Only exported fields survive the round trip. Elements of a []any are encoded one by one
// to keep their concrete types.
type SerializedCache struct {
	delegate Cache
}

type snapshot struct {
	typ   reflect.Type
	data  []byte
	elems []snapshot
	list  bool
}

// NewSerializedCache wraps delegate with copy-on-read semantics.
func NewSerializedCache(delegate Cache) *SerializedCache {
	return &SerializedCache{delegate: delegate}
}

func (c *SerializedCache) ID() string { return c.delegate.ID() }

func (c *SerializedCache) Get(key *CacheKey) (any, bool, error) {
	v, ok, err := c.delegate.Get(key)
	if err != nil || !ok {
		return nil, false, err
	}
	snap, isSnap := v.(snapshot)
	if !isSnap {
		return nil, false, errors.Newf("cache %s: stored value of type %T was not serialized", c.ID(), v)
	}
	out, err := snap.decode()
	if err != nil {
		return nil, false, errors.Wrapf(err, "cache %s: deserialize", c.ID())
	}
	return out, true, nil
}

func (c *SerializedCache) Put(key *CacheKey, value any) error {
	if value == nil {
		return c.delegate.Put(key, nil)
	}
	snap, err := encodeSnapshot(value)
	if err != nil {
		return errors.Wrapf(err, "cache %s: serialize %T", c.ID(), value)
	}
	return c.delegate.Put(key, snap)
}

func (c *SerializedCache) Remove(key *CacheKey) { c.delegate.Remove(key) }

func (c *SerializedCache) Clear() { c.delegate.Clear() }

func (c *SerializedCache) Size() int { return c.delegate.Size() }

func encodeSnapshot(value any) (snapshot, error) {
	if list, ok := value.([]any); ok {
		s := snapshot{list: true, elems: make([]snapshot, len(list))}
		for i, el := range list {
			if el == nil {
				continue
			}
			es, err := encodeSnapshot(el)
			if err != nil {
				return snapshot{}, err
			}
			s.elems[i] = es
		}
		return s, nil
	}
	data, err := msgpack.Marshal(value)
	if err != nil {
		return snapshot{}, err
	}
	return snapshot{typ: reflect.TypeOf(value), data: data}, nil
}

func (s snapshot) decode() (any, error) {
	if s.list {
		out := make([]any, len(s.elems))
		for i, el := range s.elems {
			if el.typ == nil && !el.list {
				continue
			}
			v, err := el.decode()
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
	ptr := reflect.New(s.typ)
	if err := msgpack.Unmarshal(s.data, ptr.Interface()); err != nil {
		return nil, err
	}
	return ptr.Elem().Interface(), nil
}
