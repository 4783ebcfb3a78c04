package cache

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const (
	keyMultiplier  uint64 = 37
	keyInitialHash uint64 = 17
)

var keySerializer = NewDefaultKeySerializer()

// CacheKey is an order-sensitive composite key identifying one statement execution.
//
// Keys are built incrementally with Update. Two keys are equal when their ordered
// sequences of contributed values are equal; the running hash only short-circuits
// the comparison. A key must not be updated once it has been handed to a cache.
type CacheKey struct {
	hash     uint64
	checksum uint64
	count    int
	parts    []string
}

// NewCacheKey creates a key seeded with the given values, in order.
func NewCacheKey(values ...any) *CacheKey {
	k := &CacheKey{hash: keyInitialHash}
	k.UpdateAll(values...)
	return k
}

// NullCacheKey returns a key that no cache will store.
func NullCacheKey() *CacheKey {
	return &CacheKey{hash: keyInitialHash}
}

// Update appends one contributed value.
func (k *CacheKey) Update(value any) {
	part := keySerializer.SerializeValue(value)
	base := xxhash.Sum64String(part)

	k.count++
	k.checksum += base
	base *= uint64(k.count)
	k.hash = keyMultiplier*k.hash + base
	k.parts = append(k.parts, part)
}

// UpdateAll appends every value in order.
func (k *CacheKey) UpdateAll(values ...any) {
	for _, v := range values {
		k.Update(v)
	}
}

// HashCode returns the running hash of the contributed values.
func (k *CacheKey) HashCode() uint64 {
	return k.hash
}

// Count returns the number of contributed values.
func (k *CacheKey) Count() int {
	return k.count
}

// Cacheable reports whether the key carries enough values to identify an execution.
// Keys with fewer than two values are treated as null keys.
func (k *CacheKey) Cacheable() bool {
	return k != nil && k.count >= 2
}

// Equal compares the ordered contributed values of both keys.
func (k *CacheKey) Equal(other *CacheKey) bool {
	if k == other {
		return true
	}
	if k == nil || other == nil {
		return false
	}
	if k.hash != other.hash || k.checksum != other.checksum || k.count != other.count {
		return false
	}
	for i := range k.parts {
		if k.parts[i] != other.parts[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the key.
func (k *CacheKey) Clone() *CacheKey {
	c := *k
	c.parts = append([]string(nil), k.parts...)
	return &c
}

// String returns the canonical form of the key. Equal keys produce equal strings,
// which makes the result usable as a map key.
func (k *CacheKey) String() string {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(k.hash, 16))
	b.WriteByte(':')
	b.WriteString(strconv.FormatUint(k.checksum, 16))
	for _, part := range k.parts {
		b.WriteString(KeySeparator)
		b.WriteString(strconv.Itoa(len(part)))
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}
