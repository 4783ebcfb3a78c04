package cache

import (
	"testing"
)

func TestCacheKey_EqualForSameOrderedValues(t *testing.T) {
	a := NewCacheKey("users.byID", 0, 100, "SELECT * FROM users WHERE id = ?", 42, "dev")
	b := NewCacheKey("users.byID", 0, 100, "SELECT * FROM users WHERE id = ?", 42, "dev")

	if !a.Equal(b) || !b.Equal(a) {
		t.Fatal("expected keys built from the same values to be equal")
	}
	if a.HashCode() != b.HashCode() {
		t.Errorf("expected equal hash codes, got %d and %d", a.HashCode(), b.HashCode())
	}
	if a.String() != b.String() {
		t.Errorf("expected equal canonical strings")
	}
}

func TestCacheKey_DifferentValuesOrOrder(t *testing.T) {
	base := NewCacheKey("s", 1, 2)

	tests := []struct {
		name  string
		other *CacheKey
	}{
		{name: "different value", other: NewCacheKey("s", 1, 3)},
		{name: "different order", other: NewCacheKey("s", 2, 1)},
		{name: "different type same text", other: NewCacheKey("s", "1", 2)},
		{name: "extra value", other: NewCacheKey("s", 1, 2, nil)},
		{name: "fewer values", other: NewCacheKey("s", 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if base.Equal(tt.other) {
				t.Errorf("expected %s to differ from %s", tt.other, base)
			}
			if base.String() == tt.other.String() {
				t.Errorf("expected canonical strings to differ")
			}
		})
	}
}

func TestCacheKey_SeparatorInValuesDoesNotCollide(t *testing.T) {
	a := NewCacheKey("a::b", "c")
	b := NewCacheKey("a", "b::c")
	if a.Equal(b) || a.String() == b.String() {
		t.Error("expected keys with shifted separators to differ")
	}
}

func TestCacheKey_Cacheable(t *testing.T) {
	if NullCacheKey().Cacheable() {
		t.Error("null key must not be cacheable")
	}
	if NewCacheKey("only").Cacheable() {
		t.Error("single value key must not be cacheable")
	}
	if !NewCacheKey("a", "b").Cacheable() {
		t.Error("two value key must be cacheable")
	}
	var nilKey *CacheKey
	if nilKey.Cacheable() {
		t.Error("nil key must not be cacheable")
	}
}

func TestCacheKey_IncrementalMatchesVariadic(t *testing.T) {
	k := NullCacheKey()
	k.Update("id")
	k.Update(10)
	k.UpdateAll("sql", []int{1, 2})

	if !k.Equal(NewCacheKey("id", 10, "sql", []int{1, 2})) {
		t.Error("expected incremental key to equal variadic key")
	}
	if k.Count() != 4 {
		t.Errorf("expected count 4, got %d", k.Count())
	}
}

func TestCacheKey_CloneIsIndependent(t *testing.T) {
	k := NewCacheKey("a", 1)
	c := k.Clone()
	c.Update(2)

	if k.Equal(c) {
		t.Error("expected clone updates not to affect original")
	}
	if k.Count() != 2 {
		t.Errorf("expected original count 2, got %d", k.Count())
	}
}
