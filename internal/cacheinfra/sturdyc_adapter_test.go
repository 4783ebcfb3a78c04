package cacheinfra

import (
	"fmt"
	"runtime"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Capacity != 10000 {
		t.Errorf("expected Capacity to be 10000, got %d", cfg.Capacity)
	}

	if cfg.NumShards != 64 {
		t.Errorf("expected NumShards to be 64, got %d", cfg.NumShards)
	}

	if cfg.TTL != time.Hour {
		t.Errorf("expected TTL to be 1h, got %v", cfg.TTL)
	}

	if cfg.EvictionPercentage != 10 {
		t.Errorf("expected EvictionPercentage to be 10, got %d", cfg.EvictionPercentage)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected default config to be valid, got %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		wantError string
	}{
		{
			name: "valid default config",
			cfg:  DefaultConfig(),
		},
		{
			name:      "invalid capacity - zero",
			cfg:       Config{Capacity: 0, NumShards: 4, TTL: time.Minute, EvictionPercentage: 10},
			wantError: "config error in field Capacity: must be greater than 0",
		},
		{
			name:      "invalid num shards - zero",
			cfg:       Config{Capacity: 100, NumShards: 0, TTL: time.Minute, EvictionPercentage: 10},
			wantError: "config error in field NumShards: must be greater than 0",
		},
		{
			name:      "invalid TTL - zero",
			cfg:       Config{Capacity: 100, NumShards: 4, TTL: 0, EvictionPercentage: 10},
			wantError: "config error in field TTL: must be greater than 0",
		},
		{
			name:      "capacity below shard count",
			cfg:       Config{Capacity: 8, NumShards: 16, TTL: time.Minute, EvictionPercentage: 10},
			wantError: "config error in field Capacity: must be at least NumShards",
		},
		{
			name:      "invalid eviction percentage",
			cfg:       Config{Capacity: 100, NumShards: 4, TTL: time.Minute, EvictionPercentage: 101},
			wantError: "config error in field EvictionPercentage: must be between 1 and 100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantError == "" {
				if err != nil {
					t.Errorf("expected no error but got: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error but got none")
			}
			if err.Error() != tt.wantError {
				t.Errorf("expected error message %q, got %q", tt.wantError, err.Error())
			}
		})
	}
}

func TestConfig_ToSturdycOptions(t *testing.T) {
	if n := len(DefaultConfig().ToSturdycOptions()); n != 1 {
		t.Errorf("expected only the no-continuous-evictions option, got %d", n)
	}
}

func TestNewSturdycStore_StartsNoGoroutines(t *testing.T) {
	before := runtime.NumGoroutine()

	stores := make([]*SturdycStore, 0, 20)
	for i := 0; i < 20; i++ {
		store, err := NewSturdycStore(DefaultConfig())
		if err != nil {
			t.Fatalf("NewSturdycStore: %v", err)
		}
		stores = append(stores, store)
	}

	if after := runtime.NumGoroutine(); after-before >= len(stores) {
		t.Errorf("expected no eviction goroutine per store, goroutines went from %d to %d", before, after)
	}
}

func TestConfig_Apply(t *testing.T) {
	cfg := DefaultConfig()

	props := map[string]string{
		"capacity":           "50",
		"numShards":          "2",
		"ttl":                "30s",
		"evictionPercentage": "20",
	}
	for k, v := range props {
		if err := cfg.Apply(k, v); err != nil {
			t.Fatalf("Apply(%s): %v", k, err)
		}
	}

	if cfg.Capacity != 50 || cfg.NumShards != 2 || cfg.TTL != 30*time.Second ||
		cfg.EvictionPercentage != 20 {
		t.Errorf("unexpected config after Apply: %+v", cfg)
	}

	if err := cfg.Apply("colour", "blue"); err == nil {
		t.Error("expected unsupported property to fail")
	}

	if err := cfg.Apply("evictionInterval", "5s"); err == nil {
		t.Error("expected evictionInterval to be unsupported")
	}

	if err := cfg.Apply("ttl", "soon"); err == nil {
		t.Error("expected malformed duration to fail")
	}
}

func TestConfigError_Error(t *testing.T) {
	err := &ConfigError{
		Field:   "TestField",
		Message: "test message",
	}

	expected := "config error in field TestField: test message"
	if err.Error() != expected {
		t.Errorf("expected error message %q, got %q", expected, err.Error())
	}
}

func TestNewSturdycStore_InvalidConfig(t *testing.T) {
	store, err := NewSturdycStore(Config{NumShards: 1, TTL: time.Minute, EvictionPercentage: 10})
	if err == nil {
		t.Fatal("expected error but got none")
	}
	if store != nil {
		t.Error("expected store to be nil when error occurs")
	}
}

func TestSturdycStore_Operations(t *testing.T) {
	store, err := NewSturdycStore(Config{
		Capacity:           100,
		NumShards:          2,
		TTL:                time.Minute,
		EvictionPercentage: 10,
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	if _, ok := store.Get("missing"); ok {
		t.Error("expected miss on empty store")
	}

	store.Set("a", "alpha")
	store.Set("b", []any{1, 2})

	if v, ok := store.Get("a"); !ok || v != "alpha" {
		t.Errorf("expected alpha, got %v (%v)", v, ok)
	}
	if store.Size() != 2 {
		t.Errorf("expected size 2, got %d", store.Size())
	}

	store.Delete("a")
	if _, ok := store.Get("a"); ok {
		t.Error("expected a to be deleted")
	}

	for i := 0; i < 10; i++ {
		store.Set(fmt.Sprintf("k%d", i), i)
	}
	store.Clear()
	if store.Size() != 0 {
		t.Errorf("expected empty store after Clear, got %d", store.Size())
	}
}
