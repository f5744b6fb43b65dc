// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestMemory(t *testing.T) *Memory {
	t.Helper()
	m := NewMemory(MemoryOptions{DefaultTTL: time.Minute})
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestMemoryGetSet(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()

	if _, err := m.Get(ctx, "missing"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get(missing) error = %v, want ErrCacheMiss", err)
	}

	if err := m.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, err := m.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != "v" {
		t.Errorf("Get() = %q, want %q", got, "v")
	}

	// Mutating the returned slice must not touch the cached copy.
	got[0] = 'x'
	again, err := m.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(again) != "v" {
		t.Errorf("cached value mutated to %q, want %q", again, "v")
	}
}

func TestMemoryExpiry(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()

	if err := m.Set(ctx, "k", []byte("v"), 10*time.Millisecond); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if _, err := m.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get() after TTL error = %v, want ErrCacheMiss", err)
	}
}

func TestMemoryDeleteAndClear(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()

	_ = m.Set(ctx, "a", []byte("1"), 0)
	_ = m.Set(ctx, "b", []byte("2"), 0)

	if err := m.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := m.Get(ctx, "a"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get(deleted) error = %v, want ErrCacheMiss", err)
	}

	if err := m.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, err := m.Get(ctx, "b"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get() after Clear error = %v, want ErrCacheMiss", err)
	}
}

func TestMemoryClosed(t *testing.T) {
	m := NewMemory(MemoryOptions{DefaultTTL: time.Minute})
	if err := m.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	// Closing twice is fine.
	if err := m.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	ctx := context.Background()
	if _, err := m.Get(ctx, "k"); !errors.Is(err, ErrCacheClosed) {
		t.Errorf("Get() after Close error = %v, want ErrCacheClosed", err)
	}
	if err := m.Set(ctx, "k", nil, 0); !errors.Is(err, ErrCacheClosed) {
		t.Errorf("Set() after Close error = %v, want ErrCacheClosed", err)
	}
}

func TestMemoryMaxItems(t *testing.T) {
	m := NewMemory(MemoryOptions{DefaultTTL: time.Minute, MaxItems: 2})
	t.Cleanup(func() { _ = m.Close() })
	ctx := context.Background()

	_ = m.Set(ctx, "a", []byte("1"), 0)
	_ = m.Set(ctx, "b", []byte("2"), 0)
	_ = m.Set(ctx, "c", []byte("3"), 0)

	if got := m.Stats().Items; got > 2 {
		t.Errorf("Items = %d, want at most MaxItems", got)
	}
}

func TestMemoryStats(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()

	_ = m.Set(ctx, "k", []byte("v"), 0)
	_, _ = m.Get(ctx, "k")
	_, _ = m.Get(ctx, "missing")

	stats := m.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Sets != 1 {
		t.Errorf("Stats = %+v, want 1 hit, 1 miss, 1 set", stats)
	}
	if stats.HitRate != 50 {
		t.Errorf("HitRate = %v, want 50", stats.HitRate)
	}
}
