// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process Cache. It is the default backend and the fallback
// when Redis is configured but unreachable at startup.
type Memory struct {
	mu         sync.RWMutex
	entries    map[string]memoryEntry
	defaultTTL time.Duration
	maxItems   int
	stopCh     chan struct{}
	closed     atomic.Bool

	hits   atomic.Int64
	misses atomic.Int64
	sets   atomic.Int64
}

// MemoryOptions configures a Memory cache.
type MemoryOptions struct {
	DefaultTTL      time.Duration
	MaxItems        int           // 0 = unlimited
	CleanupInterval time.Duration // 0 = no background cleanup
}

// NewMemory creates an in-memory cache.
func NewMemory(opts MemoryOptions) *Memory {
	m := &Memory{
		entries:    make(map[string]memoryEntry),
		defaultTTL: opts.DefaultTTL,
		maxItems:   opts.MaxItems,
		stopCh:     make(chan struct{}),
	}
	if opts.CleanupInterval > 0 {
		go m.cleanupLoop(opts.CleanupInterval)
	}
	return m
}

// Get implements Cache.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	if m.closed.Load() {
		return nil, ErrCacheClosed
	}
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		m.misses.Add(1)
		return nil, ErrCacheMiss
	}
	m.hits.Add(1)
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, nil
}

// Set implements Cache.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if m.closed.Load() {
		return ErrCacheClosed
	}
	if ttl == 0 {
		ttl = m.defaultTTL
	}
	stored := make([]byte, len(value))
	copy(stored, value)

	m.mu.Lock()
	if m.maxItems > 0 && len(m.entries) >= m.maxItems {
		m.pruneLocked(time.Now())
		if len(m.entries) >= m.maxItems {
			// Still full of live entries: drop the write rather than grow
			// without bound. The caller reads through on the next miss.
			m.mu.Unlock()
			return nil
		}
	}
	m.entries[key] = memoryEntry{value: stored, expiresAt: time.Now().Add(ttl)}
	m.mu.Unlock()

	m.sets.Add(1)
	return nil
}

// Delete implements Cache.
func (m *Memory) Delete(_ context.Context, key string) error {
	if m.closed.Load() {
		return ErrCacheClosed
	}
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// Clear implements Cache.
func (m *Memory) Clear(_ context.Context) error {
	if m.closed.Load() {
		return ErrCacheClosed
	}
	m.mu.Lock()
	m.entries = make(map[string]memoryEntry)
	m.mu.Unlock()
	return nil
}

// Close implements Cache.
func (m *Memory) Close() error {
	if m.closed.CompareAndSwap(false, true) {
		close(m.stopCh)
	}
	return nil
}

// Stats implements StatsProvider.
func (m *Memory) Stats() Stats {
	hits, misses := m.hits.Load(), m.misses.Load()
	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total) * 100
	}
	m.mu.RLock()
	items := len(m.entries)
	m.mu.RUnlock()
	return Stats{Hits: hits, Misses: misses, Sets: m.sets.Load(), Items: items, HitRate: rate}
}

func (m *Memory) pruneLocked(now time.Time) {
	for key, entry := range m.entries {
		if now.After(entry.expiresAt) {
			delete(m.entries, key)
		}
	}
}

func (m *Memory) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.mu.Lock()
			m.pruneLocked(time.Now())
			m.mu.Unlock()
		case <-m.stopCh:
			return
		}
	}
}

var (
	_ Cache         = (*Memory)(nil)
	_ StatsProvider = (*Memory)(nil)
)
