// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"log/slog"
	"time"
)

// Options selects and configures a cache backend.
type Options struct {
	RedisURL        string // empty = in-memory backend
	Prefix          string
	DefaultTTL      time.Duration
	MaxItems        int
	CleanupInterval time.Duration
}

// New creates a cache backend from options. When Redis is configured but
// unreachable the in-memory backend is used instead: a cold cache is an
// acceptable degradation, a refused startup is not.
func New(opts Options, log *slog.Logger) Cache {
	if opts.RedisURL != "" {
		r, err := NewRedis(RedisOptions{
			URL:        opts.RedisURL,
			Prefix:     opts.Prefix,
			DefaultTTL: opts.DefaultTTL,
		})
		if err == nil {
			log.Info("cache backend ready", "backend", "redis")
			return r
		}
		log.Warn("redis unavailable, falling back to memory cache", "error", err)
	}
	return NewMemory(MemoryOptions{
		DefaultTTL:      opts.DefaultTTL,
		MaxItems:        opts.MaxItems,
		CleanupInterval: opts.CleanupInterval,
	})
}
