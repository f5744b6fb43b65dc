// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/olegiv/kurashi-go/internal/model"
)

const translationsKeyPrefix = "translations:"

// Translations caches the full translation set of a listing, keyed by
// listing ID. Translation reads dominate this service's traffic; writes go
// through Invalidate so readers never see stale rows past one round-trip.
type Translations struct {
	cache Cache
	ttl   time.Duration
	log   *slog.Logger
}

// NewTranslations wraps a cache backend with listing-translation semantics.
func NewTranslations(c Cache, ttl time.Duration, log *slog.Logger) *Translations {
	return &Translations{cache: c, ttl: ttl, log: log}
}

// Get returns the cached translations for a listing, or false on a miss.
func (t *Translations) Get(ctx context.Context, listingID string) ([]model.Translation, bool) {
	data, err := t.cache.Get(ctx, translationsKeyPrefix+listingID)
	if err != nil {
		return nil, false
	}
	var translations []model.Translation
	if err := json.Unmarshal(data, &translations); err != nil {
		// Corrupt entry: drop it and read through.
		_ = t.cache.Delete(ctx, translationsKeyPrefix+listingID)
		return nil, false
	}
	return translations, true
}

// Set caches the translations for a listing. Failures are logged, never
// surfaced: the database already has the data.
func (t *Translations) Set(ctx context.Context, listingID string, translations []model.Translation) {
	data, err := json.Marshal(translations)
	if err != nil {
		return
	}
	if err := t.cache.Set(ctx, translationsKeyPrefix+listingID, data, t.ttl); err != nil {
		t.log.Warn("translation cache write failed", "listing_id", listingID, "error", err)
	}
}

// Invalidate drops the cached translations for a listing after a write.
func (t *Translations) Invalidate(ctx context.Context, listingID string) {
	if err := t.cache.Delete(ctx, translationsKeyPrefix+listingID); err != nil {
		t.log.Warn("translation cache invalidation failed", "listing_id", listingID, "error", err)
	}
}
