// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/olegiv/kurashi-go/internal/model"
)

func newTestTranslations(t *testing.T) *Translations {
	t.Helper()
	m := NewMemory(MemoryOptions{DefaultTTL: time.Minute})
	t.Cleanup(func() { _ = m.Close() })
	return NewTranslations(m, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestTranslationsRoundTrip(t *testing.T) {
	tc := newTestTranslations(t)
	ctx := context.Background()

	if _, ok := tc.Get(ctx, "lst-1"); ok {
		t.Error("Get() ok = true on cold cache, want miss")
	}

	want := []model.Translation{
		{ListingID: "lst-1", Locale: "en", Title: "Room", Body: "Near station", IsAutoTranslated: true},
		{ListingID: "lst-1", Locale: "ko", Title: "방", Body: "역 근처", IsAutoTranslated: true},
	}
	tc.Set(ctx, "lst-1", want)

	got, ok := tc.Get(ctx, "lst-1")
	if !ok {
		t.Fatal("Get() ok = false after Set, want hit")
	}
	if len(got) != 2 || got[0].Locale != "en" || got[1].Locale != "ko" {
		t.Errorf("Get() = %+v, want the cached pair", got)
	}
}

func TestTranslationsInvalidate(t *testing.T) {
	tc := newTestTranslations(t)
	ctx := context.Background()

	tc.Set(ctx, "lst-1", []model.Translation{{ListingID: "lst-1", Locale: "en"}})
	tc.Invalidate(ctx, "lst-1")

	if _, ok := tc.Get(ctx, "lst-1"); ok {
		t.Error("Get() ok = true after Invalidate, want miss")
	}
}

func TestTranslationsIsolatedByListing(t *testing.T) {
	tc := newTestTranslations(t)
	ctx := context.Background()

	tc.Set(ctx, "lst-1", []model.Translation{{ListingID: "lst-1", Locale: "en"}})
	tc.Set(ctx, "lst-2", []model.Translation{{ListingID: "lst-2", Locale: "ja"}})
	tc.Invalidate(ctx, "lst-1")

	if _, ok := tc.Get(ctx, "lst-2"); !ok {
		t.Error("Get(lst-2) ok = false, want unaffected by lst-1 invalidation")
	}
}
