// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package logging

import (
	"database/sql"
	"io"
	"log/slog"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/olegiv/kurashi-go/internal/model"
	"github.com/olegiv/kurashi-go/internal/store"
)

func newTestLogger(t *testing.T) (*slog.Logger, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	if err := store.Migrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	inner := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(NewEventLogHandler(inner, db)), db
}

func countEvents(t *testing.T, db *sql.DB) int {
	t.Helper()
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&count); err != nil {
		t.Fatalf("count events: %v", err)
	}
	return count
}

func TestHandlerMirrorsWarnAndAbove(t *testing.T) {
	log, db := newTestLogger(t)

	log.Debug("noise")
	log.Info("routine progress")
	if got := countEvents(t, db); got != 0 {
		t.Fatalf("event count after info = %d, want 0", got)
	}

	log.Warn("queue item stuck")
	log.Error("provider call failed")
	if got := countEvents(t, db); got != 2 {
		t.Fatalf("event count = %d, want warn and error mirrored", got)
	}

	var level string
	err := db.QueryRow(`SELECT level FROM events WHERE message = ?`, "provider call failed").Scan(&level)
	if err != nil {
		t.Fatalf("read event: %v", err)
	}
	if level != model.EventLevelError {
		t.Errorf("level = %q, want %q", level, model.EventLevelError)
	}
}

func TestHandlerCategory(t *testing.T) {
	log, db := newTestLogger(t)

	log.Warn("something odd", "category", model.EventCategoryWebhook)
	log.Warn("translation run died")
	log.Warn("queue backlog growing")
	log.Warn("disk nearly full")

	tests := []struct {
		message string
		want    string
	}{
		{"something odd", model.EventCategoryWebhook},
		{"translation run died", model.EventCategoryTranslate},
		{"queue backlog growing", model.EventCategoryQueue},
		{"disk nearly full", model.EventCategorySystem},
	}
	for _, tt := range tests {
		var got string
		err := db.QueryRow(`SELECT category FROM events WHERE message = ?`, tt.message).Scan(&got)
		if err != nil {
			t.Fatalf("read event %q: %v", tt.message, err)
		}
		if got != tt.want {
			t.Errorf("category for %q = %q, want %q", tt.message, got, tt.want)
		}
	}
}

func TestHandlerMetadata(t *testing.T) {
	log, db := newTestLogger(t)

	log.Warn("translation failed", "listing_id", "lst-1", "locale", "ko")

	var metadata string
	err := db.QueryRow(`SELECT metadata FROM events WHERE message = ?`, "translation failed").Scan(&metadata)
	if err != nil {
		t.Fatalf("read event: %v", err)
	}
	if metadata != `{"listing_id":"lst-1","locale":"ko"}` {
		t.Errorf("metadata = %q, want attributes captured", metadata)
	}
}
