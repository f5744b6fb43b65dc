// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package queue

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/olegiv/kurashi-go/internal/detect"
	"github.com/olegiv/kurashi-go/internal/i18n"
	"github.com/olegiv/kurashi-go/internal/model"
	"github.com/olegiv/kurashi-go/internal/service"
	"github.com/olegiv/kurashi-go/internal/store"
	"github.com/olegiv/kurashi-go/internal/translate"
	"github.com/olegiv/kurashi-go/internal/webhook"
)

type providerCall struct {
	Target string
}

// stubProvider translates by echoing the target locale; specific targets
// can be made to fail, and calls are recorded.
type stubProvider struct {
	mu          sync.Mutex
	calls       []providerCall
	failTargets map[string]bool
	delay       time.Duration
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Translate(ctx context.Context, text, _, target string) (string, error) {
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(s.delay):
		}
	}
	s.mu.Lock()
	s.calls = append(s.calls, providerCall{Target: target})
	s.mu.Unlock()
	if s.failTargets[target] {
		return "", &translate.ProviderError{Provider: "stub", Message: "forced failure", Retryable: true}
	}
	return "[" + target + "] " + text, nil
}

func (s *stubProvider) DetectLanguage(_ context.Context, _ string) (string, error) {
	return "", errors.New("not implemented")
}

func (s *stubProvider) callsFor(target string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Target == target {
			n++
		}
	}
	return n
}

type fixture struct {
	db       *sql.DB
	queries  *store.Queries
	provider *stubProvider
	enqueuer *Enqueuer
	proc     *Processor
}

func newFixture(t *testing.T) *fixture {
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

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	locales, err := i18n.New(i18n.DefaultLocaleCodes, "en")
	if err != nil {
		t.Fatalf("i18n.New() error = %v", err)
	}

	queries := store.New(db)
	provider := &stubProvider{}
	translator := translate.NewTranslator(queries, provider, nil, 5*time.Second, log)
	detector := detect.New(locales, nil, log)
	events := service.NewEventService(db)
	hooks := webhook.NewDispatcher(webhook.Config{}, log)

	return &fixture{
		db:       db,
		queries:  queries,
		provider: provider,
		enqueuer: NewEnqueuer(queries, detector, locales, translator, events, hooks, log),
		proc:     NewProcessor(queries, translator, events, hooks, DefaultBatchSize, DefaultBudget, log),
	}
}

func (f *fixture) createListing(t *testing.T, id, title, body string) {
	t.Helper()
	now := time.Now().UTC()
	_, err := f.queries.CreateListing(context.Background(), store.CreateListingParams{
		ID: id, Title: title, Body: body, Category: model.CategoryHousing,
		Slug: id, CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateListing() error = %v", err)
	}
}

func TestAddToQueueUnknownListing(t *testing.T) {
	f := newFixture(t)
	_, err := f.enqueuer.AddToQueue(context.Background(), "nope", "ja")
	if !errors.Is(err, ErrListingNotFound) {
		t.Errorf("AddToQueue() error = %v, want ErrListingNotFound", err)
	}
}

func TestAddToQueueExplicitSource(t *testing.T) {
	f := newFixture(t)
	f.createListing(t, "lst-1", "部屋", "駅近")

	res, err := f.enqueuer.AddToQueue(context.Background(), "lst-1", "ja")
	if err != nil {
		t.Fatalf("AddToQueue() error = %v", err)
	}
	if res.SourceLocale != "ja" {
		t.Errorf("SourceLocale = %q, want ja", res.SourceLocale)
	}
	want := []string{"en", "zh-CN", "zh-TW", "ko"}
	if len(res.TargetLocales) != len(want) {
		t.Fatalf("TargetLocales = %v, want %v", res.TargetLocales, want)
	}
	for i := range want {
		if res.TargetLocales[i] != want[i] {
			t.Errorf("TargetLocales[%d] = %q, want %q", i, res.TargetLocales[i], want[i])
		}
	}
	if res.AlreadyQueued {
		t.Error("AlreadyQueued = true on first enqueue")
	}

	item, err := f.queries.GetQueueItem(context.Background(), res.QueueItemID)
	if err != nil {
		t.Fatalf("GetQueueItem() error = %v", err)
	}
	if item.Status != model.QueueStatusPending {
		t.Errorf("Status = %q, want pending", item.Status)
	}
}

func TestAddToQueueRejectsUnknownSource(t *testing.T) {
	f := newFixture(t)
	f.createListing(t, "lst-1", "Room", "Near station")

	if _, err := f.enqueuer.AddToQueue(context.Background(), "lst-1", "xx"); !errors.Is(err, ErrUnsupportedLocale) {
		t.Errorf("AddToQueue() error = %v, want ErrUnsupportedLocale", err)
	}
}

func TestAddToQueueUsesStoredLanguage(t *testing.T) {
	f := newFixture(t)
	f.createListing(t, "lst-1", "some text", "more text")
	_, err := f.queries.SetListingLanguageIfNull(context.Background(), store.SetListingLanguageIfNullParams{
		Language: "ko", UpdatedAt: time.Now().UTC(), ID: "lst-1",
	})
	if err != nil {
		t.Fatalf("SetListingLanguageIfNull() error = %v", err)
	}

	res, err := f.enqueuer.AddToQueue(context.Background(), "lst-1", "")
	if err != nil {
		t.Fatalf("AddToQueue() error = %v", err)
	}
	if res.SourceLocale != "ko" {
		t.Errorf("SourceLocale = %q, want stored ko", res.SourceLocale)
	}
	for _, target := range res.TargetLocales {
		if target == "ko" {
			t.Error("target locales include the source locale")
		}
	}
}

func TestAddToQueueDetectsAndPersistsLanguage(t *testing.T) {
	f := newFixture(t)
	f.createListing(t, "lst-1", "東京駅の近くのアパートです", "ペット可、家具付きです。駅から徒歩五分。")

	res, err := f.enqueuer.AddToQueue(context.Background(), "lst-1", "")
	if err != nil {
		t.Fatalf("AddToQueue() error = %v", err)
	}
	if res.SourceLocale != "ja" {
		t.Errorf("SourceLocale = %q, want detected ja", res.SourceLocale)
	}

	listing, err := f.queries.GetListing(context.Background(), "lst-1")
	if err != nil {
		t.Fatalf("GetListing() error = %v", err)
	}
	if listing.OriginalLanguage != "ja" {
		t.Errorf("OriginalLanguage = %q, want detection persisted", listing.OriginalLanguage)
	}
}

func TestAddToQueueIdempotent(t *testing.T) {
	f := newFixture(t)
	f.createListing(t, "lst-1", "Room", "Near station")

	first, err := f.enqueuer.AddToQueue(context.Background(), "lst-1", "en")
	if err != nil {
		t.Fatalf("first AddToQueue() error = %v", err)
	}
	second, err := f.enqueuer.AddToQueue(context.Background(), "lst-1", "en")
	if err != nil {
		t.Fatalf("second AddToQueue() error = %v", err)
	}
	if !second.AlreadyQueued {
		t.Error("AlreadyQueued = false on duplicate enqueue, want true")
	}
	if first.QueueItemID == "" {
		t.Error("first enqueue returned no item ID")
	}

	count, err := f.queries.CountPendingQueueItems(context.Background())
	if err != nil {
		t.Fatalf("CountPendingQueueItems() error = %v", err)
	}
	if count != 1 {
		t.Errorf("pending count = %d, want 1 after duplicate enqueue", count)
	}
}

func TestTranslateNow(t *testing.T) {
	f := newFixture(t)
	f.createListing(t, "lst-1", "Sofa", "Good condition")

	count, err := f.enqueuer.TranslateNow(context.Background(), "lst-1", "en")
	if err != nil {
		t.Fatalf("TranslateNow() error = %v", err)
	}
	if count != 4 {
		t.Errorf("translated count = %d, want 4", count)
	}

	translations, err := f.queries.ListTranslations(context.Background(), "lst-1")
	if err != nil {
		t.Fatalf("ListTranslations() error = %v", err)
	}
	if len(translations) != 4 {
		t.Errorf("len(translations) = %d, want 4", len(translations))
	}
}

func TestProcessQueueHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createListing(t, "lst-1", "Room", "Near station")
	f.createListing(t, "lst-2", "Sofa", "Good condition")

	res1, err := f.enqueuer.AddToQueue(ctx, "lst-1", "en")
	if err != nil {
		t.Fatalf("AddToQueue() error = %v", err)
	}
	if _, err := f.enqueuer.AddToQueue(ctx, "lst-2", "en"); err != nil {
		t.Fatalf("AddToQueue() error = %v", err)
	}

	result, err := f.proc.ProcessQueue(ctx)
	if err != nil {
		t.Fatalf("ProcessQueue() error = %v", err)
	}
	if result.Processed != 2 {
		t.Errorf("Processed = %d, want 2", result.Processed)
	}
	if result.Remaining != 0 {
		t.Errorf("Remaining = %d, want 0", result.Remaining)
	}
	if len(result.Errors) != 0 {
		t.Errorf("Errors = %v, want none", result.Errors)
	}

	item, err := f.queries.GetQueueItem(ctx, res1.QueueItemID)
	if err != nil {
		t.Fatalf("GetQueueItem() error = %v", err)
	}
	if item.Status != model.QueueStatusCompleted {
		t.Errorf("Status = %q, want completed", item.Status)
	}
	if got := item.Completed(); len(got) != 4 {
		t.Errorf("Completed() = %v, want all 4 targets", got)
	}
}

func TestProcessQueueFailureIsolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createListing(t, "lst-1", "Room", "Near station")
	f.createListing(t, "lst-2", "Sofa", "Good condition")

	res1, err := f.enqueuer.AddToQueue(ctx, "lst-1", "ja")
	if err != nil {
		t.Fatalf("AddToQueue() error = %v", err)
	}
	if _, err := f.enqueuer.AddToQueue(ctx, "lst-2", "en"); err != nil {
		t.Fatalf("AddToQueue() error = %v", err)
	}

	// lst-1 targets en first and dies there; lst-2 (source en) never
	// touches the en target and must still complete.
	f.provider.failTargets = map[string]bool{"en": true}

	result, err := f.proc.ProcessQueue(ctx)
	if err != nil {
		t.Fatalf("ProcessQueue() error = %v", err)
	}
	// Both items were attempted; the failure shows up only in Errors.
	if result.Processed != 2 {
		t.Errorf("Processed = %d, want both attempts counted", result.Processed)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("Errors = %v, want exactly one", result.Errors)
	}
	if !strings.HasPrefix(result.Errors[0], res1.QueueItemID+": ") {
		t.Errorf("error = %q, want prefixed with the failing item ID", result.Errors[0])
	}

	item, err := f.queries.GetQueueItem(ctx, res1.QueueItemID)
	if err != nil {
		t.Fatalf("GetQueueItem() error = %v", err)
	}
	if item.Status != model.QueueStatusFailed || item.RetryCount != 1 {
		t.Errorf("failed item: status=%q retries=%d, want failed/1", item.Status, item.RetryCount)
	}
	if item.ErrorMessage == "" {
		t.Error("ErrorMessage empty, want provider failure recorded")
	}
}

func TestProcessQueueRetrySkipsCompletedLocales(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createListing(t, "lst-1", "部屋", "駅近")

	res, err := f.enqueuer.AddToQueue(ctx, "lst-1", "ja")
	if err != nil {
		t.Fatalf("AddToQueue() error = %v", err)
	}

	// First run: en and zh-CN succeed, zh-TW fails.
	f.provider.failTargets = map[string]bool{"zh-TW": true}
	if _, err := f.proc.ProcessQueue(ctx); err != nil {
		t.Fatalf("ProcessQueue() error = %v", err)
	}

	item, err := f.queries.GetQueueItem(ctx, res.QueueItemID)
	if err != nil {
		t.Fatalf("GetQueueItem() error = %v", err)
	}
	if got := item.Completed(); len(got) != 2 {
		t.Fatalf("Completed() after failure = %v, want [en zh-CN]", got)
	}

	// Second run with the provider healthy: only zh-TW and ko are retried.
	f.provider.failTargets = nil
	enBefore := f.provider.callsFor("en")
	result, err := f.proc.ProcessQueue(ctx)
	if err != nil {
		t.Fatalf("ProcessQueue() error = %v", err)
	}
	if result.Processed != 1 {
		t.Errorf("Processed = %d, want 1 on retry", result.Processed)
	}
	if f.provider.callsFor("en") != enBefore {
		t.Error("en re-translated on retry, want completed locales skipped")
	}

	item, err = f.queries.GetQueueItem(ctx, res.QueueItemID)
	if err != nil {
		t.Fatalf("GetQueueItem() error = %v", err)
	}
	if item.Status != model.QueueStatusCompleted {
		t.Errorf("Status = %q, want completed after retry", item.Status)
	}
	if got := item.Completed(); len(got) != 4 {
		t.Errorf("Completed() = %v, want all 4 targets", got)
	}
}

func TestProcessQueueRetryCeiling(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createListing(t, "lst-1", "Room", "Near station")

	res, err := f.enqueuer.AddToQueue(ctx, "lst-1", "en")
	if err != nil {
		t.Fatalf("AddToQueue() error = %v", err)
	}
	f.provider.failTargets = map[string]bool{"ja": true}

	for i := 0; i < model.MaxQueueRetries; i++ {
		result, err := f.proc.ProcessQueue(ctx)
		if err != nil {
			t.Fatalf("ProcessQueue() run %d error = %v", i+1, err)
		}
		if len(result.Errors) != 1 {
			t.Fatalf("run %d: Errors = %v, want one failure", i+1, result.Errors)
		}
	}

	// At the ceiling the item is invisible to further runs.
	result, err := f.proc.ProcessQueue(ctx)
	if err != nil {
		t.Fatalf("ProcessQueue() error = %v", err)
	}
	if result.Processed != 0 || len(result.Errors) != 0 {
		t.Errorf("result after ceiling = %+v, want empty run", result)
	}

	item, err := f.queries.GetQueueItem(ctx, res.QueueItemID)
	if err != nil {
		t.Fatalf("GetQueueItem() error = %v", err)
	}
	if !item.IsTerminal() {
		t.Errorf("item not terminal at retry ceiling: status=%q retries=%d", item.Status, item.RetryCount)
	}
}

func TestProcessQueueMaxItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, id := range []string{"lst-1", "lst-2", "lst-3"} {
		f.createListing(t, id, "Room", "Near station")
		if _, err := f.enqueuer.AddToQueue(ctx, id, "en"); err != nil {
			t.Fatalf("AddToQueue(%s) error = %v", id, err)
		}
	}

	result, err := f.proc.ProcessQueueN(ctx, 2, DefaultBudget)
	if err != nil {
		t.Fatalf("ProcessQueueN() error = %v", err)
	}
	if result.Processed != 2 {
		t.Errorf("Processed = %d, want batch capped at 2", result.Processed)
	}
	if result.Remaining != 1 {
		t.Errorf("Remaining = %d, want 1", result.Remaining)
	}
}

func TestProcessQueueTimeBudget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, id := range []string{"lst-1", "lst-2", "lst-3"} {
		f.createListing(t, id, "Room", "Near station")
		if _, err := f.enqueuer.AddToQueue(ctx, id, "en"); err != nil {
			t.Fatalf("AddToQueue(%s) error = %v", id, err)
		}
	}

	// Each item takes 8 provider calls x 30ms; a 100ms budget fits the
	// first item but not all three.
	f.provider.delay = 30 * time.Millisecond
	result, err := f.proc.ProcessQueueN(ctx, 10, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("ProcessQueueN() error = %v", err)
	}
	if result.Processed == 0 {
		t.Error("Processed = 0, want at least the in-flight item finished")
	}
	if result.Processed == 3 {
		t.Error("Processed = 3, want the budget to stop the run early")
	}
	if result.Remaining == 0 {
		t.Error("Remaining = 0, want leftover items reported")
	}
}
