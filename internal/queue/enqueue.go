// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package queue implements asynchronous listing translation: enqueueing
// work, processing it in budgeted batches, and the synchronous translate-now
// path that shares the same pipeline.
package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/olegiv/kurashi-go/internal/detect"
	"github.com/olegiv/kurashi-go/internal/i18n"
	"github.com/olegiv/kurashi-go/internal/model"
	"github.com/olegiv/kurashi-go/internal/service"
	"github.com/olegiv/kurashi-go/internal/store"
	"github.com/olegiv/kurashi-go/internal/translate"
	"github.com/olegiv/kurashi-go/internal/webhook"
)

// Errors returned by enqueue and translate-now.
var (
	ErrListingNotFound   = errors.New("listing not found")
	ErrUnsupportedLocale = errors.New("unsupported source locale")
	ErrNoTargets         = errors.New("no target locales for listing")
)

// syncConcurrency bounds the locale fan-out on the synchronous path.
const syncConcurrency = 4

// EnqueueResult describes the outcome of an enqueue request.
type EnqueueResult struct {
	QueueItemID   string   `json:"queue_item_id,omitempty"`
	SourceLocale  string   `json:"source_locale"`
	TargetLocales []string `json:"target_locales"`
	AlreadyQueued bool     `json:"already_queued"`
}

// Enqueuer is the entry point for translation work: it resolves the source
// locale, queues asynchronous jobs, and runs the synchronous path.
type Enqueuer struct {
	queries    *store.Queries
	detector   *detect.Detector
	locales    i18n.Locales
	translator *translate.Translator
	events     *service.EventService
	hooks      *webhook.Dispatcher
	log        *slog.Logger
}

// NewEnqueuer wires an Enqueuer.
func NewEnqueuer(queries *store.Queries, detector *detect.Detector, locales i18n.Locales,
	translator *translate.Translator, events *service.EventService,
	hooks *webhook.Dispatcher, log *slog.Logger) *Enqueuer {
	return &Enqueuer{
		queries:    queries,
		detector:   detector,
		locales:    locales,
		translator: translator,
		events:     events,
		hooks:      hooks,
		log:        log,
	}
}

// AddToQueue schedules a listing for translation into every supported locale
// except its source. Enqueueing a listing that already has a pending or
// processing item is an idempotent success: the existing item covers it.
func (e *Enqueuer) AddToQueue(ctx context.Context, listingID, sourceLocale string) (EnqueueResult, error) {
	listing, err := e.queries.GetListing(ctx, listingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return EnqueueResult{}, ErrListingNotFound
		}
		return EnqueueResult{}, fmt.Errorf("load listing: %w", err)
	}

	source, err := e.resolveSource(ctx, listing, sourceLocale)
	if err != nil {
		return EnqueueResult{}, err
	}
	targets := e.locales.TargetsFor(source)
	if len(targets) == 0 {
		return EnqueueResult{}, ErrNoTargets
	}

	active, err := e.queries.HasActiveQueueItem(ctx, listingID)
	if err != nil {
		return EnqueueResult{}, fmt.Errorf("check active queue item: %w", err)
	}
	if active {
		e.log.Debug("listing already queued", "listing_id", listingID)
		return EnqueueResult{SourceLocale: source, TargetLocales: targets, AlreadyQueued: true}, nil
	}

	now := time.Now().UTC()
	item, err := e.queries.InsertQueueItem(ctx, store.InsertQueueItemParams{
		ID:            uuid.New().String(),
		ListingID:     listingID,
		SourceLocale:  source,
		TargetLocales: model.EncodeLocales(targets),
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return EnqueueResult{}, fmt.Errorf("insert queue item: %w", err)
	}

	e.log.Info("listing queued for translation",
		"listing_id", listingID, "queue_item_id", item.ID, "source", source, "targets", len(targets))
	e.events.LogInfo(ctx, model.EventCategoryQueue, "listing queued for translation", map[string]any{
		"listing_id":    listingID,
		"queue_item_id": item.ID,
		"source_locale": source,
	})
	e.hooks.Dispatch(webhook.NewEvent(webhook.EventTranslationQueued, webhook.TranslationEventData{
		ListingID:     listingID,
		QueueItemID:   item.ID,
		SourceLocale:  source,
		TargetLocales: targets,
	}))

	return EnqueueResult{QueueItemID: item.ID, SourceLocale: source, TargetLocales: targets}, nil
}

// TranslateNow translates a listing synchronously, fanning out across target
// locales, and returns the number of locales translated. The caller waits,
// so this path trades the queue's durability for latency.
func (e *Enqueuer) TranslateNow(ctx context.Context, listingID, sourceLocale string) (int, error) {
	listing, err := e.queries.GetListing(ctx, listingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrListingNotFound
		}
		return 0, fmt.Errorf("load listing: %w", err)
	}

	source, err := e.resolveSource(ctx, listing, sourceLocale)
	if err != nil {
		return 0, err
	}
	targets := e.locales.TargetsFor(source)
	if len(targets) == 0 {
		return 0, ErrNoTargets
	}

	completed, err := e.translator.TranslateListing(ctx,
		translate.ListingText{ID: listing.ID, Title: listing.Title, Body: listing.Body},
		source, targets, translate.Options{Concurrency: syncConcurrency})
	if err != nil {
		e.events.LogError(ctx, model.EventCategoryTranslate, "synchronous translation failed", map[string]any{
			"listing_id": listingID,
			"error":      err.Error(),
		})
		return len(completed), err
	}

	e.log.Info("listing translated synchronously", "listing_id", listingID, "locales", len(completed))
	return len(completed), nil
}

// resolveSource picks the source locale: the caller's explicit choice wins,
// then the language stored on the listing, then detection. A detected
// language is persisted unless another writer got there first.
func (e *Enqueuer) resolveSource(ctx context.Context, listing model.Listing, given string) (string, error) {
	if given != "" {
		locale, ok := e.locales.Normalize(given)
		if !ok {
			return "", fmt.Errorf("%w: %q", ErrUnsupportedLocale, given)
		}
		return locale, nil
	}

	if listing.HasLanguage() {
		if locale, ok := e.locales.Normalize(listing.OriginalLanguage); ok {
			return locale, nil
		}
		// A stored language outside the configured set can happen after the
		// locale set shrinks; fall through to detection.
		e.log.Warn("stored listing language not in configured locales",
			"listing_id", listing.ID, "language", listing.OriginalLanguage)
	}

	res := e.detector.Detect(ctx, listing.Title+"\n"+listing.Body)
	set, err := e.queries.SetListingLanguageIfNull(ctx, store.SetListingLanguageIfNullParams{
		Language:  res.Locale,
		UpdatedAt: time.Now().UTC(),
		ID:        listing.ID,
	})
	if err != nil {
		return "", fmt.Errorf("persist detected language: %w", err)
	}
	if set {
		e.log.Info("listing language detected",
			"listing_id", listing.ID, "locale", res.Locale,
			"confidence", res.Confidence, "method", res.Method)
	}
	return res.Locale, nil
}
