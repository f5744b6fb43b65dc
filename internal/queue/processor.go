// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/olegiv/kurashi-go/internal/model"
	"github.com/olegiv/kurashi-go/internal/service"
	"github.com/olegiv/kurashi-go/internal/store"
	"github.com/olegiv/kurashi-go/internal/translate"
	"github.com/olegiv/kurashi-go/internal/webhook"
)

// Processing defaults.
const (
	DefaultBatchSize = 10
	DefaultBudget    = 8 * time.Second
)

// Result summarizes one processor run. Processed counts every claimed
// attempt, failures included; Errors carries the failures separately.
type Result struct {
	Processed int      `json:"processed"`
	Remaining int64    `json:"remaining"`
	Errors    []string `json:"errors,omitempty"`
}

// Processor drains the translation queue in bounded runs: at most a batch
// of items, within a soft time budget checked between items. Runs are safe
// to overlap; the per-item claim keeps two runs off the same item.
type Processor struct {
	queries    *store.Queries
	translator *translate.Translator
	events     *service.EventService
	hooks      *webhook.Dispatcher
	batchSize  int
	budget     time.Duration
	log        *slog.Logger
}

// NewProcessor wires a Processor with the given batch size and budget;
// non-positive values fall back to the defaults.
func NewProcessor(queries *store.Queries, translator *translate.Translator,
	events *service.EventService, hooks *webhook.Dispatcher,
	batchSize int, budget time.Duration, log *slog.Logger) *Processor {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if budget <= 0 {
		budget = DefaultBudget
	}
	return &Processor{
		queries:    queries,
		translator: translator,
		events:     events,
		hooks:      hooks,
		batchSize:  batchSize,
		budget:     budget,
		log:        log,
	}
}

// ProcessQueue runs one batch with the configured limits.
func (p *Processor) ProcessQueue(ctx context.Context) (Result, error) {
	return p.ProcessQueueN(ctx, p.batchSize, p.budget)
}

// ProcessQueueN runs one batch with explicit limits. One item failing never
// stops the run; its error is recorded and the run moves on.
func (p *Processor) ProcessQueueN(ctx context.Context, maxItems int, budget time.Duration) (Result, error) {
	start := time.Now()
	var result Result

	items, err := p.queries.DequeueBatch(ctx, int64(maxItems))
	if err != nil {
		return result, fmt.Errorf("dequeue batch: %w", err)
	}

	for _, item := range items {
		if time.Since(start) >= budget {
			p.log.Info("queue run stopped at time budget",
				"processed", result.Processed, "budget", budget)
			break
		}
		if ctx.Err() != nil {
			break
		}

		claimed, err := p.queries.MarkProcessing(ctx, store.MarkProcessingParams{
			UpdatedAt: time.Now().UTC(),
			ID:        item.ID,
		})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", item.ID, err))
			continue
		}
		if !claimed {
			// Another run took it between dequeue and claim.
			continue
		}

		result.Processed++
		if err := p.processItem(ctx, item); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", item.ID, err))
		}
	}

	remaining, err := p.queries.CountPendingQueueItems(ctx)
	if err != nil {
		return result, fmt.Errorf("count pending: %w", err)
	}
	result.Remaining = remaining

	if result.Processed > 0 || len(result.Errors) > 0 {
		p.log.Info("queue run finished",
			"processed", result.Processed, "remaining", result.Remaining,
			"errors", len(result.Errors), "elapsed", time.Since(start))
	}
	return result, nil
}

// processItem translates the remaining target locales of one claimed item.
// Locales completed on earlier attempts are not translated again; their
// provider spend is already sunk.
func (p *Processor) processItem(ctx context.Context, item store.DequeuedItem) error {
	previously := item.Completed()
	remaining := item.RemainingTargets()

	newly, runErr := p.translator.TranslateListing(ctx,
		translate.ListingText{ID: item.ListingID, Title: item.ListingTitle, Body: item.ListingBody},
		item.SourceLocale, remaining, translate.Options{})
	done := append(append([]string{}, previously...), newly...)

	if runErr != nil {
		p.failItem(ctx, item, done, runErr)
		return runErr
	}

	err := p.queries.MarkCompleted(ctx, store.MarkCompletedParams{
		CompletedLocales: model.EncodeLocales(done),
		UpdatedAt:        time.Now().UTC(),
		ID:               item.ID,
	})
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}

	p.events.LogInfo(ctx, model.EventCategoryTranslate, "listing translation completed", map[string]any{
		"listing_id":    item.ListingID,
		"queue_item_id": item.ID,
		"locales":       len(done),
	})
	p.hooks.Dispatch(webhook.NewEvent(webhook.EventTranslationCompleted, webhook.TranslationEventData{
		ListingID:        item.ListingID,
		QueueItemID:      item.ID,
		SourceLocale:     item.SourceLocale,
		CompletedLocales: done,
	}))
	return nil
}

func (p *Processor) failItem(ctx context.Context, item store.DequeuedItem, done []string, runErr error) {
	err := p.queries.MarkFailed(ctx, store.MarkFailedParams{
		ErrorMessage:     runErr.Error(),
		CompletedLocales: model.EncodeLocales(done),
		UpdatedAt:        time.Now().UTC(),
		ID:               item.ID,
	})
	if err != nil {
		p.log.Error("failed to record queue item failure", "queue_item_id", item.ID, "error", err)
	}

	p.events.LogError(ctx, model.EventCategoryTranslate, "listing translation failed", map[string]any{
		"listing_id":    item.ListingID,
		"queue_item_id": item.ID,
		"retry_count":   item.RetryCount + 1,
		"error":         runErr.Error(),
	})
	p.hooks.Dispatch(webhook.NewEvent(webhook.EventTranslationFailed, webhook.TranslationEventData{
		ListingID:        item.ListingID,
		QueueItemID:      item.ID,
		SourceLocale:     item.SourceLocale,
		CompletedLocales: done,
		Error:            runErr.Error(),
	}))
}
