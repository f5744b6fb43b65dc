// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package translate

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/olegiv/kurashi-go/internal/store"
)

// ListingText is the slice of a listing the translator needs: identity plus
// the text snapshot taken when the work was scheduled.
type ListingText struct {
	ID    string
	Title string
	Body  string
}

// LocaleError reports which target locale a translation run died on.
type LocaleError struct {
	Locale string
	Err    error
}

func (e *LocaleError) Error() string {
	return fmt.Sprintf("locale %s: %v", e.Locale, e.Err)
}

func (e *LocaleError) Unwrap() error {
	return e.Err
}

// Invalidator drops cached translation reads for a listing after a write.
type Invalidator interface {
	Invalidate(ctx context.Context, listingID string)
}

// Options controls a single TranslateListing run.
type Options struct {
	// Concurrency is the number of target locales translated in parallel.
	// Zero or one means sequential, which is what the queue processor wants;
	// the synchronous API path fans out.
	Concurrency int
}

// Translator runs the per-listing translation pipeline: sanitize the text,
// call the provider once per field and target locale under a hard per-call
// timeout, and persist each completed locale before starting the next.
type Translator struct {
	queries     *store.Queries
	provider    Provider
	cache       Invalidator
	callTimeout time.Duration
	sanitizer   *bluemonday.Policy
	log         *slog.Logger
}

// NewTranslator wires the pipeline. cache may be nil.
func NewTranslator(queries *store.Queries, provider Provider, cache Invalidator, callTimeout time.Duration, log *slog.Logger) *Translator {
	return &Translator{
		queries:     queries,
		provider:    provider,
		cache:       cache,
		callTimeout: callTimeout,
		sanitizer:   bluemonday.StrictPolicy(),
		log:         log,
	}
}

// TranslateListing translates the listing into every target locale and
// persists each result as it lands. It returns the locales that were fully
// translated and stored; on failure the returned error is a *LocaleError
// naming the first locale that broke, and the completed list still reflects
// the locales persisted before (or, when running concurrently, despite) it.
func (t *Translator) TranslateListing(ctx context.Context, listing ListingText, sourceLocale string, targets []string, opts Options) ([]string, error) {
	clean := ListingText{
		ID:    listing.ID,
		Title: t.cleanText(listing.Title),
		Body:  t.cleanText(listing.Body),
	}

	if opts.Concurrency > 1 && len(targets) > 1 {
		return t.translateParallel(ctx, clean, sourceLocale, targets, opts.Concurrency)
	}
	return t.translateSequential(ctx, clean, sourceLocale, targets)
}

func (t *Translator) translateSequential(ctx context.Context, listing ListingText, sourceLocale string, targets []string) ([]string, error) {
	var completed []string
	for _, target := range targets {
		if err := t.translateLocale(ctx, listing, sourceLocale, target); err != nil {
			return completed, &LocaleError{Locale: target, Err: err}
		}
		completed = append(completed, target)
	}
	return completed, nil
}

func (t *Translator) translateParallel(ctx context.Context, listing ListingText, sourceLocale string, targets []string, concurrency int) ([]string, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	doneIdx := make([]bool, len(targets))
	var firstErr error

	for i, target := range targets {
		wg.Add(1)
		go func(i int, target string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			if runCtx.Err() != nil {
				return
			}
			err := t.translateLocale(runCtx, listing, sourceLocale, target)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = &LocaleError{Locale: target, Err: err}
					cancel()
				}
				return
			}
			doneIdx[i] = true
		}(i, target)
	}
	wg.Wait()

	// Collect in target order regardless of goroutine finish order.
	var completed []string
	for i, done := range doneIdx {
		if done {
			completed = append(completed, targets[i])
		}
	}
	return completed, firstErr
}

// translateLocale translates both fields into one locale and stores the
// result. The row is only written once both fields succeeded, so readers
// never see a half-translated listing.
func (t *Translator) translateLocale(ctx context.Context, listing ListingText, sourceLocale, target string) error {
	title, err := t.translateText(ctx, listing.Title, sourceLocale, target)
	if err != nil {
		return fmt.Errorf("title: %w", err)
	}
	body, err := t.translateText(ctx, listing.Body, sourceLocale, target)
	if err != nil {
		return fmt.Errorf("body: %w", err)
	}

	err = t.queries.UpsertTranslation(ctx, store.UpsertTranslationParams{
		ListingID:        listing.ID,
		Locale:           target,
		Title:            title,
		Body:             body,
		IsAutoTranslated: true,
		TranslatedAt:     time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("store translation: %w", err)
	}
	if t.cache != nil {
		t.cache.Invalidate(ctx, listing.ID)
	}
	t.log.Debug("listing translated", "listing_id", listing.ID, "locale", target)
	return nil
}

// translateText makes one provider call under the hard per-call timeout. A
// hung provider connection costs at most callTimeout, never the whole run.
func (t *Translator) translateText(ctx context.Context, text, sourceLocale, target string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	callCtx, cancel := context.WithTimeout(ctx, t.callTimeout)
	defer cancel()
	return t.provider.Translate(callCtx, text, sourceLocale, target)
}

// cleanText strips markup users paste into listings before it reaches the
// provider; MT engines mangle tags and bill for them anyway.
func (t *Translator) cleanText(s string) string {
	return strings.TrimSpace(html.UnescapeString(t.sanitizer.Sanitize(s)))
}
