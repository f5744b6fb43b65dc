// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/olegiv/kurashi-go/internal/model"
)

// DBTX is the minimal database interface Queries needs, satisfied by both
// *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries provides typed access to the database.
type Queries struct {
	db DBTX
}

// New creates a Queries instance backed by the given database or transaction.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// ---------------------------------------------------------------------------
// Listings

// CreateListingParams holds the fields for CreateListing.
type CreateListingParams struct {
	ID        string
	Title     string
	Body      string
	Category  string
	Slug      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateListing inserts a new listing without a detected language.
func (q *Queries) CreateListing(ctx context.Context, arg CreateListingParams) (model.Listing, error) {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO listings (id, title, body, category, slug, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		arg.ID, arg.Title, arg.Body, arg.Category, arg.Slug, arg.CreatedAt, arg.UpdatedAt,
	)
	if err != nil {
		return model.Listing{}, err
	}
	return model.Listing{
		ID:        arg.ID,
		Title:     arg.Title,
		Body:      arg.Body,
		Category:  arg.Category,
		Slug:      arg.Slug,
		CreatedAt: arg.CreatedAt,
		UpdatedAt: arg.UpdatedAt,
	}, nil
}

// GetListing fetches a listing by ID. Returns sql.ErrNoRows if missing.
func (q *Queries) GetListing(ctx context.Context, id string) (model.Listing, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, title, body, category, slug, original_language, created_at, updated_at
		FROM listings WHERE id = ?`, id)
	return scanListing(row)
}

// SetListingLanguageIfNullParams holds the fields for SetListingLanguageIfNull.
type SetListingLanguageIfNullParams struct {
	Language  string
	UpdatedAt time.Time
	ID        string
}

// SetListingLanguageIfNull records the detected source language, but only if
// none has been recorded yet (first detection wins; concurrent detections
// race harmlessly). Returns true if this call performed the write.
func (q *Queries) SetListingLanguageIfNull(ctx context.Context, arg SetListingLanguageIfNullParams) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE listings SET original_language = ?, updated_at = ?
		WHERE id = ? AND original_language IS NULL`,
		arg.Language, arg.UpdatedAt, arg.ID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ---------------------------------------------------------------------------
// Translations

// UpsertTranslationParams holds the fields for UpsertTranslation.
type UpsertTranslationParams struct {
	ListingID        string
	Locale           string
	Title            string
	Body             string
	IsAutoTranslated bool
	TranslatedAt     time.Time
}

// UpsertTranslation writes a translation row, replacing any existing row for
// the same (listing, locale) pair. Re-running a translation is always safe.
func (q *Queries) UpsertTranslation(ctx context.Context, arg UpsertTranslationParams) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO listing_translations (listing_id, locale, title, body, is_auto_translated, translated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (listing_id, locale) DO UPDATE SET
			title = excluded.title,
			body = excluded.body,
			is_auto_translated = excluded.is_auto_translated,
			translated_at = excluded.translated_at`,
		arg.ListingID, arg.Locale, arg.Title, arg.Body, arg.IsAutoTranslated, arg.TranslatedAt,
	)
	return err
}

// GetTranslationParams holds the fields for GetTranslation.
type GetTranslationParams struct {
	ListingID string
	Locale    string
}

// GetTranslation fetches a single translation. Returns sql.ErrNoRows if missing.
func (q *Queries) GetTranslation(ctx context.Context, arg GetTranslationParams) (model.Translation, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT listing_id, locale, title, body, is_auto_translated, translated_at
		FROM listing_translations WHERE listing_id = ? AND locale = ?`,
		arg.ListingID, arg.Locale)

	var t model.Translation
	err := row.Scan(&t.ListingID, &t.Locale, &t.Title, &t.Body, &t.IsAutoTranslated, &t.TranslatedAt)
	return t, err
}

// ListTranslations returns all translations for a listing ordered by locale.
func (q *Queries) ListTranslations(ctx context.Context, listingID string) ([]model.Translation, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT listing_id, locale, title, body, is_auto_translated, translated_at
		FROM listing_translations WHERE listing_id = ? ORDER BY locale`, listingID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var translations []model.Translation
	for rows.Next() {
		var t model.Translation
		if err := rows.Scan(&t.ListingID, &t.Locale, &t.Title, &t.Body, &t.IsAutoTranslated, &t.TranslatedAt); err != nil {
			return nil, err
		}
		translations = append(translations, t)
	}
	return translations, rows.Err()
}

// ---------------------------------------------------------------------------
// Translation queue

// InsertQueueItemParams holds the fields for InsertQueueItem.
type InsertQueueItemParams struct {
	ID            string
	ListingID     string
	SourceLocale  string
	TargetLocales string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// InsertQueueItem creates a new pending queue item.
func (q *Queries) InsertQueueItem(ctx context.Context, arg InsertQueueItemParams) (model.QueueItem, error) {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO translation_queue (id, listing_id, source_locale, target_locales, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, 'pending', ?, ?)`,
		arg.ID, arg.ListingID, arg.SourceLocale, arg.TargetLocales, arg.CreatedAt, arg.UpdatedAt,
	)
	if err != nil {
		return model.QueueItem{}, err
	}
	return model.QueueItem{
		ID:               arg.ID,
		ListingID:        arg.ListingID,
		SourceLocale:     arg.SourceLocale,
		TargetLocales:    arg.TargetLocales,
		CompletedLocales: "[]",
		Status:           model.QueueStatusPending,
		CreatedAt:        arg.CreatedAt,
		UpdatedAt:        arg.UpdatedAt,
	}, nil
}

// GetQueueItem fetches a queue item by ID. Returns sql.ErrNoRows if missing.
func (q *Queries) GetQueueItem(ctx context.Context, id string) (model.QueueItem, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, listing_id, source_locale, target_locales, completed_locales,
		       status, retry_count, error_message, created_at, updated_at
		FROM translation_queue WHERE id = ?`, id)
	return scanQueueItem(row)
}

// HasActiveQueueItem reports whether the listing already has a pending or
// processing queue item, to keep enqueue idempotent.
func (q *Queries) HasActiveQueueItem(ctx context.Context, listingID string) (bool, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM translation_queue
		WHERE listing_id = ? AND status IN ('pending', 'processing')`, listingID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CountPendingQueueItems counts items waiting for a processor run. Used for
// monitoring, not for correctness.
func (q *Queries) CountPendingQueueItems(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM translation_queue
		WHERE status = 'pending' AND retry_count < ?`, model.MaxQueueRetries).Scan(&count)
	return count, err
}

// DequeuedItem is a queue item joined with a snapshot of its listing's text
// taken at dequeue time. Listing edits after this point are not reflected in
// the in-flight job.
type DequeuedItem struct {
	model.QueueItem
	ListingTitle string
	ListingBody  string
}

// DequeueBatch selects up to limit claimable items oldest-first. Both fresh
// pending items and previously failed items under the retry ceiling are
// candidates; the actual claim happens in MarkProcessing, one conditional
// write per item, so concurrent processor runs never share an item.
func (q *Queries) DequeueBatch(ctx context.Context, limit int64) ([]DequeuedItem, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT tq.id, tq.listing_id, tq.source_locale, tq.target_locales, tq.completed_locales,
		       tq.status, tq.retry_count, tq.error_message, tq.created_at, tq.updated_at,
		       l.title, l.body
		FROM translation_queue tq
		JOIN listings l ON l.id = tq.listing_id
		WHERE tq.status IN ('pending', 'failed') AND tq.retry_count < ?
		ORDER BY tq.created_at
		LIMIT ?`, model.MaxQueueRetries, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []DequeuedItem
	for rows.Next() {
		var item DequeuedItem
		var errMsg sql.NullString
		if err := rows.Scan(
			&item.ID, &item.ListingID, &item.SourceLocale, &item.TargetLocales, &item.CompletedLocales,
			&item.Status, &item.RetryCount, &errMsg, &item.CreatedAt, &item.UpdatedAt,
			&item.ListingTitle, &item.ListingBody,
		); err != nil {
			return nil, err
		}
		item.ErrorMessage = errMsg.String
		items = append(items, item)
	}
	return items, rows.Err()
}

// MarkProcessingParams holds the fields for MarkProcessing.
type MarkProcessingParams struct {
	UpdatedAt time.Time
	ID        string
}

// MarkProcessing claims a queue item. The conditional WHERE is the claim:
// zero rows affected means another run got there first, which is a no-op for
// the caller, not an error.
func (q *Queries) MarkProcessing(ctx context.Context, arg MarkProcessingParams) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE translation_queue SET status = 'processing', updated_at = ?
		WHERE id = ? AND status IN ('pending', 'failed') AND retry_count < ?`,
		arg.UpdatedAt, arg.ID, model.MaxQueueRetries,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkCompletedParams holds the fields for MarkCompleted.
type MarkCompletedParams struct {
	CompletedLocales string
	UpdatedAt        time.Time
	ID               string
}

// MarkCompleted transitions a processing item to completed. A no-op if the
// item is not currently processing.
func (q *Queries) MarkCompleted(ctx context.Context, arg MarkCompletedParams) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE translation_queue
		SET status = 'completed', completed_locales = ?, error_message = NULL, updated_at = ?
		WHERE id = ? AND status = 'processing'`,
		arg.CompletedLocales, arg.UpdatedAt, arg.ID,
	)
	return err
}

// MarkFailedParams holds the fields for MarkFailed.
type MarkFailedParams struct {
	ErrorMessage     string
	CompletedLocales string
	UpdatedAt        time.Time
	ID               string
}

// MarkFailed records a failed run: the error message, the locales that did
// complete before the failure, and one more retry. A no-op if the item is
// not currently processing.
func (q *Queries) MarkFailed(ctx context.Context, arg MarkFailedParams) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE translation_queue
		SET status = 'failed', retry_count = retry_count + 1,
		    error_message = ?, completed_locales = ?, updated_at = ?
		WHERE id = ? AND status = 'processing'`,
		arg.ErrorMessage, arg.CompletedLocales, arg.UpdatedAt, arg.ID,
	)
	return err
}

// ---------------------------------------------------------------------------
// Events

// CreateEventParams holds the fields for CreateEvent.
type CreateEventParams struct {
	Level     string
	Category  string
	Message   string
	Metadata  string
	CreatedAt time.Time
}

// CreateEvent appends an audit log entry.
func (q *Queries) CreateEvent(ctx context.Context, arg CreateEventParams) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO events (level, category, message, metadata, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		arg.Level, arg.Category, arg.Message, arg.Metadata, arg.CreatedAt,
	)
	return err
}

// ---------------------------------------------------------------------------

func scanListing(row *sql.Row) (model.Listing, error) {
	var l model.Listing
	var lang sql.NullString
	err := row.Scan(&l.ID, &l.Title, &l.Body, &l.Category, &l.Slug, &lang, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return model.Listing{}, err
	}
	l.OriginalLanguage = lang.String
	return l, nil
}

func scanQueueItem(row *sql.Row) (model.QueueItem, error) {
	var item model.QueueItem
	var errMsg sql.NullString
	err := row.Scan(
		&item.ID, &item.ListingID, &item.SourceLocale, &item.TargetLocales, &item.CompletedLocales,
		&item.Status, &item.RetryCount, &errMsg, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return model.QueueItem{}, err
	}
	item.ErrorMessage = errMsg.String
	return item, nil
}
