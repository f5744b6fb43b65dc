// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/olegiv/kurashi-go/internal/model"
	"github.com/olegiv/kurashi-go/internal/store"
	"github.com/olegiv/kurashi-go/internal/util"
)

// MaxTitleLength caps listing titles; bodies are capped separately.
const (
	MaxTitleLength = 200
	MaxBodyLength  = 20000
)

// CreateListingRequest represents the request body for creating a listing.
type CreateListingRequest struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Category string `json:"category"`
	Language string `json:"language,omitempty"` // optional; detected later when empty
}

// ListingResponse is a listing with its translations.
type ListingResponse struct {
	model.Listing
	Translations []model.Translation `json:"translations"`
}

// CreateListing handles POST /api/v1/listings.
func (h *Handler) CreateListing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateListingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	fieldErrors := map[string]string{}
	req.Title = strings.TrimSpace(req.Title)
	req.Body = strings.TrimSpace(req.Body)
	if req.Title == "" {
		fieldErrors["title"] = "Title is required"
	} else if len(req.Title) > MaxTitleLength {
		fieldErrors["title"] = "Title is too long"
	}
	if req.Body == "" {
		fieldErrors["body"] = "Body is required"
	} else if len(req.Body) > MaxBodyLength {
		fieldErrors["body"] = "Body is too long"
	}
	if !model.IsValidCategory(req.Category) {
		fieldErrors["category"] = "Unknown category"
	}

	language := ""
	if req.Language != "" {
		code, ok := h.locales.Normalize(req.Language)
		if !ok {
			fieldErrors["language"] = "Unsupported language"
		} else {
			language = code
		}
	}
	if len(fieldErrors) > 0 {
		WriteValidationError(w, fieldErrors)
		return
	}

	id := uuid.New().String()
	now := time.Now().UTC()
	listing, err := h.queries.CreateListing(ctx, store.CreateListingParams{
		ID:        id,
		Title:     req.Title,
		Body:      req.Body,
		Category:  req.Category,
		Slug:      listingSlug(req.Title, id),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		h.log.Error("creating listing", "error", err)
		WriteInternalError(w, "Failed to create listing")
		return
	}

	if language != "" {
		set, err := h.queries.SetListingLanguageIfNull(ctx, store.SetListingLanguageIfNullParams{
			Language:  language,
			UpdatedAt: now,
			ID:        id,
		})
		if err != nil {
			h.log.Error("setting listing language", "listing_id", id, "error", err)
		} else if set {
			listing.OriginalLanguage = language
		}
	}

	// Queue translations right away. Best effort: a full queue or a
	// storage hiccup must not fail the creation.
	if _, err := h.enqueuer.AddToQueue(ctx, id, language); err != nil {
		h.log.Warn("enqueueing translations for new listing", "listing_id", id, "error", err)
	}

	WriteCreated(w, listing)
}

// GetListing handles GET /api/v1/listings/{id}.
func (h *Handler) GetListing(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	listing, err := h.queries.GetListing(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteNotFound(w, "Listing not found")
			return
		}
		h.log.Error("fetching listing", "listing_id", id, "error", err)
		WriteInternalError(w, "Failed to retrieve listing")
		return
	}

	translations, err := h.translationsFor(r.Context(), id)
	if err != nil {
		h.log.Error("listing translations", "listing_id", id, "error", err)
		WriteInternalError(w, "Failed to retrieve translations")
		return
	}
	WriteSuccess(w, ListingResponse{Listing: listing, Translations: translations}, nil)
}

// translationsFor reads a listing's translations through the cache.
func (h *Handler) translationsFor(ctx context.Context, listingID string) ([]model.Translation, error) {
	if translations, ok := h.translations.Get(ctx, listingID); ok {
		return translations, nil
	}
	translations, err := h.queries.ListTranslations(ctx, listingID)
	if err != nil {
		return nil, err
	}
	h.translations.Set(ctx, listingID, translations)
	return translations, nil
}

// ListTranslations handles GET /api/v1/listings/{id}/translations.
// Reads through the translations cache; a miss falls back to the
// database and repopulates the cache.
func (h *Handler) ListTranslations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if translations, ok := h.translations.Get(ctx, id); ok {
		WriteSuccess(w, translations, &Meta{Total: int64(len(translations))})
		return
	}

	// Cache miss: confirm the listing exists so unknown IDs 404 instead
	// of returning an empty list.
	if _, err := h.queries.GetListing(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteNotFound(w, "Listing not found")
			return
		}
		h.log.Error("fetching listing", "listing_id", id, "error", err)
		WriteInternalError(w, "Failed to retrieve listing")
		return
	}

	translations, err := h.translationsFor(ctx, id)
	if err != nil {
		h.log.Error("listing translations", "listing_id", id, "error", err)
		WriteInternalError(w, "Failed to retrieve translations")
		return
	}
	WriteSuccess(w, translations, &Meta{Total: int64(len(translations))})
}

// listingSlug builds a slug from the title with a short ID suffix so
// two listings with the same title never collide.
func listingSlug(title, id string) string {
	base := util.Slugify(title)
	if base == "" {
		base = "listing"
	}
	suffix := id
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return base + "-" + suffix
}
