// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/kurashi-go/internal/queue"
)

// TranslateRequest is the optional body for the translate endpoints.
type TranslateRequest struct {
	SourceLocale string `json:"source_locale,omitempty"`
}

// TranslateSyncResponse is returned by the synchronous translate endpoint.
type TranslateSyncResponse struct {
	TranslatedCount int `json:"translated_count"`
}

// TranslateSync handles POST /api/v1/listings/{id}/translate.
// Translates the listing into every target locale before responding.
func (h *Handler) TranslateSync(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	req, ok := decodeTranslateRequest(w, r)
	if !ok {
		return
	}

	count, err := h.enqueuer.TranslateNow(r.Context(), id, req.SourceLocale)
	if err != nil {
		if writeQueueError(w, err) {
			return
		}
		h.log.Error("synchronous translation", "listing_id", id, "error", err)
		WriteError(w, http.StatusBadGateway, "translation_failed",
			"Translation failed", map[string]string{
				"translated_count": strconv.Itoa(count),
			})
		return
	}

	WriteSuccess(w, TranslateSyncResponse{TranslatedCount: count}, nil)
}

// EnqueueTranslation handles POST /api/v1/listings/{id}/translate/queue.
func (h *Handler) EnqueueTranslation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	req, ok := decodeTranslateRequest(w, r)
	if !ok {
		return
	}

	result, err := h.enqueuer.AddToQueue(r.Context(), id, req.SourceLocale)
	if err != nil {
		if writeQueueError(w, err) {
			return
		}
		h.log.Error("enqueueing translation", "listing_id", id, "error", err)
		WriteInternalError(w, "Failed to enqueue translation")
		return
	}

	WriteAccepted(w, result)
}

// ProcessQueue handles POST /api/v1/translate/process. The route is
// token-protected; one bounded processor run executes inline.
func (h *Handler) ProcessQueue(w http.ResponseWriter, r *http.Request) {
	result, err := h.processor.ProcessQueue(r.Context())
	if err != nil {
		h.log.Error("processing queue", "error", err)
		WriteInternalError(w, "Queue processing failed")
		return
	}
	WriteSuccess(w, result, nil)
}

// QueueStatusResponse reports the queue backlog.
type QueueStatusResponse struct {
	Pending int64 `json:"pending"`
}

// QueueStatus handles GET /api/v1/translate/queue.
func (h *Handler) QueueStatus(w http.ResponseWriter, r *http.Request) {
	pending, err := h.queries.CountPendingQueueItems(r.Context())
	if err != nil {
		h.log.Error("counting pending queue items", "error", err)
		WriteInternalError(w, "Failed to read queue status")
		return
	}
	WriteSuccess(w, QueueStatusResponse{Pending: pending}, nil)
}

// decodeTranslateRequest reads the optional request body. A missing or
// empty body means "detect the source locale".
func decodeTranslateRequest(w http.ResponseWriter, r *http.Request) (TranslateRequest, bool) {
	var req TranslateRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		WriteBadRequest(w, "Invalid JSON body", map[string]string{"body": err.Error()})
		return req, false
	}
	return req, true
}

// writeQueueError maps pipeline sentinel errors onto API responses.
// Returns false when err is not one of them.
func writeQueueError(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, queue.ErrListingNotFound):
		WriteNotFound(w, "Listing not found")
	case errors.Is(err, queue.ErrUnsupportedLocale):
		WriteBadRequest(w, "Unsupported source locale", nil)
	case errors.Is(err, queue.ErrNoTargets):
		WriteBadRequest(w, "No target locales for this listing", nil)
	default:
		return false
	}
	return true
}
