// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package webhook notifies an external endpoint about translation lifecycle
// events. Delivery is best-effort: a dead endpoint never blocks or fails
// the pipeline.
package webhook

import "time"

// Event types emitted by the translation pipeline.
const (
	EventTranslationQueued    = "translation.queued"
	EventTranslationCompleted = "translation.completed"
	EventTranslationFailed    = "translation.failed"
)

// Event is the envelope posted to the configured endpoint.
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// NewEvent creates an event stamped with the current time.
func NewEvent(eventType string, data any) *Event {
	return &Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// TranslationEventData is the payload for translation lifecycle events.
type TranslationEventData struct {
	ListingID        string   `json:"listing_id"`
	QueueItemID      string   `json:"queue_item_id,omitempty"`
	SourceLocale     string   `json:"source_locale"`
	TargetLocales    []string `json:"target_locales,omitempty"`
	CompletedLocales []string `json:"completed_locales,omitempty"`
	Error            string   `json:"error,omitempty"`
}
