// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"encoding/json"
	"time"
)

// Queue item statuses
const (
	QueueStatusPending    = "pending"
	QueueStatusProcessing = "processing"
	QueueStatusCompleted  = "completed"
	QueueStatusFailed     = "failed"
)

// MaxQueueRetries is the retry ceiling: items that have failed this many
// times are excluded from all future dequeues and stay failed.
const MaxQueueRetries = 3

// QueueItem is one unit of pending translation work: a single listing and
// the set of locales it still needs. Items are never deleted in normal
// operation; the table doubles as an audit trail of translation runs.
type QueueItem struct {
	ID               string    `json:"id"`
	ListingID        string    `json:"listing_id"`
	SourceLocale     string    `json:"source_locale"`
	TargetLocales    string    `json:"target_locales"`    // JSON array of locale codes
	CompletedLocales string    `json:"completed_locales"` // JSON array, persisted per-locale progress
	Status           string    `json:"status"`
	RetryCount       int64     `json:"retry_count"`
	ErrorMessage     string    `json:"error_message,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Targets parses the JSON target locale list.
func (q *QueueItem) Targets() []string {
	return decodeLocales(q.TargetLocales)
}

// Completed parses the JSON completed locale list.
func (q *QueueItem) Completed() []string {
	return decodeLocales(q.CompletedLocales)
}

// RemainingTargets returns the target locales not yet recorded as completed,
// preserving the target order.
func (q *QueueItem) RemainingTargets() []string {
	done := make(map[string]bool)
	for _, loc := range q.Completed() {
		done[loc] = true
	}
	var remaining []string
	for _, loc := range q.Targets() {
		if !done[loc] {
			remaining = append(remaining, loc)
		}
	}
	return remaining
}

// IsTerminal reports whether the item can no longer be picked up by a
// processor run: completed, or failed at the retry ceiling.
func (q *QueueItem) IsTerminal() bool {
	if q.Status == QueueStatusCompleted {
		return true
	}
	return q.Status == QueueStatusFailed && q.RetryCount >= MaxQueueRetries
}

// EncodeLocales serializes a locale list for storage in a queue item column.
func EncodeLocales(locales []string) string {
	if len(locales) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(locales)
	return string(b)
}

func decodeLocales(s string) []string {
	if s == "" || s == "[]" {
		return nil
	}
	var locales []string
	_ = json.Unmarshal([]byte(s), &locales)
	return locales
}
