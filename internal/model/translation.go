// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "time"

// Translation is one machine- or human-provided rendering of a listing's
// title and body into a target locale. Uniqueness is on (ListingID, Locale);
// all writes go through an upsert keyed on that pair, so re-translating a
// locale overwrites rather than duplicates.
type Translation struct {
	ListingID        string    `json:"listing_id"`
	Locale           string    `json:"locale"`
	Title            string    `json:"title"`
	Body             string    `json:"body"`
	IsAutoTranslated bool      `json:"is_auto_translated"`
	TranslatedAt     time.Time `json:"translated_at"`
}
