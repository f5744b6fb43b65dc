// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "time"

// Listing categories
const (
	CategoryHousing  = "housing"
	CategoryJobs     = "jobs"
	CategoryItems    = "items"
	CategoryServices = "services"
)

// Listing represents a classified ad posted by a user. Only the fields the
// translation pipeline reads and writes live here; account ownership, images
// and moderation state belong to collaborating services.
type Listing struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Body             string    `json:"body"`
	Category         string    `json:"category"`
	Slug             string    `json:"slug"`
	OriginalLanguage string    `json:"original_language,omitempty"` // empty until first detection
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// HasLanguage reports whether the listing's source language has been determined.
func (l *Listing) HasLanguage() bool {
	return l.OriginalLanguage != ""
}

// ValidCategories lists the categories accepted on listing creation.
var ValidCategories = []string{CategoryHousing, CategoryJobs, CategoryItems, CategoryServices}

// IsValidCategory reports whether c is a known listing category.
func IsValidCategory(c string) bool {
	for _, v := range ValidCategories {
		if v == c {
			return true
		}
	}
	return false
}
