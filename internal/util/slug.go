// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package util provides general-purpose helpers shared across the
// application: URL slug generation for listing titles and webhook
// URL validation.
package util

import (
	"regexp"
	"strings"

	"github.com/mozillazg/go-unidecode"
)

var (
	// slugRegex matches non-alphanumeric characters (except hyphens)
	slugRegex = regexp.MustCompile(`[^a-z0-9-]+`)
	// multipleHyphens matches consecutive hyphens
	multipleHyphens = regexp.MustCompile(`-+`)
)

// MaxSlugLength is the maximum length of a generated slug.
const MaxSlugLength = 80

// Slugify converts a listing title to a URL-friendly slug. Titles are
// transliterated to ASCII first so Japanese, Chinese and Korean text
// produces a readable slug rather than an empty string. Returns "" if
// nothing survives transliteration; callers should fall back to an ID.
func Slugify(title string) string {
	s := unidecode.Unidecode(title)
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "-")
	s = slugRegex.ReplaceAllString(s, "")
	s = multipleHyphens.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")

	if len(s) > MaxSlugLength {
		s = strings.Trim(s[:MaxSlugLength], "-")
	}
	return s
}

// IsValidSlug reports whether s is a well-formed slug: lowercase
// alphanumerics and single hyphens, no leading or trailing hyphen.
func IsValidSlug(s string) bool {
	if s == "" || len(s) > MaxSlugLength {
		return false
	}
	if strings.HasPrefix(s, "-") || strings.HasSuffix(s, "-") {
		return false
	}
	if strings.Contains(s, "--") {
		return false
	}
	return !slugRegex.MatchString(s)
}
