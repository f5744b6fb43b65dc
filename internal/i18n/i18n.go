// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package i18n holds the supported locale set. The set is configuration:
// adding a locale must not require touching detector or provider logic
// beyond the provider's locale mapping table.
package i18n

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// DefaultLocaleCodes is the locale set used when KURASHI_LOCALES is unset.
var DefaultLocaleCodes = []string{"ja", "en", "zh-CN", "zh-TW", "ko"}

// Locales is an immutable supported-locale set with a configured default.
type Locales struct {
	codes    []string
	index    map[string]int
	fallback string
	tags     []language.Tag
	matcher  language.Matcher
}

// New builds a locale set from configured codes and a default locale.
// Codes are kept in the configured order; duplicates are rejected so a
// mistyped configuration fails at startup rather than at enqueue time.
func New(codes []string, fallback string) (Locales, error) {
	if len(codes) == 0 {
		return Locales{}, fmt.Errorf("i18n: locale set is empty")
	}

	l := Locales{
		index:    make(map[string]int, len(codes)),
		fallback: fallback,
	}
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		if _, dup := l.index[code]; dup {
			return Locales{}, fmt.Errorf("i18n: duplicate locale %q", code)
		}
		tag, err := language.Parse(code)
		if err != nil {
			return Locales{}, fmt.Errorf("i18n: invalid locale %q: %w", code, err)
		}
		l.index[code] = len(l.codes)
		l.codes = append(l.codes, code)
		l.tags = append(l.tags, tag)
	}

	if _, ok := l.index[fallback]; !ok {
		return Locales{}, fmt.Errorf("i18n: default locale %q not in locale set %v", fallback, l.codes)
	}

	l.matcher = language.NewMatcher(l.tags)
	return l, nil
}

// Supported returns the locale codes in configured order.
func (l Locales) Supported() []string {
	out := make([]string, len(l.codes))
	copy(out, l.codes)
	return out
}

// Default returns the configured default locale.
func (l Locales) Default() string {
	return l.fallback
}

// IsSupported reports whether code is exactly one of the supported locales.
func (l Locales) IsSupported(code string) bool {
	_, ok := l.index[code]
	return ok
}

// TargetsFor returns the supported locales minus the source locale, in
// configured order. A source outside the set excludes nothing.
func (l Locales) TargetsFor(source string) []string {
	targets := make([]string, 0, len(l.codes))
	for _, code := range l.codes {
		if code != source {
			targets = append(targets, code)
		}
	}
	return targets
}

// Normalize maps an arbitrary BCP 47 code onto the supported set
// (e.g. "en-US" to "en", "zh-Hans" to "zh-CN"). The second return value is
// false when the code cannot be matched with reasonable confidence.
func (l Locales) Normalize(code string) (string, bool) {
	if l.IsSupported(code) {
		return code, true
	}

	tag, err := language.Parse(code)
	if err != nil {
		return "", false
	}

	_, idx, conf := l.matcher.Match(tag)
	if conf < language.High {
		return "", false
	}
	return l.codes[idx], true
}
