// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package detect identifies the language a listing was written in.
package detect

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pemistahl/lingua-go"

	"github.com/olegiv/kurashi-go/internal/i18n"
)

const (
	// MinTextLength is the shortest text worth running detection on.
	MinTextLength = 7

	// MaxTextLength caps how much text is fed to the statistical models.
	// Listings front-load their language signal; more text only costs time.
	MaxTextLength = 512

	// PrimaryThreshold is the minimum lingua confidence accepted without
	// consulting the provider fallback.
	PrimaryThreshold = 0.8

	// FallbackConfidence is reported when the translation provider, not the
	// local models, identified the language.
	FallbackConfidence = 0.9

	// DefaultConfidence is reported when detection gave up and the
	// configured default locale was assumed.
	DefaultConfidence = 0.5
)

// Detection methods. Assuming the configured default also reports
// "fallback"; the confidence value tells the two apart.
const (
	MethodPrimary  = "primary"
	MethodFallback = "fallback"
)

// Result is the outcome of a detection attempt. Detection never fails: when
// nothing can be determined, Locale holds the configured default.
type Result struct {
	Locale     string  `json:"locale"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"method"`
}

// ProviderDetector is the slice of the translation provider the detector
// uses as a fallback when the local models are unsure.
type ProviderDetector interface {
	DetectLanguage(ctx context.Context, text string) (string, error)
}

// Detector resolves the source language of listing text. Local statistical
// models (lingua) answer first; the translation provider is consulted only
// when they are not confident enough, and the configured default locale is
// the answer of last resort.
type Detector struct {
	locales  i18n.Locales
	detector lingua.LanguageDetector
	provider ProviderDetector
	log      *slog.Logger
}

// New builds a Detector restricted to the configured locales. provider may
// be nil, in which case low-confidence detections go straight to the
// default locale.
func New(locales i18n.Locales, provider ProviderDetector, log *slog.Logger) *Detector {
	languages := linguaLanguages(locales.Supported())
	builder := lingua.NewLanguageDetectorBuilder().
		FromLanguages(languages...).
		WithPreloadedLanguageModels()
	return &Detector{
		locales:  locales,
		detector: builder.Build(),
		provider: provider,
		log:      log,
	}
}

// Detect identifies the language of text. It never returns an error: every
// failure path degrades to the configured default locale.
func (d *Detector) Detect(ctx context.Context, text string) Result {
	clean := strings.TrimSpace(text)
	if len(clean) < MinTextLength {
		d.log.Debug("text too short for detection, assuming default",
			"text_length", len(clean), "default", d.locales.Default())
		return d.defaultResult()
	}
	clean = truncate(clean, MaxTextLength)

	if res, ok := d.detectPrimary(clean); ok {
		d.log.Debug("language detected", "locale", res.Locale,
			"confidence", res.Confidence, "method", res.Method)
		return res
	}

	if res, ok := d.detectFallback(ctx, clean); ok {
		d.log.Debug("language detected via provider", "locale", res.Locale)
		return res
	}

	d.log.Debug("detection inconclusive, assuming default", "default", d.locales.Default())
	return d.defaultResult()
}

func (d *Detector) detectPrimary(text string) (Result, bool) {
	values := d.detector.ComputeLanguageConfidenceValues(text)
	for _, cv := range values {
		locale, ok := localeFor(cv.Language(), d.locales)
		if !ok {
			continue
		}
		if cv.Value() < PrimaryThreshold {
			// Values are sorted by confidence; nothing further qualifies.
			return Result{}, false
		}
		return Result{Locale: locale, Confidence: cv.Value(), Method: MethodPrimary}, true
	}
	return Result{}, false
}

func (d *Detector) detectFallback(ctx context.Context, text string) (Result, bool) {
	if d.provider == nil {
		return Result{}, false
	}
	code, err := d.provider.DetectLanguage(ctx, text)
	if err != nil {
		d.log.Warn("provider language detection failed", "error", err)
		return Result{}, false
	}
	locale, ok := d.locales.Normalize(code)
	if !ok {
		d.log.Warn("provider returned unsupported language", "code", code)
		return Result{}, false
	}
	return Result{Locale: locale, Confidence: FallbackConfidence, Method: MethodFallback}, true
}

func (d *Detector) defaultResult() Result {
	return Result{Locale: d.locales.Default(), Confidence: DefaultConfidence, Method: MethodFallback}
}

// localeToLingua maps locale codes to lingua models. Both Chinese variants
// share one model: script conversion is the translator's job, not the
// detector's.
var localeToLingua = map[string]lingua.Language{
	"ja":    lingua.Japanese,
	"en":    lingua.English,
	"zh-CN": lingua.Chinese,
	"zh-TW": lingua.Chinese,
	"ko":    lingua.Korean,
	"vi":    lingua.Vietnamese,
	"pt":    lingua.Portuguese,
	"id":    lingua.Indonesian,
}

func linguaLanguages(locales []string) []lingua.Language {
	seen := make(map[lingua.Language]bool)
	var languages []lingua.Language
	for _, code := range locales {
		lang, ok := localeToLingua[code]
		if !ok || seen[lang] {
			continue
		}
		seen[lang] = true
		languages = append(languages, lang)
	}
	if len(languages) < 2 {
		// lingua needs at least two candidates to discriminate between.
		for _, lang := range []lingua.Language{lingua.English, lingua.Japanese} {
			if !seen[lang] {
				languages = append(languages, lang)
			}
		}
	}
	return languages
}

// localeFor resolves a detected language back to a configured locale code.
// When both Chinese variants are configured the first one in configured
// order wins; detection cannot tell scripts apart.
func localeFor(lang lingua.Language, locales i18n.Locales) (string, bool) {
	for _, code := range locales.Supported() {
		if localeToLingua[code] == lang {
			return code, true
		}
	}
	return "", false
}

func truncate(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	// Cut on a rune boundary.
	cut := maxBytes
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
