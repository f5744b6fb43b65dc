// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package translate talks to machine translation providers and runs the
// per-listing translation pipeline shared by the queue processor and the
// synchronous API.
package translate

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"
)

// Provider ID constants for supported translation providers.
const (
	ProviderDeepL  = "deepl"
	ProviderOpenAI = "openai"
)

// Provider is the interface for machine translation backends. One text and
// one locale pair per call; batching and retries are the caller's concern.
type Provider interface {
	// Name returns the provider ID for logs and error messages.
	Name() string

	// Translate renders text from the source locale into the target locale.
	// Both locales are application codes; each provider maps them to its own
	// codes and fails fast on ones it cannot serve.
	Translate(ctx context.Context, text, sourceLocale, targetLocale string) (string, error)

	// DetectLanguage identifies the language of text, returned as an
	// application locale code where the provider's answer maps to one.
	DetectLanguage(ctx context.Context, text string) (string, error)
}

// ErrUnsupportedLocale marks a locale the provider has no mapping for.
// Surfacing this at call time beats sending the provider a code it will
// silently misinterpret.
var ErrUnsupportedLocale = errors.New("unsupported locale")

func unsupportedLocale(provider, locale string) error {
	return fmt.Errorf("%s: %w: %q", provider, ErrUnsupportedLocale, locale)
}

// ProviderError wraps a failure from a translation backend. Retryable
// signals whether a later attempt could succeed (timeouts, rate limits,
// server errors) as opposed to a request that will always fail.
type ProviderError struct {
	Provider  string
	Message   string
	Cause     error
	Retryable bool
}

func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether err is a provider failure worth retrying.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// RateLimitedProvider wraps a Provider with a token bucket so queue
// processing and synchronous requests share one provider quota.
type RateLimitedProvider struct {
	Provider
	limiter *rate.Limiter
}

// NewRateLimited wraps p, allowing perSecond calls with the given burst.
func NewRateLimited(p Provider, perSecond float64, burst int) *RateLimitedProvider {
	return &RateLimitedProvider{
		Provider: p,
		limiter:  rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func (r *RateLimitedProvider) Translate(ctx context.Context, text, sourceLocale, targetLocale string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return r.Provider.Translate(ctx, text, sourceLocale, targetLocale)
}

func (r *RateLimitedProvider) DetectLanguage(ctx context.Context, text string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return r.Provider.DetectLanguage(ctx, text)
}
