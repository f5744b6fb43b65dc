// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"testing"
	"time"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("KURASHI_ENV", "production")
	t.Setenv("KURASHI_DEEPL_API_KEY", "test-key")
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ServerAddr() != "localhost:8080" {
		t.Errorf("ServerAddr = %q, want localhost:8080", cfg.ServerAddr())
	}
	if len(cfg.Locales) != 5 {
		t.Errorf("Locales = %v, want 5 locales", cfg.Locales)
	}
	if cfg.DefaultLocale != "en" {
		t.Errorf("DefaultLocale = %q, want en", cfg.DefaultLocale)
	}
	if cfg.Provider != ProviderDeepL {
		t.Errorf("Provider = %q, want deepl", cfg.Provider)
	}
	if cfg.ProviderTimeout() != 10*time.Second {
		t.Errorf("ProviderTimeout = %v, want 10s", cfg.ProviderTimeout())
	}
	if cfg.QueueBudget() != 8*time.Second {
		t.Errorf("QueueBudget = %v, want 8s", cfg.QueueBudget())
	}
	if cfg.IsDevelopment() {
		t.Error("IsDevelopment = true with KURASHI_ENV=production")
	}
}

func TestLoadCustomLocales(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("KURASHI_LOCALES", "ja,en,zh-CN,zh-TW,ko,vi,pt,id")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Locales) != 8 {
		t.Errorf("Locales = %v, want 8 locales", cfg.Locales)
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("KURASHI_TRANSLATE_PROVIDER", "babelfish")

	if _, err := Load(); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestLoadRequiresProviderKeyInProduction(t *testing.T) {
	t.Setenv("KURASHI_ENV", "production")
	t.Setenv("KURASHI_DEEPL_API_KEY", "")

	if _, err := Load(); err == nil {
		t.Error("expected error for missing DeepL key in production")
	}
}

func TestLoadAllowsMissingKeyInDevelopment(t *testing.T) {
	t.Setenv("KURASHI_ENV", "development")
	t.Setenv("KURASHI_DEEPL_API_KEY", "")

	if _, err := Load(); err != nil {
		t.Errorf("Load in development without key: %v", err)
	}
}

func TestLoadWebhookValidation(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("KURASHI_WEBHOOK_URL", "https://example.com/hooks/translate")
	t.Setenv("KURASHI_WEBHOOK_SECRET", "")

	if _, err := Load(); err == nil {
		t.Error("expected error for webhook URL without secret")
	}

	t.Setenv("KURASHI_WEBHOOK_SECRET", "hook-secret")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.WebhooksEnabled() {
		t.Error("WebhooksEnabled = false with URL and secret set")
	}
}

func TestLoadRejectsNonPositiveBatch(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("KURASHI_QUEUE_BATCH_SIZE", "0")

	if _, err := Load(); err == nil {
		t.Error("expected error for zero batch size")
	}
}
