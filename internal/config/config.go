// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Translation provider identifiers
const (
	ProviderDeepL  = "deepl"
	ProviderOpenAI = "openai"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath     string `env:"KURASHI_DB_PATH" envDefault:"./data/kurashi.db"`
	ServerHost string `env:"KURASHI_SERVER_HOST" envDefault:"localhost"`
	ServerPort int    `env:"KURASHI_SERVER_PORT" envDefault:"8080"`
	Env        string `env:"KURASHI_ENV" envDefault:"development"`
	LogLevel   string `env:"KURASHI_LOG_LEVEL" envDefault:"info"`

	// APIToken protects the mutating API endpoints (enqueue, process). Empty
	// disables the check, which is only acceptable in development.
	APIToken string `env:"KURASHI_API_TOKEN"`

	// Locale configuration. Locales is the full supported set; translations
	// for a listing target every supported locale except its source.
	Locales       []string `env:"KURASHI_LOCALES" envSeparator:"," envDefault:"ja,en,zh-CN,zh-TW,ko"`
	DefaultLocale string   `env:"KURASHI_DEFAULT_LOCALE" envDefault:"en"`

	// Translation provider configuration
	Provider          string  `env:"KURASHI_TRANSLATE_PROVIDER" envDefault:"deepl"`
	DeepLAPIKey       string  `env:"KURASHI_DEEPL_API_KEY"`
	DeepLAPIURL       string  `env:"KURASHI_DEEPL_API_URL" envDefault:"https://api-free.deepl.com"`
	OpenAIAPIKey      string  `env:"KURASHI_OPENAI_API_KEY"`
	OpenAIModel       string  `env:"KURASHI_OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	ProviderTimeoutMs int     `env:"KURASHI_PROVIDER_TIMEOUT_MS" envDefault:"10000"` // hard per-call timeout
	ProviderRate      float64 `env:"KURASHI_PROVIDER_RATE" envDefault:"10"`          // provider calls per second
	ProviderBurst     int     `env:"KURASHI_PROVIDER_BURST" envDefault:"20"`

	// Queue processor configuration
	QueueBatchSize int `env:"KURASHI_QUEUE_BATCH_SIZE" envDefault:"10"`
	QueueBudgetMs  int `env:"KURASHI_QUEUE_BUDGET_MS" envDefault:"8000"` // soft per-run budget

	// Webhook configuration. When WebhookURL is set, queue events
	// (translation.queued/completed/failed) are delivered there signed with
	// WebhookSecret.
	WebhookURL    string `env:"KURASHI_WEBHOOK_URL"`
	WebhookSecret string `env:"KURASHI_WEBHOOK_SECRET"`
	// WebhookAllowPrivate permits webhook endpoints on localhost or
	// private networks. Only for local development.
	WebhookAllowPrivate bool `env:"KURASHI_WEBHOOK_ALLOW_PRIVATE"`

	// Cache configuration
	RedisURL     string `env:"KURASHI_REDIS_URL"` // optional Redis URL for distributed caching
	CachePrefix  string `env:"KURASHI_CACHE_PREFIX" envDefault:"kurashi:"`
	CacheTTL     int    `env:"KURASHI_CACHE_TTL" envDefault:"300"` // seconds
	CacheMaxSize int    `env:"KURASHI_CACHE_MAX_SIZE" envDefault:"10000"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedisCache returns true if Redis caching is configured.
func (c Config) UseRedisCache() bool {
	return c.RedisURL != ""
}

// WebhooksEnabled returns true if queue-event webhooks are configured.
func (c Config) WebhooksEnabled() bool {
	return c.WebhookURL != ""
}

// ProviderTimeout returns the hard per-provider-call timeout.
func (c Config) ProviderTimeout() time.Duration {
	return time.Duration(c.ProviderTimeoutMs) * time.Millisecond
}

// QueueBudget returns the soft wall-clock budget for one processor run.
func (c Config) QueueBudget() time.Duration {
	return time.Duration(c.QueueBudgetMs) * time.Millisecond
}

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if len(cfg.Locales) == 0 {
		return nil, fmt.Errorf("KURASHI_LOCALES must list at least one locale")
	}

	switch cfg.Provider {
	case ProviderDeepL:
		if cfg.DeepLAPIKey == "" && !cfg.IsDevelopment() {
			return nil, fmt.Errorf("KURASHI_DEEPL_API_KEY is required when KURASHI_TRANSLATE_PROVIDER=deepl")
		}
	case ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" && !cfg.IsDevelopment() {
			return nil, fmt.Errorf("KURASHI_OPENAI_API_KEY is required when KURASHI_TRANSLATE_PROVIDER=openai")
		}
	default:
		return nil, fmt.Errorf("unknown translation provider %q (want %q or %q)",
			cfg.Provider, ProviderDeepL, ProviderOpenAI)
	}

	if cfg.QueueBatchSize <= 0 {
		return nil, fmt.Errorf("KURASHI_QUEUE_BATCH_SIZE must be positive, got %d", cfg.QueueBatchSize)
	}
	if cfg.QueueBudgetMs <= 0 {
		return nil, fmt.Errorf("KURASHI_QUEUE_BUDGET_MS must be positive, got %d", cfg.QueueBudgetMs)
	}
	if cfg.WebhookURL != "" && cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("KURASHI_WEBHOOK_SECRET is required when KURASHI_WEBHOOK_URL is set")
	}

	return cfg, nil
}
