// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Command kurashi runs the listing translation service: a REST API for
// creating listings and requesting translations, a queue processor on a
// cron schedule, and webhook notifications for queue events.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/olegiv/kurashi-go/internal/cache"
	"github.com/olegiv/kurashi-go/internal/config"
	"github.com/olegiv/kurashi-go/internal/detect"
	"github.com/olegiv/kurashi-go/internal/handler"
	"github.com/olegiv/kurashi-go/internal/handler/api"
	"github.com/olegiv/kurashi-go/internal/i18n"
	"github.com/olegiv/kurashi-go/internal/logging"
	"github.com/olegiv/kurashi-go/internal/middleware"
	"github.com/olegiv/kurashi-go/internal/queue"
	"github.com/olegiv/kurashi-go/internal/scheduler"
	"github.com/olegiv/kurashi-go/internal/service"
	"github.com/olegiv/kurashi-go/internal/store"
	"github.com/olegiv/kurashi-go/internal/translate"
	"github.com/olegiv/kurashi-go/internal/util"
	"github.com/olegiv/kurashi-go/internal/version"
	"github.com/olegiv/kurashi-go/internal/webhook"
)

// Build-time version information injected via ldflags.
var (
	appVersion   = ""
	appGitCommit = ""
	appBuildTime = ""
)

// syncRequestTimeout bounds the synchronous translate endpoint, which
// calls the provider once per target locale before responding.
const syncRequestTimeout = 60 * time.Second

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "kurashi - listing translation service\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  KURASHI_DB_PATH              SQLite database path (default: ./data/kurashi.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  KURASHI_SERVER_PORT          Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  KURASHI_LOCALES              Supported locales (default: ja,en,zh-CN,zh-TW,ko)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  KURASHI_TRANSLATE_PROVIDER   deepl or openai (default: deepl)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  KURASHI_DEEPL_API_KEY        DeepL API key\n")
		_, _ = fmt.Fprintf(os.Stderr, "  KURASHI_OPENAI_API_KEY       OpenAI API key\n")
		_, _ = fmt.Fprintf(os.Stderr, "  KURASHI_API_TOKEN            Bearer token for the process endpoint\n")
		_, _ = fmt.Fprintf(os.Stderr, "  KURASHI_WEBHOOK_URL          Endpoint for queue event notifications (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  KURASHI_REDIS_URL            Redis URL for distributed caching (optional)\n")
	}

	flag.Parse()

	info := version.Info{Version: appVersion, GitCommit: appGitCommit, BuildTime: appBuildTime}
	if *showVersion {
		_, _ = fmt.Printf("kurashi %s (commit: %s, built: %s)\n", info.Version, info.GitCommit, info.BuildTime)
		os.Exit(0)
	}

	if err := run(info); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(info version.Info) error {
	// Load .env file if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logLevel := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	locales, err := i18n.New(cfg.Locales, cfg.DefaultLocale)
	if err != nil {
		return fmt.Errorf("configuring locales: %w", err)
	}

	if cfg.WebhooksEnabled() && !cfg.WebhookAllowPrivate {
		if err := util.ValidateWebhookURL(cfg.WebhookURL); err != nil {
			return fmt.Errorf("validating webhook URL: %w", err)
		}
	}

	// Ensure data directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	slog.Info("initializing database", "path", cfg.DBPath)
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	// Mirror WARN+ log records into the events table now that it exists.
	logger = slog.New(logging.NewEventLogHandler(logger.Handler(), db))
	slog.SetDefault(logger)

	queries := store.New(db)
	events := service.NewEventService(db)

	backend := cache.New(cache.Options{
		RedisURL:        cfg.RedisURL,
		Prefix:          cfg.CachePrefix,
		DefaultTTL:      time.Duration(cfg.CacheTTL) * time.Second,
		MaxItems:        cfg.CacheMaxSize,
		CleanupInterval: time.Minute,
	}, logger)
	defer func() { _ = backend.Close() }()
	translations := cache.NewTranslations(backend, time.Duration(cfg.CacheTTL)*time.Second, logger)

	provider, err := buildProvider(cfg)
	if err != nil {
		return err
	}
	slog.Info("translation provider configured", "provider", provider.Name(),
		"rate", cfg.ProviderRate, "burst", cfg.ProviderBurst)
	limited := translate.NewRateLimited(provider, cfg.ProviderRate, cfg.ProviderBurst)

	translator := translate.NewTranslator(queries, limited, translations, cfg.ProviderTimeout(), logger)
	detector := detect.New(locales, limited, logger)

	hooks := webhook.NewDispatcher(webhook.Config{
		URL:               cfg.WebhookURL,
		Secret:            cfg.WebhookSecret,
		AllowPrivateHosts: cfg.WebhookAllowPrivate,
	}, logger)
	hooks.Start()
	defer hooks.Stop()

	enqueuer := queue.NewEnqueuer(queries, detector, locales, translator, events, hooks, logger)
	processor := queue.NewProcessor(queries, translator, events, hooks,
		cfg.QueueBatchSize, cfg.QueueBudget(), logger)

	sched := scheduler.New(processor, logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer sched.Stop()

	if cfg.APIToken == "" && !cfg.IsDevelopment() {
		slog.Warn("KURASHI_API_TOKEN is not set; the process endpoint is disabled")
	}

	r := buildRouter(cfg, db, backend, info, queries, locales, translations, enqueuer, processor, logger)

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      90 * time.Second, // above the sync translate timeout
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env, "version", info.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// buildProvider creates the configured translation provider.
func buildProvider(cfg *config.Config) (translate.Provider, error) {
	switch cfg.Provider {
	case config.ProviderDeepL:
		return translate.NewDeepL(cfg.DeepLAPIURL, cfg.DeepLAPIKey), nil
	case config.ProviderOpenAI:
		return translate.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModel), nil
	default:
		return nil, fmt.Errorf("unknown translation provider %q", cfg.Provider)
	}
}

// buildRouter assembles the HTTP surface: health endpoints at the root,
// the versioned API underneath /api/v1.
func buildRouter(cfg *config.Config, db *sql.DB, backend cache.Cache, info version.Info,
	queries *store.Queries, locales i18n.Locales, translations *cache.Translations,
	enqueuer *queue.Enqueuer, processor *queue.Processor, logger *slog.Logger) *chi.Mux {

	healthHandler := handler.NewHealthHandler(db, backend, info)
	apiHandler := api.NewHandler(queries, locales, translations, enqueuer, processor, logger)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	r.Get("/health", healthHandler.Health)
	r.Get("/health/live", healthHandler.Liveness)
	r.Get("/health/ready", healthHandler.Readiness)

	r.Route("/api/v1", func(r chi.Router) {
		apiRateLimiter := middleware.NewGlobalRateLimiter(100, 200)
		r.Use(apiRateLimiter.Middleware())

		r.Get("/status", apiHandler.Status)

		r.Post("/listings", apiHandler.CreateListing)
		r.Get("/listings/{id}", apiHandler.GetListing)
		r.Get("/listings/{id}/translations", apiHandler.ListTranslations)

		// The synchronous path holds the request open for one provider
		// call per target locale.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(syncRequestTimeout))
			r.Post("/listings/{id}/translate", apiHandler.TranslateSync)
		})

		r.Post("/listings/{id}/translate/queue", apiHandler.EnqueueTranslation)
		r.Get("/translate/queue", apiHandler.QueueStatus)

		// Draining the queue on demand is for operators and trusted
		// schedulers only.
		r.Group(func(r chi.Router) {
			r.Use(middleware.BearerAuth(cfg.APIToken))
			r.Post("/translate/process", apiHandler.ProcessQueue)
		})
	})

	return r
}
