// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package handler provides HTTP handlers that sit outside the versioned
// API surface, currently the health endpoints.
package handler

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/olegiv/kurashi-go/internal/cache"
	"github.com/olegiv/kurashi-go/internal/version"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	db        *sql.DB
	cache     cache.Cache
	info      version.Info
	startTime time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(db *sql.DB, c cache.Cache, info version.Info) *HealthHandler {
	return &HealthHandler{
		db:        db,
		cache:     c,
		info:      info,
		startTime: time.Now(),
	}
}

// HealthStatus is the full health response.
type HealthStatus struct {
	Status    string           `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
	Uptime    string           `json:"uptime"`
	Version   string           `json:"version"`
	Checks    map[string]Check `json:"checks"`
}

// Check represents a single health check result.
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Health handles GET /health requests.
func (h *HealthHandler) Health(w http.ResponseWriter, _ *http.Request) {
	dbCheck := h.checkDatabase()
	cacheCheck := h.checkCache()

	overallStatus := "healthy"
	if dbCheck.Status != "healthy" {
		overallStatus = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	if overallStatus != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	_ = json.NewEncoder(w).Encode(HealthStatus{
		Status:    overallStatus,
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Version:   h.info.String(),
		Checks: map[string]Check{
			"database": dbCheck,
			"cache":    cacheCheck,
		},
	})
}

// Liveness handles GET /health/live - simple liveness check.
func (h *HealthHandler) Liveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
}

// Readiness handles GET /health/ready - checks readiness to accept traffic.
func (h *HealthHandler) Readiness(w http.ResponseWriter, _ *http.Request) {
	dbCheck := h.checkDatabase()

	w.Header().Set("Content-Type", "application/json")
	if dbCheck.Status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "not ready",
			"checks": map[string]Check{"database": dbCheck},
		})
		return
	}
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

// checkDatabase verifies database connectivity.
func (h *HealthHandler) checkDatabase() Check {
	start := time.Now()
	if err := h.db.Ping(); err != nil {
		return Check{
			Status:  "unhealthy",
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}

	var n int
	if err := h.db.QueryRow("SELECT 1").Scan(&n); err != nil {
		return Check{
			Status:  "unhealthy",
			Message: fmt.Sprintf("database query failed: %v", err),
		}
	}

	return Check{
		Status:  "healthy",
		Latency: time.Since(start).Round(time.Microsecond).String(),
	}
}

// checkCache reports cache statistics when the backend exposes them.
// The cache is best-effort, so a missing or opaque backend never
// degrades overall health.
func (h *HealthHandler) checkCache() Check {
	sp, ok := h.cache.(cache.StatsProvider)
	if !ok {
		return Check{Status: "healthy", Message: "stats not available"}
	}
	stats := sp.Stats()
	return Check{
		Status:  "healthy",
		Message: fmt.Sprintf("items=%d hit_rate=%.1f%%", stats.Items, stats.HitRate),
	}
}
