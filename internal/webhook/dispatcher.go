// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/olegiv/kurashi-go/internal/util"
)

// Delivery configuration constants
const (
	MaxAttempts     = 3
	InitialBackoff  = 2 * time.Second
	RequestTimeout  = 10 * time.Second
	SignatureHeader = "X-Kurashi-Signature"
	userAgent       = "kurashi/1.0"
)

// Dispatcher posts events to one configured endpoint from a pool of worker
// goroutines. The send queue is bounded; when the endpoint is slow enough
// to fill it, further events are dropped with a warning rather than
// backing up the translation pipeline.
type Dispatcher struct {
	url        string
	secret     string
	log        *slog.Logger
	httpClient *http.Client
	queue      chan *Event
	workers    int
	wg         sync.WaitGroup
	done       chan struct{}
	mu         sync.Mutex
	running    bool
}

// Config holds dispatcher configuration.
type Config struct {
	URL     string // empty disables dispatching entirely
	Secret  string
	Workers int

	// AllowPrivateHosts disables the private-address dial guard so the
	// endpoint may live on localhost. Meant for local development.
	AllowPrivateHosts bool
}

// NewDispatcher creates a dispatcher. With an empty URL it still accepts
// Dispatch calls and drops them, so callers need no enabled-check.
func NewDispatcher(cfg Config, log *slog.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	client := &http.Client{Timeout: RequestTimeout}
	if !cfg.AllowPrivateHosts {
		client.Transport = &http.Transport{
			DialContext: util.SSRFSafeDialContext(&net.Dialer{Timeout: RequestTimeout}),
		}
	}
	return &Dispatcher{
		url:        cfg.URL,
		secret:     cfg.Secret,
		log:        log,
		httpClient: client,
		queue:      make(chan *Event, 100),
		workers:    cfg.Workers,
		done:       make(chan struct{}),
	}
}

// Enabled reports whether an endpoint is configured.
func (d *Dispatcher) Enabled() bool { return d.url != "" }

// Start launches the delivery workers.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running || !d.Enabled() {
		return
	}
	d.running = true
	d.log.Info("starting webhook dispatcher", "workers", d.workers)
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

// Stop drains the workers. Queued events that have not started delivery
// are dropped.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.mu.Unlock()

	close(d.done)
	d.wg.Wait()
	d.log.Info("webhook dispatcher stopped")
}

// Dispatch queues an event for delivery. Never blocks and never returns an
// error: webhook trouble is an observability problem, not a pipeline one.
func (d *Dispatcher) Dispatch(event *Event) {
	if !d.Enabled() {
		return
	}
	d.mu.Lock()
	running := d.running
	d.mu.Unlock()
	if !running {
		d.log.Warn("webhook dispatcher not running, event dropped", "event_type", event.Type)
		return
	}
	select {
	case d.queue <- event:
	default:
		d.log.Warn("webhook queue full, event dropped", "event_type", event.Type)
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case <-d.done:
			return
		case event := <-d.queue:
			d.deliver(event)
		}
	}
}

// deliver posts the event, retrying transient failures with exponential
// backoff. Final failure is logged and forgotten.
func (d *Dispatcher) deliver(event *Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		d.log.Error("failed to marshal webhook payload", "event_type", event.Type, "error", err)
		return
	}

	backoff := InitialBackoff
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		status, err := d.post(payload)
		if err == nil && status >= 200 && status < 300 {
			d.log.Debug("webhook delivered", "event_type", event.Type, "status", status, "attempt", attempt)
			return
		}

		retryable := err != nil || status == http.StatusTooManyRequests || status >= 500
		if !retryable || attempt == MaxAttempts {
			d.log.Warn("webhook delivery failed",
				"event_type", event.Type, "status", status, "attempts", attempt, "error", err)
			return
		}

		select {
		case <-d.done:
			return
		case <-time.After(backoff):
			backoff *= 2
		}
	}
}

func (d *Dispatcher) post(payload []byte) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if d.secret != "" {
		req.Header.Set(SignatureHeader, GenerateSignature(payload, d.secret))
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// GenerateSignature computes the hex HMAC-SHA256 of payload.
func GenerateSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a signature produced by GenerateSignature.
// Receivers use this to authenticate deliveries.
func VerifySignature(payload []byte, signature, secret string) bool {
	expected := GenerateSignature(payload, secret)
	return hmac.Equal([]byte(signature), []byte(expected))
}
