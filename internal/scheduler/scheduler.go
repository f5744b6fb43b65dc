// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler drives the queue processor from a cron timer, so queued
// translations drain without any external trigger.
package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/robfig/cron/v3"

	"github.com/olegiv/kurashi-go/internal/queue"
)

// processSpec runs the queue every minute. Each run is bounded by the
// processor's batch size and time budget, so a minute is always enough.
const processSpec = "* * * * *"

// Scheduler runs the queue processor on a fixed schedule.
type Scheduler struct {
	cron      *cron.Cron
	processor *queue.Processor
	log       *slog.Logger
	running   atomic.Bool
}

// New creates a scheduler around the given processor.
func New(processor *queue.Processor, log *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:      cron.New(),
		processor: processor,
		log:       log,
	}
}

// Start registers the processing job and starts the timer.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(processSpec, s.runOnce)
	if err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info("scheduler started", "jobs", len(s.cron.Entries()))
	return nil
}

// Stop stops the timer and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

// runOnce executes one processor run, skipping the tick when the previous
// run is somehow still going.
func (s *Scheduler) runOnce() {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn("queue run still in progress, skipping tick")
		return
	}
	defer s.running.Store(false)

	result, err := s.processor.ProcessQueue(context.Background())
	if err != nil {
		s.log.Error("scheduled queue run failed", "error", err)
		return
	}
	if result.Processed > 0 || len(result.Errors) > 0 {
		s.log.Info("scheduled queue run",
			"processed", result.Processed,
			"remaining", result.Remaining,
			"errors", len(result.Errors))
	}
}
