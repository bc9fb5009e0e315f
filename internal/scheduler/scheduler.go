/**
 * @description
 * Cron scheduler for the background jobs: the expiry sweep that releases
 * overdue holds, and the periodic reconciliation pass over the payment
 * provider's ledger.
 */
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/rifaops/ticket-service/internal/app"
	"github.com/robfig/cron/v3"
)

// Config holds the schedules and reconciliation window for the background jobs.
type Config struct {
	SweepSchedule          string
	ReconcileSchedule      string
	ReconcileWindowMinutes int
}

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron    *cron.Cron
	service *app.Service
	logger  *slog.Logger
	config  Config
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(service *app.Service, logger *slog.Logger, cfg Config) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:    c,
		service: service,
		logger:  logger,
		config:  cfg,
	}
}

// Start registers the jobs and starts the cron scheduler.
func (s *Scheduler) Start() {
	if _, err := s.cron.AddFunc(s.config.SweepSchedule, s.runExpirySweep); err != nil {
		s.logger.Error("failed to schedule expiry sweep job", "error", err)
	} else {
		s.logger.Info("scheduled expiry sweep job", "schedule", s.config.SweepSchedule)
	}

	if _, err := s.cron.AddFunc(s.config.ReconcileSchedule, s.runReconciliation); err != nil {
		s.logger.Error("failed to schedule reconciliation job", "error", err)
	} else {
		s.logger.Info("scheduled reconciliation job", "schedule", s.config.ReconcileSchedule)
	}

	s.cron.Start()
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) runExpirySweep() {
	ctx := context.Background()

	swept, err := s.service.SweepExpiredClaims(ctx)
	if err != nil {
		s.logger.Error("expiry sweep failed", "error", err)
		return
	}
	if swept > 0 {
		s.logger.Info("expiry sweep released holds", "swept", swept)
	}
}

func (s *Scheduler) runReconciliation() {
	ctx := context.Background()

	window := time.Duration(s.config.ReconcileWindowMinutes) * time.Minute
	if window <= 0 {
		window = 24 * time.Hour
	}
	to := time.Now().UTC()
	from := to.Add(-window)

	report, err := s.service.Reconcile(ctx, from, to)
	if err != nil {
		s.logger.Error("reconciliation pass failed", "error", err)
		return
	}
	s.logger.Info("reconciliation pass finished",
		"processed", report.Processed,
		"ok", report.OK,
		"confirmed", report.Confirmed,
		"orphans", report.Orphans,
		"late_payments", report.LatePayments,
		"new_findings", report.NewFindings,
		"repaired", report.Repaired,
	)
}
