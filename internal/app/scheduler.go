/**
 * @description
 * Cron scheduler setup for the hawl evaluation job.
 */
package app

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
	"github.com/zakatech/zakat-service/internal/config"
)

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron    *cron.Cron
	tracker *Tracker
	logger  *slog.Logger
	config  config.Config
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(tracker *Tracker, logger *slog.Logger, cfg config.Config) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:    c,
		tracker: tracker,
		logger:  logger,
		config:  cfg,
	}
}

// Start registers the jobs and starts the cron scheduler.
func (s *Scheduler) Start() {
	if _, err := s.cron.AddFunc(s.config.HawlEvaluationSchedule, s.tracker.RunEvaluation); err != nil {
		s.logger.Error("failed to schedule hawl evaluation job", "error", err)
	} else {
		s.logger.Info("scheduled hawl evaluation job", "schedule", s.config.HawlEvaluationSchedule)
	}

	s.cron.Start()
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
