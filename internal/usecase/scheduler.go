package usecase

import (
	"context"
	"log/slog"

	"CivicScanner/internal/logging"
	"CivicScanner/internal/ports"
)

// Scheduler wires the cron driver with the pipeline use case.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	notifier ports.Notifier
	seeds    func() []string
	logger   *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring runs over seeds().
// notifier may be nil.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, notifier ports.Notifier, seeds func() []string, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Scheduler{driver: driver, pipeline: pipeline, notifier: notifier, seeds: seeds, logger: logger}
}

// Start registers the run job with the driver.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}
	return s.driver.Start(ctx, s.RunOnce)
}

// RunOnce executes one scheduled run and publishes the digest.
func (s *Scheduler) RunOnce(ctx context.Context) {
	var seeds []string
	if s.seeds != nil {
		seeds = s.seeds()
	}

	results := s.pipeline.Run(ctx, RunRequest{Seeds: seeds})
	report := BuildReport(results)
	s.logger.Info("scheduled run finished", "succeeded", report.Succeeded, "failed", report.Failed)

	if s.notifier == nil || report.Succeeded == 0 {
		return
	}
	if err := s.notifier.PublishDigest(ctx, BuildDigestMessage(results)); err != nil {
		s.logger.Warn("digest not delivered", "error", err)
	}
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Stop(ctx)
}
