package usecase

import (
	"context"
	"log/slog"
	"time"

	"IntelVault/internal/ports"
)

// Scheduler wires the interval driver with the ingest use case.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	opts     IngestOptions
	logger   *slog.Logger

	// OnRun, when set, observes every finished run.
	OnRun func(RunReport, error)
}

// NewScheduler returns a helper to start/stop recurring ingest runs.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, opts IngestOptions, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{driver: driver, pipeline: pipeline, opts: opts, logger: logger}
}

// Start registers the pipeline with the provided scheduler. Each trigger
// ingests as of the trigger time.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(trigger time.Time) {
		opts := s.opts
		opts.Now = trigger
		report, err := s.pipeline.Ingest(ctx, opts)
		if err != nil {
			s.logger.Error("scheduled ingest failed", "run_id", report.RunID, "error", err)
		}
		if s.OnRun != nil {
			s.OnRun(report, err)
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
