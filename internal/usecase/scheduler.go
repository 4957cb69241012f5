package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"CampaignCompliance/internal/ports"
)

// Scheduler wires the ticker driver with the stale-run sweeper.
type Scheduler struct {
	driver  ports.Scheduler
	sweeper *Sweeper
	logger  *zap.Logger
}

// NewScheduler returns a helper to start/stop the recurring sweep.
func NewScheduler(driver ports.Scheduler, sweeper *Sweeper, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{driver: driver, sweeper: sweeper, logger: logger}
}

// Start registers the sweep with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.sweeper == nil {
		return nil
	}

	job := func(trigger time.Time) {
		if _, err := s.sweeper.Sweep(ctx, trigger); err != nil {
			s.logger.Error("sweep stale analyses", zap.Error(err))
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
