package usecase

import (
	"context"
	"time"

	"tensionmonitor/internal/ports"
)

// Scheduler binds the interval driver to the ingestion cycle.
type Scheduler struct {
	driver ports.Scheduler
	cycle  *Cycle
}

// NewScheduler returns a helper to start/stop the recurring cycle.
func NewScheduler(driver ports.Scheduler, cycle *Cycle) *Scheduler {
	return &Scheduler{driver: driver, cycle: cycle}
}

// Start registers the cycle with the driver. Errors inside a run are handled
// by the cycle itself; a tick never fails the scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.cycle == nil {
		return nil
	}

	job := func(time.Time) {
		_ = s.cycle.Run(ctx)
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying driver.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
