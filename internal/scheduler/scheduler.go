package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// CycleRunner is implemented by the fetch orchestrator.
type CycleRunner interface {
	RunCycle(ctx context.Context) error
}

// Scheduler triggers orchestration cycles: once after a short settle delay at
// startup, then on a fixed interval. Overlap prevention lives in the
// orchestrator, which skips a trigger while a cycle is in flight.
type Scheduler struct {
	runner       CycleRunner
	startupDelay time.Duration
	interval     time.Duration
	logger       *slog.Logger
}

func NewScheduler(runner CycleRunner, startupDelay, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:       runner,
		startupDelay: startupDelay,
		interval:     interval,
		logger:       logger,
	}
}

// Start blocks until ctx is done. The runner receives ctx directly: failed
// country re-attempts outlive individual cycles, and per-request timeouts
// are enforced by the provider HTTP clients.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started",
		"startup_delay", s.startupDelay,
		"interval", s.interval,
	)

	settle := time.NewTimer(s.startupDelay)
	defer settle.Stop()

	select {
	case <-ctx.Done():
		s.logger.Info("scheduler stopped")
		return ctx.Err()
	case <-settle.C:
	}

	s.runCycle(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context) {
	if err := s.runner.RunCycle(ctx); err != nil {
		s.logger.Error("cycle finished with errors", "error", err)
	}
}
