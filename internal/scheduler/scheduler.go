// Package scheduler triggers crawl cycles on a fixed interval.
package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"tfgsapi/internal/crawl"
)

// Runner is the subset of the orchestrator the scheduler needs.
type Runner interface {
	RunCycle(ctx context.Context) (crawl.Summary, error)
}

// Scheduler invokes one crawl cycle per interval, starting immediately.
// Serialization is the orchestrator's job: a tick that lands while a cycle
// is still running is simply dropped.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	logger   *zap.Logger
}

// New builds a Scheduler.
func New(runner Runner, interval time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{runner: runner, interval: interval, logger: logger}
}

// Run blocks, triggering cycles until the context finishes.
func (s *Scheduler) Run(ctx context.Context) {
	s.trigger(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.trigger(ctx)
		}
	}
}

func (s *Scheduler) trigger(ctx context.Context) {
	s.logger.Info("scheduled crawl triggered")
	if _, err := s.runner.RunCycle(ctx); err != nil {
		if errors.Is(err, crawl.ErrCycleRunning) {
			s.logger.Warn("scheduled crawl skipped, cycle still running")
			return
		}
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("scheduled crawl failed", zap.Error(err))
	}
}
