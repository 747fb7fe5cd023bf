package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"post_drafter/internal/domain"
)

// Runner is one pipeline invocation.
type Runner interface {
	Run(ctx context.Context, opts domain.RunOptions) (*domain.RunStats, error)
}

// Scheduler re-invokes the pipeline on a fixed interval so outstanding jobs
// are polled and new ones submitted without an external cron.
type Scheduler struct {
	runner     Runner
	opts       domain.RunOptions
	interval   time.Duration
	runTimeout time.Duration
	logger     *slog.Logger
}

func NewScheduler(runner Runner, opts domain.RunOptions, interval, runTimeout time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:     runner,
		opts:       opts,
		interval:   interval,
		runTimeout: runTimeout,
		logger:     logger,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)

	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	stats, err := s.runner.Run(runCtx, s.opts)
	switch {
	case err == nil:
		s.logger.Debug("scheduled run finished", "outcome", stats.Outcome)
	case errors.Is(err, domain.ErrTransient):
		s.logger.Warn("run failed, will retry next tick", "error", err)
	default:
		s.logger.Error("run failed", "error", err)
	}
}
