// Package worker runs background jobs on a fixed interval.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Task is one run of a periodic job.
type Task func(ctx context.Context) error

// Periodic runs Task every Interval until the context passed to Run is
// cancelled. A failed run is logged and the loop keeps going.
type Periodic struct {
	Name       string
	Interval   time.Duration
	Task       Task
	Logger     *slog.Logger
	RunOnStart bool
}

// Run blocks until ctx is done. Cancellation is a clean stop and returns nil.
func (p *Periodic) Run(ctx context.Context) error {
	if p.Task == nil {
		return errors.New("worker task is required")
	}
	if p.Interval <= 0 {
		return errors.New("worker interval must be positive")
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("worker", p.Name)

	if p.RunOnStart {
		p.runOnce(ctx, logger)
	}

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	logger.InfoContext(ctx, "worker started", "interval", p.Interval.String())
	for {
		select {
		case <-ticker.C:
			p.runOnce(ctx, logger)
		case <-ctx.Done():
			logger.InfoContext(context.WithoutCancel(ctx), "worker stopped")
			return nil
		}
	}
}

func (p *Periodic) runOnce(ctx context.Context, logger *slog.Logger) {
	if ctx.Err() != nil {
		return
	}
	if err := p.Task(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.ErrorContext(ctx, "worker run failed", "error", err)
	}
}
