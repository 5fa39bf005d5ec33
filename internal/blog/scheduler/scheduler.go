// Package scheduler publishes scheduled posts once their time has come.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"quill/internal/platform/worker"
)

// Publisher publishes every due post and reports how many it published.
type Publisher interface {
	PublishDue(ctx context.Context) (int, error)
}

// New returns the worker that calls PublishDue every interval.
func New(publisher Publisher, interval time.Duration, logger *slog.Logger) *worker.Periodic {
	if logger == nil {
		logger = slog.Default()
	}
	return &worker.Periodic{
		Name:       "post_scheduler",
		Interval:   interval,
		RunOnStart: true,
		Logger:     logger,
		Task: func(ctx context.Context) error {
			n, err := publisher.PublishDue(ctx)
			if n > 0 {
				logger.InfoContext(ctx, "published scheduled posts", "count", n)
			}
			return err
		},
	}
}
