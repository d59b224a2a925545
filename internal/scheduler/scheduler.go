package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"
)

// Scheduler repeats a pipeline run on a cron schedule. Runs never overlap:
// the next tick is computed after the previous run returns.
type Scheduler struct {
	expr  string
	run   func(ctx context.Context)
	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

func New(expr string, run func(ctx context.Context)) (*Scheduler, error) {
	if !gronx.New().IsValid(expr) {
		return nil, fmt.Errorf("invalid cron expression %q", expr)
	}
	return &Scheduler{
		expr:  expr,
		run:   run,
		now:   time.Now,
		after: time.After,
	}, nil
}

// Next returns the first tick strictly after t.
func (s *Scheduler) Next(t time.Time) (time.Time, error) {
	return gronx.NextTickAfter(s.expr, t, false)
}

// Start blocks until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	slog.Info("scheduler started", "schedule", s.expr)

	for {
		next, err := s.Next(s.now())
		if err != nil {
			slog.Error("scheduler next tick failed", "schedule", s.expr, "error", err)
			return
		}
		slog.Info("next run scheduled", "at", next.Format(time.RFC3339))

		select {
		case <-ctx.Done():
			slog.Info("scheduler stopped")
			return
		case <-s.after(time.Until(next)):
			s.run(ctx)
		}
	}
}
