package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/hyperengineering/standup/internal/dates"
)

// PlanLocker defines the lifecycle operations needed by the lock worker.
type PlanLocker interface {
	Today() dates.Date
	LockStalePlans(ctx context.Context, today dates.Date) (int, error)
}

// PlanLockWorker periodically locks plans that have aged past the edit window.
type PlanLockWorker struct {
	locker   PlanLocker
	interval time.Duration
}

// NewPlanLockWorker creates a worker with the given locker and interval.
func NewPlanLockWorker(locker PlanLocker, interval time.Duration) *PlanLockWorker {
	return &PlanLockWorker{
		locker:   locker,
		interval: interval,
	}
}

// Run starts the worker loop. Locks once on start, then on each interval.
// Blocks until ctx is cancelled.
func (w *PlanLockWorker) Run(ctx context.Context) {
	slog.Info("worker started",
		"component", "worker",
		"worker", "plan-lock",
		"interval", w.interval.String(),
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.runLock(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped",
				"component", "worker",
				"worker", "plan-lock",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			w.runLock(ctx)
		}
	}
}

// runLock executes a single lock cycle.
func (w *PlanLockWorker) runLock(ctx context.Context) {
	start := time.Now()
	today := w.locker.Today()

	slog.Debug("lock cycle started",
		"component", "worker",
		"action", "lock_start",
		"today", today.String(),
	)

	locked, err := w.locker.LockStalePlans(ctx, today)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Error("plan lock failed",
			"component", "worker",
			"action", "lock_failed",
			"error", err,
		)
		return
	}

	slog.Info("lock cycle completed",
		"component", "worker",
		"action", "lock_complete",
		"locked", locked,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
