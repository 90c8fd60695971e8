package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/hyperengineering/standup/internal/snapshot"
)

// SnapshotStore defines the store operations needed by the snapshot worker.
type SnapshotStore interface {
	GenerateSnapshot(ctx context.Context, path string) error
}

// SnapshotGenerationWorker writes periodic database backups to a local path
// and, when an uploader is configured, ships them to object storage.
type SnapshotGenerationWorker struct {
	store    SnapshotStore
	uploader snapshot.Uploader
	path     string
	interval time.Duration
}

// NewSnapshotGenerationWorker creates a worker that backs store up to path.
// The uploader is optional; if nil, backups stay local.
func NewSnapshotGenerationWorker(store SnapshotStore, path string, interval time.Duration, uploader snapshot.Uploader) *SnapshotGenerationWorker {
	return &SnapshotGenerationWorker{
		store:    store,
		uploader: uploader,
		path:     path,
		interval: interval,
	}
}

// Run starts the worker loop. Generates a snapshot immediately on start,
// then on each interval. Respects context cancellation for graceful shutdown.
func (w *SnapshotGenerationWorker) Run(ctx context.Context) {
	slog.Info("worker started",
		"component", "worker",
		"worker", "snapshot-generation",
		"interval", w.interval.String(),
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.generateSnapshot(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped",
				"component", "worker",
				"worker", "snapshot-generation",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			w.generateSnapshot(ctx)
		}
	}
}

// generateSnapshot writes one backup and uploads it. Failures are logged.
func (w *SnapshotGenerationWorker) generateSnapshot(ctx context.Context) {
	start := time.Now()
	slog.Info("snapshot generation started",
		"component", "worker",
		"action", "snapshot_start",
	)

	if err := w.store.GenerateSnapshot(ctx, w.path); err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Warn("snapshot generation failed",
			"component", "worker",
			"action", "snapshot_failed",
			"error", err,
		)
		return
	}

	if w.uploader != nil {
		for _, name := range []string{snapshot.CurrentName, snapshot.DatedName(start)} {
			if err := w.uploader.Upload(ctx, name, w.path); err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Warn("snapshot upload failed",
					"component", "worker",
					"action", "snapshot_upload_failed",
					"object", name,
					"error", err,
				)
				return
			}
		}

		if removed, err := w.uploader.Prune(ctx); err != nil {
			slog.Warn("snapshot prune failed",
				"component", "worker",
				"action", "snapshot_prune_failed",
				"error", err,
			)
		} else if removed > 0 {
			slog.Info("snapshot archives pruned",
				"component", "worker",
				"action", "snapshot_pruned",
				"removed", removed,
			)
		}
	}

	slog.Info("snapshot generation completed",
		"component", "worker",
		"action", "snapshot_complete",
		"path", w.path,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
