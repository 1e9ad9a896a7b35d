package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/yourorg/cadvault/internal/reliability/retry"
	"github.com/yourorg/cadvault/internal/service"
)

// ReconcileWorker periodically runs the directory reconciler so folder
// records converge on the resource directory even when no request touches
// the user listing for a while.
type ReconcileWorker struct {
	reconciler *service.Reconciler
	logger     *slog.Logger
	interval   time.Duration
	retryCfg   *retry.Config
}

// NewReconcileWorker creates a new reconcile worker
func NewReconcileWorker(
	reconciler *service.Reconciler,
	logger *slog.Logger,
	interval time.Duration,
) *ReconcileWorker {
	return &ReconcileWorker{
		reconciler: reconciler,
		logger:     logger,
		interval:   interval,
		retryCfg:   retry.DefaultConfig(),
	}
}

// Start begins the reconcile loop. One pass runs immediately so a fresh
// deployment picks up pre-existing directories without waiting a full
// interval.
func (w *ReconcileWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("reconcile worker started", slog.Duration("interval", w.interval))

	w.run(ctx)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("reconcile worker stopped")
			return
		case <-ticker.C:
			w.run(ctx)
		}
	}
}

func (w *ReconcileWorker) run(ctx context.Context) {
	// Transient database or filesystem errors should not cost a whole
	// interval, so each pass retries with backoff before giving up.
	_, err := retry.Do(ctx, w.retryCfg, w.logger, "reconcile", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, w.reconciler.Reconcile(ctx, "worker")
	})
	if err != nil && ctx.Err() == nil {
		w.logger.Error("reconcile pass failed",
			slog.String("error", err.Error()),
		)
	}
}
