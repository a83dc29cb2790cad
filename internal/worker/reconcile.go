package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/arcade-score-engine/internal/config"
)

// Store is the database surface the reconciler needs
type Store interface {
	RecomputeUserTotals(ctx context.Context) (int64, error)
	GetAllUserTotals(ctx context.Context) (map[string]int64, map[string]string, error)
}

// Cache is the ranking cache the reconciler rebuilds
type Cache interface {
	Rebuild(ctx context.Context, totals map[string]int64, usernames map[string]string) error
}

// ReconcileWorker periodically repairs aggregate drift: it recomputes
// user totals from the play_results ledger (the source of truth) and
// rebuilds the Redis ranking cache from the repaired totals. This is
// what makes partial submission failures self-healing.
type ReconcileWorker struct {
	store   Store
	cache   Cache
	config  *config.ReconcileConfig
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewReconcileWorker creates a new reconcile worker
func NewReconcileWorker(
	store Store,
	cache Cache,
	cfg *config.ReconcileConfig,
	logger *slog.Logger,
) *ReconcileWorker {
	return &ReconcileWorker{
		store:  store,
		cache:  cache,
		config: cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the background reconciliation process
func (w *ReconcileWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("reconcile worker started", "interval", w.config.Interval)

	go w.run(ctx)
	return nil
}

// Stop stops the background reconciliation process
func (w *ReconcileWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("reconcile worker stopped")
	return nil
}

// run is the main worker loop
func (w *ReconcileWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.reconcile(ctx)
		}
	}
}

// reconcile runs one repair cycle
func (w *ReconcileWorker) reconcile(ctx context.Context) {
	w.logger.Info("starting reconcile cycle")
	startTime := time.Now()

	// Repair: set every drifted total to the ledger sum
	repaired, err := w.store.RecomputeUserTotals(ctx)
	if err != nil {
		w.logger.Error("failed to recompute user totals", "error", err)
		return
	}

	// Rebuild the ranking cache from the repaired totals
	if w.cache != nil {
		totals, usernames, err := w.store.GetAllUserTotals(ctx)
		if err != nil {
			w.logger.Error("failed to load user totals for cache rebuild", "error", err)
			return
		}
		if err := w.cache.Rebuild(ctx, totals, usernames); err != nil {
			w.logger.Error("failed to rebuild ranking cache", "error", err)
			return
		}
	}

	w.logger.Info("reconcile cycle completed",
		"duration", time.Since(startTime),
		"repaired_users", repaired,
	)
}

// IsRunning returns whether the worker is currently running
func (w *ReconcileWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// RunOnce runs a single reconcile cycle (useful at startup and for
// manual triggers)
func (w *ReconcileWorker) RunOnce(ctx context.Context) {
	w.reconcile(ctx)
}
