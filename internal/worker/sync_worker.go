package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hyperengineering/onboard/internal/types"
	"github.com/hyperengineering/onboard/pkg/childsync"
)

// ErrUnsettled is returned by RunUntilSettled when rows are still pending
// after the last allowed pass.
var ErrUnsettled = errors.New("rows still pending")

// Syncer is the session surface the sync worker drives.
// Implemented by onboarding.Session.
type Syncer interface {
	NeedsSync() bool
	SyncAll(ctx context.Context) (map[types.Category]childsync.SyncStats, error)
}

// SyncWorker re-attempts pending rows of one form session on an interval.
type SyncWorker struct {
	syncer   Syncer
	interval time.Duration
	logger   *slog.Logger

	// failedPasses counts consecutive passes that left failures behind.
	failedPasses int
}

// NewSyncWorker creates a sync worker. A nil logger uses slog.Default().
func NewSyncWorker(s Syncer, interval time.Duration, logger *slog.Logger) *SyncWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncWorker{
		syncer:   s,
		interval: interval,
		logger:   logger,
	}
}

// Run starts the worker loop. Blocks until ctx is cancelled.
func (w *SyncWorker) Run(ctx context.Context) {
	w.logger.Info("sync worker started",
		"component", "worker",
		"worker", "sync-worker",
		"interval", w.interval.String(),
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Process immediately on start, then on each tick
	w.processPending(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("sync worker stopped",
				"component", "worker",
				"worker", "sync-worker",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			w.processPending(ctx)
		}
	}
}

// RunUntilSettled runs passes every interval until nothing is pending or
// maxPasses passes have run. It returns ErrUnsettled, joined with the last
// pass error, when rows remain.
func (w *SyncWorker) RunUntilSettled(ctx context.Context, maxPasses int) error {
	var lastErr error
	for pass := 0; pass < maxPasses; pass++ {
		if !w.syncer.NeedsSync() {
			return nil
		}
		if pass > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.interval):
			}
		}
		_, lastErr = w.processPending(ctx)
	}
	if !w.syncer.NeedsSync() {
		return nil
	}
	return fmt.Errorf("after %d passes: %w", maxPasses, errors.Join(ErrUnsettled, lastErr))
}

// processPending runs one pass if the session has anything to do.
// Returns: whether a pass ran, the pass error.
func (w *SyncWorker) processPending(ctx context.Context) (bool, error) {
	if ctx.Err() != nil || !w.syncer.NeedsSync() {
		return false, nil
	}

	stats, err := w.syncer.SyncAll(ctx)

	var total childsync.SyncStats
	for _, s := range stats {
		total.Add(s)
	}

	if err != nil {
		w.failedPasses++
		w.logger.Warn("sync pass left rows pending, will retry",
			"component", "worker",
			"worker", "sync-worker",
			"created", total.Created,
			"failed", total.Failed,
			"consecutive_failures", w.failedPasses,
			"error", err,
		)
		return true, err
	}

	w.failedPasses = 0
	if total.Created > 0 {
		w.logger.Info("pending rows synced",
			"component", "worker",
			"worker", "sync-worker",
			"action", "sync_retry",
			"created", total.Created,
		)
	}
	return true, nil
}
