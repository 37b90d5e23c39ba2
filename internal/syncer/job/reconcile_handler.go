package job

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"library-sync/internal/shared"
	"library-sync/internal/syncer"
	"library-sync/pkg/cache"
	"library-sync/pkg/logger"
)

// Reconciler is implemented by syncer.Synchronizer.
type Reconciler interface {
	Reconcile(ctx context.Context) (syncer.ReconcileReport, error)
}

// ReconcileRecord is the last pass outcome, served on /stats.
type ReconcileRecord struct {
	FinishedAt time.Time              `json:"finished_at"`
	Took       string                 `json:"took"`
	Report     syncer.ReconcileReport `json:"report"`
}

// SaveReconcileRecord stores rec under shared.LastReconcileKey without expiry.
func SaveReconcileRecord(ctx context.Context, c cache.Cache, rec ReconcileRecord) error {
	if err := c.Set(ctx, shared.LastReconcileKey, rec, 0); err != nil {
		return fmt.Errorf("save reconcile record: %w", err)
	}
	return nil
}

// LoadReconcileRecord returns the last stored record; found is false before
// the first pass.
func LoadReconcileRecord(ctx context.Context, c cache.Cache) (rec ReconcileRecord, found bool, err error) {
	found, err = c.Get(ctx, shared.LastReconcileKey, &rec)
	if err != nil {
		return ReconcileRecord{}, false, fmt.Errorf("load reconcile record: %w", err)
	}
	return rec, found, nil
}

// ReconcileHandler runs the scheduled reconciliation pass.
type ReconcileHandler struct {
	reconciler Reconciler
	records    cache.Cache
}

func NewReconcileHandler(reconciler Reconciler, records cache.Cache) *ReconcileHandler {
	return &ReconcileHandler{reconciler: reconciler, records: records}
}

func (h *ReconcileHandler) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	start := time.Now()
	rep, err := h.reconciler.Reconcile(ctx)
	if err != nil {
		logger.Error("Reconcile: pass failed", err)
		return fmt.Errorf("reconcile: %w", err)
	}

	logger.Info("Reconcile: pass completed", map[string]interface{}{
		"books_scanned":        rep.BooksScanned,
		"books_repaired":       rep.BooksRepaired,
		"orphans_kept":         rep.OrphansKept,
		"snapshots_refreshed":  rep.SnapshotsRefreshed,
		"duplicates_collapsed": rep.DuplicatesCollapsed,
		"copies_refreshed":     rep.CopiesRefreshed,
	})

	// The pass itself succeeded; a lost record only blanks /stats.
	rec := ReconcileRecord{FinishedAt: time.Now().UTC(), Took: time.Since(start).String(), Report: rep}
	if err := SaveReconcileRecord(ctx, h.records, rec); err != nil {
		logger.Warn("Reconcile: record not saved", map[string]interface{}{"error": err.Error()})
	}
	return nil
}
