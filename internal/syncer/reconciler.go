package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"library-sync/internal/domains/author"
	"library-sync/internal/domains/book"
	"library-sync/internal/domains/category"
	"library-sync/internal/domains/location"
	"library-sync/internal/projection"
)

// ReconcileReport counts what a reconciliation pass changed.
type ReconcileReport struct {
	BooksScanned        int `json:"books_scanned"`
	BooksRepaired       int `json:"books_repaired"`
	OrphansKept         int `json:"orphans_kept"`
	SnapshotsRefreshed  int `json:"snapshots_refreshed"`
	DuplicatesCollapsed int `json:"duplicates_collapsed"`
	CopiesScanned       int `json:"copies_scanned"`
	CopiesRefreshed     int `json:"copies_refreshed"`
}

// Reconciler re-derives embedded snapshots from canonical documents. It
// repairs drift left by a crash between a canonical write and its cascade.
// It never removes an embedded entry: a missing canonical may simply not
// have arrived yet, since topics are not ordered against each other.
// Removal stays with the owning entity's delete handler.
type Reconciler struct {
	store projection.Store
}

func NewReconciler(store projection.Store) *Reconciler {
	return &Reconciler{store: store}
}

func (r *Reconciler) Run(ctx context.Context) (ReconcileReport, error) {
	var rep ReconcileReport
	if err := r.reconcileBooks(ctx, &rep); err != nil {
		return rep, err
	}
	if err := r.reconcileCopies(ctx, &rep); err != nil {
		return rep, err
	}

	log.Info().
		Int("books_scanned", rep.BooksScanned).
		Int("books_repaired", rep.BooksRepaired).
		Int("orphans_kept", rep.OrphansKept).
		Int("snapshots_refreshed", rep.SnapshotsRefreshed).
		Int("duplicates_collapsed", rep.DuplicatesCollapsed).
		Int("copies_refreshed", rep.CopiesRefreshed).
		Msg("reconcile finished")
	return rep, nil
}

func (r *Reconciler) reconcileBooks(ctx context.Context, rep *ReconcileReport) error {
	books, err := projection.LoadAll[book.Book](ctx, r.store, projection.Books)
	if err != nil {
		return fmt.Errorf("reconcile: list books: %w", err)
	}

	authors := newSnapshotCache(r.store, projection.Authors, author.Author.Snapshot)
	categories := newSnapshotCache(r.store, projection.Categories, category.Category.Snapshot)

	for _, b := range books {
		if err := ctx.Err(); err != nil {
			return err
		}
		rep.BooksScanned++

		fields := make(map[string]any, 2)

		fixedAuthors, changed, err := reconcileSet(ctx, b.Authors, func(s author.Snapshot) int64 { return s.ID }, authors, rep)
		if err != nil {
			return fmt.Errorf("reconcile book %d authors: %w", b.ID, err)
		}
		if changed {
			fields["authors"] = fixedAuthors
		}

		fixedCategories, changed, err := reconcileSet(ctx, b.Categories, func(s category.Snapshot) int64 { return s.ID }, categories, rep)
		if err != nil {
			return fmt.Errorf("reconcile book %d categories: %w", b.ID, err)
		}
		if changed {
			fields["categories"] = fixedCategories
		}

		if len(fields) == 0 {
			continue
		}
		if err := r.store.Update(ctx, projection.Books, b.ID, fields); err != nil {
			return fmt.Errorf("reconcile book %d: %w", b.ID, err)
		}
		rep.BooksRepaired++
	}
	return nil
}

func (r *Reconciler) reconcileCopies(ctx context.Context, rep *ReconcileReport) error {
	copies, err := projection.LoadAll[book.BookCopy](ctx, r.store, projection.BookCopies)
	if err != nil {
		return fmt.Errorf("reconcile: list book copies: %w", err)
	}
	locations := newSnapshotCache(r.store, projection.Locations, location.Location.Snapshot)

	for _, c := range copies {
		if err := ctx.Err(); err != nil {
			return err
		}
		rep.CopiesScanned++

		locID, ok := c.LocationID()
		if !ok {
			continue
		}
		fresh, exists, err := locations.get(ctx, locID)
		if err != nil {
			return fmt.Errorf("reconcile copy %d: %w", c.ID, err)
		}
		if !exists || *c.Location == fresh {
			continue
		}
		if err := r.store.Update(ctx, projection.BookCopies, c.ID, map[string]any{"location": fresh}); err != nil {
			return fmt.Errorf("reconcile copy %d: %w", c.ID, err)
		}
		rep.CopiesRefreshed++
	}
	return nil
}

// reconcileSet collapses duplicates and refreshes entries from their canonical
// snapshot. Entries without a canonical document are kept as they are.
// Order is preserved.
func reconcileSet[S comparable, D any](
	ctx context.Context,
	in []S,
	idOf func(S) int64,
	cache *snapshotCache[S, D],
	rep *ReconcileReport,
) ([]S, bool, error) {
	out := make([]S, 0, len(in))
	seen := make(map[int64]struct{}, len(in))
	changed := false

	for _, entry := range in {
		id := idOf(entry)
		if _, dup := seen[id]; dup {
			rep.DuplicatesCollapsed++
			changed = true
			continue
		}
		seen[id] = struct{}{}

		fresh, exists, err := cache.get(ctx, id)
		if err != nil {
			return nil, false, err
		}
		if !exists {
			rep.OrphansKept++
			out = append(out, entry)
			continue
		}
		if fresh != entry {
			rep.SnapshotsRefreshed++
			changed = true
		}
		out = append(out, fresh)
	}
	return out, changed, nil
}

// snapshotCache memoizes canonical snapshots for one pass, including misses.
type snapshotCache[S any, D any] struct {
	store      projection.Store
	collection projection.Collection
	project    func(D) S
	entries    map[int64]*S
}

func newSnapshotCache[S any, D any](store projection.Store, c projection.Collection, project func(D) S) *snapshotCache[S, D] {
	return &snapshotCache[S, D]{
		store:      store,
		collection: c,
		project:    project,
		entries:    make(map[int64]*S),
	}
}

func (c *snapshotCache[S, D]) get(ctx context.Context, id int64) (S, bool, error) {
	var zero S
	if entry, ok := c.entries[id]; ok {
		if entry == nil {
			return zero, false, nil
		}
		return *entry, true, nil
	}

	doc, err := projection.Load[D](ctx, c.store, c.collection, id)
	if errors.Is(err, projection.ErrNotFound) {
		c.entries[id] = nil
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}
	snap := c.project(doc)
	c.entries[id] = &snap
	return snap, true, nil
}
