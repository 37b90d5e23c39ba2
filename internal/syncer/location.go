package syncer

import (
	"context"
	"fmt"

	"library-sync/internal/domains/book"
	"library-sync/internal/domains/location"
	"library-sync/internal/projection"
)

// LocationHandler keeps canonical locations and the snapshots embedded in
// book copies. Deleting a location leaves those snapshots in place.
type LocationHandler struct {
	store projection.Store
}

func NewLocationHandler(store projection.Store) *LocationHandler {
	return &LocationHandler{store: store}
}

func (h *LocationHandler) Create(ctx context.Context, payload []byte) (Result, error) {
	p, err := decode[location.CreatePayload](payload)
	if err != nil {
		return Result{}, err
	}
	l := p.ToLocation()
	if err := projection.Save(ctx, h.store, projection.Locations, l.ID, l); err != nil {
		return Result{ID: l.ID}, err
	}
	return Result{ID: l.ID}, nil
}

// Update replaces the whole embedded location of every copy at this location.
func (h *LocationHandler) Update(ctx context.Context, payload []byte) (Result, error) {
	id, err := requireID(payload)
	if err != nil {
		return Result{}, err
	}
	res := Result{ID: id}

	p, err := decode[location.UpdatePayload](payload)
	if err != nil {
		return res, err
	}
	if err := h.store.Update(ctx, projection.Locations, id, p.Fields()); err != nil {
		return res, notFound(err, location.ErrLocationNotFound)
	}

	l, err := projection.Load[location.Location](ctx, h.store, projection.Locations, id)
	if err != nil {
		return res, notFound(err, location.ErrLocationNotFound)
	}
	snap := l.Snapshot()

	copies, err := projection.LoadEmbedding[book.BookCopy](ctx, h.store, projection.CopyLocation, id)
	if err != nil {
		return res, fmt.Errorf("load copies at location %d: %w", id, err)
	}
	for _, c := range copies {
		if err := h.store.Update(ctx, projection.BookCopies, c.ID, map[string]any{"location": snap}); err != nil {
			return res, fmt.Errorf("cascade location %d into copy %d: %w", id, c.ID, err)
		}
		res.Affected++
	}
	return res, nil
}

// Delete removes only the canonical location.
func (h *LocationHandler) Delete(ctx context.Context, payload []byte) (Result, error) {
	id, err := requireID(payload)
	if err != nil {
		return Result{}, err
	}
	if err := h.store.Delete(ctx, projection.Locations, id); err != nil {
		return Result{ID: id}, notFound(err, location.ErrLocationNotFound)
	}
	return Result{ID: id}, nil
}
