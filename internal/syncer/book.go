package syncer

import (
	"context"

	"library-sync/internal/domains/book"
	"library-sync/internal/projection"
)

// BookHandler maintains book documents. Their embedded authors and categories
// arrive as snapshots in the payload; canonical authors and categories are
// never touched from here.
type BookHandler struct {
	store projection.Store
}

func NewBookHandler(store projection.Store) *BookHandler {
	return &BookHandler{store: store}
}

func (h *BookHandler) Create(ctx context.Context, payload []byte) (Result, error) {
	p, err := decode[book.CreatePayload](payload)
	if err != nil {
		return Result{}, err
	}
	b := p.ToBook()
	if err := projection.Save(ctx, h.store, projection.Books, b.ID, b); err != nil {
		return Result{ID: b.ID}, err
	}
	return Result{ID: b.ID}, nil
}

func (h *BookHandler) Update(ctx context.Context, payload []byte) (Result, error) {
	id, err := requireID(payload)
	if err != nil {
		return Result{}, err
	}
	p, err := decode[book.UpdatePayload](payload)
	if err != nil {
		return Result{ID: id}, err
	}
	if err := h.store.Update(ctx, projection.Books, id, p.Fields()); err != nil {
		return Result{ID: id}, notFound(err, book.ErrBookNotFound)
	}
	return Result{ID: id}, nil
}

// Delete removes the book. Its copies are separate documents with their own events.
func (h *BookHandler) Delete(ctx context.Context, payload []byte) (Result, error) {
	id, err := requireID(payload)
	if err != nil {
		return Result{}, err
	}
	if err := h.store.Delete(ctx, projection.Books, id); err != nil {
		return Result{ID: id}, notFound(err, book.ErrBookNotFound)
	}
	return Result{ID: id}, nil
}

// BookCopyHandler maintains book copy documents and their location snapshot.
type BookCopyHandler struct {
	store projection.Store
}

func NewBookCopyHandler(store projection.Store) *BookCopyHandler {
	return &BookCopyHandler{store: store}
}

func (h *BookCopyHandler) Create(ctx context.Context, payload []byte) (Result, error) {
	p, err := decode[book.CreateCopyPayload](payload)
	if err != nil {
		return Result{}, err
	}
	c := p.ToBookCopy()
	if err := projection.Save(ctx, h.store, projection.BookCopies, c.ID, c); err != nil {
		return Result{ID: c.ID}, err
	}
	return Result{ID: c.ID}, nil
}

func (h *BookCopyHandler) Update(ctx context.Context, payload []byte) (Result, error) {
	id, err := requireID(payload)
	if err != nil {
		return Result{}, err
	}
	p, err := decode[book.UpdateCopyPayload](payload)
	if err != nil {
		return Result{ID: id}, err
	}
	if err := h.store.Update(ctx, projection.BookCopies, id, p.Fields()); err != nil {
		return Result{ID: id}, notFound(err, book.ErrBookCopyNotFound)
	}
	return Result{ID: id}, nil
}

func (h *BookCopyHandler) Delete(ctx context.Context, payload []byte) (Result, error) {
	id, err := requireID(payload)
	if err != nil {
		return Result{}, err
	}
	if err := h.store.Delete(ctx, projection.BookCopies, id); err != nil {
		return Result{ID: id}, notFound(err, book.ErrBookCopyNotFound)
	}
	return Result{ID: id}, nil
}
