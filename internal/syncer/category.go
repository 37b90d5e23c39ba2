package syncer

import (
	"context"

	"library-sync/internal/domains/book"
	"library-sync/internal/domains/category"
	"library-sync/internal/projection"
)

// CategoryHandler mirrors AuthorHandler for the category sets of books.
type CategoryHandler struct {
	store projection.Store
}

func NewCategoryHandler(store projection.Store) *CategoryHandler {
	return &CategoryHandler{store: store}
}

func (h *CategoryHandler) Create(ctx context.Context, payload []byte) (Result, error) {
	p, err := decode[category.CreatePayload](payload)
	if err != nil {
		return Result{}, err
	}
	c := p.ToCategory()
	if err := projection.Save(ctx, h.store, projection.Categories, c.ID, c); err != nil {
		return Result{ID: c.ID}, err
	}
	return Result{ID: c.ID}, nil
}

func (h *CategoryHandler) Update(ctx context.Context, payload []byte) (Result, error) {
	id, err := requireID(payload)
	if err != nil {
		return Result{}, err
	}
	res := Result{ID: id}

	p, err := decode[category.UpdatePayload](payload)
	if err != nil {
		return res, err
	}
	if err := h.store.Update(ctx, projection.Categories, id, p.Fields()); err != nil {
		return res, notFound(err, category.ErrCategoryNotFound)
	}

	c, err := projection.Load[category.Category](ctx, h.store, projection.Categories, id)
	if err != nil {
		return res, notFound(err, category.ErrCategoryNotFound)
	}
	snap := c.Snapshot()

	res.Affected, err = cascadeBooks(ctx, h.store, projection.BookCategories, id, func(b *book.Book) bool {
		return b.ReplaceCategory(snap)
	})
	return res, err
}

func (h *CategoryHandler) Delete(ctx context.Context, payload []byte) (Result, error) {
	id, err := requireID(payload)
	if err != nil {
		return Result{}, err
	}
	res := Result{ID: id}

	if err := h.store.Delete(ctx, projection.Categories, id); err != nil {
		return res, notFound(err, category.ErrCategoryNotFound)
	}

	res.Affected, err = cascadeBooks(ctx, h.store, projection.BookCategories, id, func(b *book.Book) bool {
		return b.RemoveCategory(id)
	})
	return res, err
}
