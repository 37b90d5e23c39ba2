package syncer

import (
	"context"

	"library-sync/internal/domains/author"
	"library-sync/internal/domains/book"
	"library-sync/internal/projection"
)

// AuthorHandler keeps canonical authors and the author sets embedded in books.
type AuthorHandler struct {
	store projection.Store
}

func NewAuthorHandler(store projection.Store) *AuthorHandler {
	return &AuthorHandler{store: store}
}

// Create stores a new canonical author. Nothing embeds it yet.
func (h *AuthorHandler) Create(ctx context.Context, payload []byte) (Result, error) {
	p, err := decode[author.CreatePayload](payload)
	if err != nil {
		return Result{}, err
	}
	a := p.ToAuthor()
	if err := projection.Save(ctx, h.store, projection.Authors, a.ID, a); err != nil {
		return Result{ID: a.ID}, err
	}
	return Result{ID: a.ID}, nil
}

// Update merges the payload into the canonical author, then swaps the
// embedded snapshot in every book that carries it.
func (h *AuthorHandler) Update(ctx context.Context, payload []byte) (Result, error) {
	id, err := requireID(payload)
	if err != nil {
		return Result{}, err
	}
	res := Result{ID: id}

	p, err := decode[author.UpdatePayload](payload)
	if err != nil {
		return res, err
	}
	if err := h.store.Update(ctx, projection.Authors, id, p.Fields()); err != nil {
		return res, notFound(err, author.ErrAuthorNotFound)
	}

	a, err := projection.Load[author.Author](ctx, h.store, projection.Authors, id)
	if err != nil {
		return res, notFound(err, author.ErrAuthorNotFound)
	}
	snap := a.Snapshot()

	res.Affected, err = cascadeBooks(ctx, h.store, projection.BookAuthors, id, func(b *book.Book) bool {
		return b.ReplaceAuthor(snap)
	})
	return res, err
}

// Delete removes the canonical author and its entry from every book.
func (h *AuthorHandler) Delete(ctx context.Context, payload []byte) (Result, error) {
	id, err := requireID(payload)
	if err != nil {
		return Result{}, err
	}
	res := Result{ID: id}

	if err := h.store.Delete(ctx, projection.Authors, id); err != nil {
		return res, notFound(err, author.ErrAuthorNotFound)
	}

	res.Affected, err = cascadeBooks(ctx, h.store, projection.BookAuthors, id, func(b *book.Book) bool {
		return b.RemoveAuthor(id)
	})
	return res, err
}
