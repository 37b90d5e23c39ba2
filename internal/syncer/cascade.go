package syncer

import (
	"context"
	"fmt"

	"library-sync/internal/domains/book"
	"library-sync/internal/projection"
)

// cascadeBooks loads every book embedding id through ref, applies mutate and
// writes back the embedded set of each book mutate reports as changed.
// Books are written one by one; a failure leaves earlier books updated.
func cascadeBooks(
	ctx context.Context,
	store projection.Store,
	ref projection.EmbeddedRef,
	id int64,
	mutate func(b *book.Book) bool,
) (int, error) {
	books, err := projection.LoadEmbedding[book.Book](ctx, store, ref, id)
	if err != nil {
		return 0, fmt.Errorf("load books embedding %s %d: %w", ref.Field, id, err)
	}

	affected := 0
	for i := range books {
		b := &books[i]
		if !mutate(b) {
			continue
		}
		if err := store.Update(ctx, projection.Books, b.ID, map[string]any{ref.Field: embeddedSet(b, ref)}); err != nil {
			return affected, fmt.Errorf("cascade %s %d into book %d: %w", ref.Field, id, b.ID, err)
		}
		affected++
	}
	return affected, nil
}

func embeddedSet(b *book.Book, ref projection.EmbeddedRef) any {
	if ref == projection.BookCategories {
		return b.Categories
	}
	return b.Authors
}
