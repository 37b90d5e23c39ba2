// Package projection defines the document projection store contract shared by
// the synchronizer and its backends.
package projection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a canonical document does not exist.
var ErrNotFound = errors.New("document not found")

// Collection names a document collection in the projection store.
type Collection string

const (
	Authors    Collection = "authors"
	Categories Collection = "categories"
	Locations  Collection = "locations"
	Books      Collection = "books"
	BookCopies Collection = "book_copies"
)

// Collections lists every collection, in a stable order.
var Collections = []Collection{Authors, Categories, Locations, Books, BookCopies}

func (c Collection) Valid() bool {
	for _, known := range Collections {
		if c == known {
			return true
		}
	}
	return false
}

// EmbeddedRef names a field of a collection that embeds snapshots of another
// entity. Many is true when the field is an array of snapshots, false when it
// holds a single snapshot object.
type EmbeddedRef struct {
	Collection Collection
	Field      string
	Many       bool
}

var (
	BookAuthors    = EmbeddedRef{Collection: Books, Field: "authors", Many: true}
	BookCategories = EmbeddedRef{Collection: Books, Field: "categories", Many: true}
	CopyLocation   = EmbeddedRef{Collection: BookCopies, Field: "location", Many: false}
)

func (r EmbeddedRef) String() string {
	return fmt.Sprintf("%s.%s", r.Collection, r.Field)
}

// Store is the document projection store.
//
// Documents are JSON objects with a numeric "id". Every method blocks until the
// backend answers; none of them is atomic with any other.
type Store interface {
	// Find returns the canonical document, or ErrNotFound.
	Find(ctx context.Context, c Collection, id int64) (json.RawMessage, error)

	// Insert stores doc under id, replacing any existing document.
	Insert(ctx context.Context, c Collection, id int64, doc json.RawMessage) error

	// Update merges fields into the top level of an existing document.
	// Returns ErrNotFound if there is nothing to update.
	Update(ctx context.Context, c Collection, id int64, fields map[string]any) error

	// Delete removes the document, or returns ErrNotFound.
	Delete(ctx context.Context, c Collection, id int64) error

	// FindEmbedding returns every document of ref.Collection whose ref.Field
	// embeds an entry with the given id, ordered by document id.
	FindEmbedding(ctx context.Context, ref EmbeddedRef, id int64) ([]json.RawMessage, error)

	// List returns every document of c ordered by id.
	List(ctx context.Context, c Collection) ([]json.RawMessage, error)

	Ping(ctx context.Context) error
}

// NotFound wraps ErrNotFound with the collection and id.
func NotFound(c Collection, id int64) error {
	return fmt.Errorf("%s %d: %w", c, id, ErrNotFound)
}

// Load finds a document and decodes it into T.
func Load[T any](ctx context.Context, s Store, c Collection, id int64) (T, error) {
	var out T
	raw, err := s.Find(ctx, c, id)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode %s %d: %w", c, id, err)
	}
	return out, nil
}

// Save encodes doc and inserts it under id.
func Save(ctx context.Context, s Store, c Collection, id int64, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s %d: %w", c, id, err)
	}
	return s.Insert(ctx, c, id, raw)
}

// LoadEmbedding decodes the documents embedding id through ref.
func LoadEmbedding[T any](ctx context.Context, s Store, ref EmbeddedRef, id int64) ([]T, error) {
	raws, err := s.FindEmbedding(ctx, ref, id)
	if err != nil {
		return nil, err
	}
	return decodeAll[T](raws, string(ref.Collection))
}

// LoadAll decodes every document of c.
func LoadAll[T any](ctx context.Context, s Store, c Collection) ([]T, error) {
	raws, err := s.List(ctx, c)
	if err != nil {
		return nil, err
	}
	return decodeAll[T](raws, string(c))
}

func decodeAll[T any](raws []json.RawMessage, what string) ([]T, error) {
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		var doc T
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode %s: %w", what, err)
		}
		out = append(out, doc)
	}
	return out, nil
}
