package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-sync/internal/domains/author"
	"library-sync/internal/domains/book"
	"library-sync/internal/domains/category"
	"library-sync/internal/domains/location"
	"library-sync/internal/projection"
	"library-sync/internal/projection/memstore"
)

func newTestSynchronizer(t *testing.T) (*Synchronizer, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	return NewSynchronizer(NewDefaultRegistry(store), NewReconciler(store)), store
}

func apply(t *testing.T, s *Synchronizer, topic, key, value string) Outcome {
	t.Helper()
	out, err := s.Apply(context.Background(), Event{ID: "evt", Topic: topic, Key: key, Payload: []byte(value)})
	require.NoError(t, err)
	return out
}

func seed(t *testing.T, store projection.Store, c projection.Collection, id int64, doc any) {
	t.Helper()
	require.NoError(t, projection.Save(context.Background(), store, c, id, doc))
}

func load[T any](t *testing.T, store projection.Store, c projection.Collection, id int64) T {
	t.Helper()
	doc, err := projection.Load[T](context.Background(), store, c, id)
	require.NoError(t, err)
	return doc
}

func rawDoc(t *testing.T, store projection.Store, c projection.Collection, id int64) string {
	t.Helper()
	raw, err := store.Find(context.Background(), c, id)
	require.NoError(t, err)
	return string(raw)
}

func TestApply_CreateAuthor(t *testing.T) {
	s, store := newTestSynchronizer(t)
	seed(t, store, projection.Books, 10, book.Book{ID: 10, Name: "Other", Authors: []author.Snapshot{{ID: 2, Name: "Z"}}, Categories: []category.Snapshot{}})
	before := rawDoc(t, store, projection.Books, 10)

	out := apply(t, s, "author", "create", `{"id":1,"name":"X"}`)

	assert.Equal(t, KindAuthor, out.Kind)
	assert.Equal(t, OpCreate, out.Op)
	assert.Equal(t, Result{ID: 1}, out.Result)
	assert.Equal(t, author.Author{ID: 1, Name: "X"}, load[author.Author](t, store, projection.Authors, 1))
	assert.Equal(t, before, rawDoc(t, store, projection.Books, 10))
}

func TestApply_UpdateAuthorStripsExcludedFields(t *testing.T) {
	s, store := newTestSynchronizer(t)
	seed(t, store, projection.Authors, 1, author.Author{ID: 1, Name: "X"})
	seed(t, store, projection.Books, 10, book.Book{
		ID:         10,
		Name:       "B",
		Authors:    []author.Snapshot{{ID: 1, Name: "X"}, {ID: 2, Name: "Z"}},
		Categories: []category.Snapshot{},
	})

	out := apply(t, s, "author", "update", `{"id":1,"name":"Y","description":"bio","books":[{"id":10,"name":"B"}]}`)

	assert.Equal(t, 1, out.Result.Affected)

	canonical := load[author.Author](t, store, projection.Authors, 1)
	assert.Equal(t, "Y", canonical.Name)
	assert.Equal(t, "bio", canonical.Description)
	assert.Equal(t, []author.BookRef{{ID: 10, Name: "B"}}, canonical.Books)

	b := load[book.Book](t, store, projection.Books, 10)
	assert.Equal(t, []author.Snapshot{{ID: 2, Name: "Z"}, {ID: 1, Name: "Y"}}, b.Authors)

	raw := rawDoc(t, store, projection.Books, 10)
	assert.NotContains(t, raw, "bio")
	assert.NotContains(t, raw, "books")
}

func TestAuthorUpdate_EveryEmbeddingBookHasOneFreshSnapshot(t *testing.T) {
	s, store := newTestSynchronizer(t)
	seed(t, store, projection.Authors, 1, author.Author{ID: 1, Name: "X"})
	for id := int64(1); id <= 5; id++ {
		authors := []author.Snapshot{{ID: 1, Name: "X"}}
		if id%2 == 0 {
			authors = append(authors, author.Snapshot{ID: 1, Name: "stale duplicate"})
		}
		seed(t, store, projection.Books, id, book.Book{ID: id, Authors: authors, Categories: []category.Snapshot{}})
	}
	seed(t, store, projection.Books, 6, book.Book{ID: 6, Authors: []author.Snapshot{{ID: 3, Name: "Q"}}, Categories: []category.Snapshot{}})

	out := apply(t, s, "author", "update", `{"id":1,"name":"New name"}`)
	assert.Equal(t, 5, out.Result.Affected)

	for id := int64(1); id <= 5; id++ {
		b := load[book.Book](t, store, projection.Books, id)
		assert.Equal(t, []author.Snapshot{{ID: 1, Name: "New name"}}, b.Authors, "book %d", id)
	}
	assert.Equal(t, []author.Snapshot{{ID: 3, Name: "Q"}}, load[book.Book](t, store, projection.Books, 6).Authors)
}

func TestAuthorUpdate_PartialPayloadKeepsStoredName(t *testing.T) {
	s, store := newTestSynchronizer(t)
	seed(t, store, projection.Authors, 1, author.Author{ID: 1, Name: "X"})
	seed(t, store, projection.Books, 10, book.Book{ID: 10, Authors: []author.Snapshot{{ID: 1, Name: "X"}}, Categories: []category.Snapshot{}})

	apply(t, s, "author", "update", `{"id":1,"description":"only bio"}`)

	assert.Equal(t, []author.Snapshot{{ID: 1, Name: "X"}}, load[book.Book](t, store, projection.Books, 10).Authors)
	assert.Equal(t, "only bio", load[author.Author](t, store, projection.Authors, 1).Description)
}

func TestAuthorDelete_RemovesFromEveryBook(t *testing.T) {
	s, store := newTestSynchronizer(t)
	seed(t, store, projection.Authors, 1, author.Author{ID: 1, Name: "X"})
	seed(t, store, projection.Books, 10, book.Book{ID: 10, Authors: []author.Snapshot{{ID: 1, Name: "X"}, {ID: 2, Name: "Z"}}, Categories: []category.Snapshot{}})
	seed(t, store, projection.Books, 11, book.Book{ID: 11, Authors: []author.Snapshot{{ID: 1, Name: "X"}}, Categories: []category.Snapshot{}})

	out := apply(t, s, "author", "delete", `{"id":1}`)

	assert.Equal(t, 2, out.Result.Affected)
	_, err := store.Find(context.Background(), projection.Authors, 1)
	assert.ErrorIs(t, err, projection.ErrNotFound)

	for _, id := range []int64{10, 11} {
		b := load[book.Book](t, store, projection.Books, id)
		assert.False(t, b.HasAuthor(1))
	}
	assert.Equal(t, []author.Snapshot{{ID: 2, Name: "Z"}}, load[book.Book](t, store, projection.Books, 10).Authors)
}

func TestApply_DeleteCategory(t *testing.T) {
	s, store := newTestSynchronizer(t)
	seed(t, store, projection.Categories, 5, category.Category{ID: 5, Name: "Fiction", Description: "made up"})
	seed(t, store, projection.Books, 10, book.Book{
		ID:         10,
		Authors:    []author.Snapshot{},
		Categories: []category.Snapshot{{ID: 4, Name: "Classics"}, {ID: 5, Name: "Fiction"}, {ID: 6, Name: "Drama"}},
	})

	apply(t, s, "category", "delete", `{"id":5}`)

	_, err := store.Find(context.Background(), projection.Categories, 5)
	assert.ErrorIs(t, err, projection.ErrNotFound)
	assert.Equal(t,
		[]category.Snapshot{{ID: 4, Name: "Classics"}, {ID: 6, Name: "Drama"}},
		load[book.Book](t, store, projection.Books, 10).Categories,
	)
}

func TestCategoryUpdate_StripsDescription(t *testing.T) {
	s, store := newTestSynchronizer(t)
	seed(t, store, projection.Categories, 5, category.Category{ID: 5, Name: "Fiction"})
	seed(t, store, projection.Books, 10, book.Book{ID: 10, Authors: []author.Snapshot{}, Categories: []category.Snapshot{{ID: 5, Name: "Fiction"}}})

	out := apply(t, s, "category", "update", `{"id":5,"name":"Novels","description":"long form"}`)

	assert.Equal(t, 1, out.Result.Affected)
	assert.Equal(t, "long form", load[category.Category](t, store, projection.Categories, 5).Description)
	assert.Equal(t, []category.Snapshot{{ID: 5, Name: "Novels"}}, load[book.Book](t, store, projection.Books, 10).Categories)
	assert.NotContains(t, rawDoc(t, store, projection.Books, 10), "long form")
}

func TestApply_LocationUpdateThenDelete(t *testing.T) {
	s, store := newTestSynchronizer(t)
	seed(t, store, projection.Locations, 9, location.Location{ID: 9, Name: "Brno", Address: "A"})
	seed(t, store, projection.BookCopies, 20, book.BookCopy{ID: 20, BookID: 10, State: book.StateGood, Location: &location.Snapshot{ID: 9, Name: "Brno", Address: "A"}})
	seed(t, store, projection.BookCopies, 21, book.BookCopy{ID: 21, BookID: 10, State: book.StateGood, Location: &location.Snapshot{ID: 8, Name: "Olomouc", Address: "C"}})

	out := apply(t, s, "location", "update", `{"id":9,"name":"Brno2","address":"B"}`)
	assert.Equal(t, 1, out.Result.Affected)

	c := load[book.BookCopy](t, store, projection.BookCopies, 20)
	require.NotNil(t, c.Location)
	assert.Equal(t, location.Snapshot{ID: 9, Name: "Brno2", Address: "B"}, *c.Location)
	assert.Equal(t, "Olomouc", load[book.BookCopy](t, store, projection.BookCopies, 21).Location.Name)

	before := rawDoc(t, store, projection.BookCopies, 20)
	out = apply(t, s, "location", "delete", `{"id":9}`)

	assert.Equal(t, 0, out.Result.Affected)
	_, err := store.Find(context.Background(), projection.Locations, 9)
	assert.ErrorIs(t, err, projection.ErrNotFound)
	assert.Equal(t, before, rawDoc(t, store, projection.BookCopies, 20))
}

func TestUnknownTopicIsNoOp(t *testing.T) {
	s, store := newTestSynchronizer(t)
	seed(t, store, projection.Authors, 1, author.Author{ID: 1, Name: "X"})
	before := store.Dump()

	_, err := s.Apply(context.Background(), Event{Topic: "reservation", Key: "create", Payload: []byte(`{"id":1}`)})

	assert.ErrorIs(t, err, ErrUnroutable)
	assert.True(t, IsPermanent(err))
	assert.Equal(t, before, store.Dump())
}

func TestApply_Errors(t *testing.T) {
	s, store := newTestSynchronizer(t)

	tests := []struct {
		name    string
		evt     Event
		wantErr error
	}{
		{"unknown op", Event{Topic: "author", Key: "upsert", Payload: []byte(`{"id":1}`)}, ErrUnknownOperation},
		{"invalid json", Event{Topic: "author", Key: "create", Payload: []byte(`{"id":`)}, ErrMalformedPayload},
		{"create missing name", Event{Topic: "author", Key: "create", Payload: []byte(`{"id":1}`)}, ErrValidation},
		{"update missing id", Event{Topic: "author", Key: "update", Payload: []byte(`{"name":"X"}`)}, ErrMalformedPayload},
		{"delete negative id", Event{Topic: "category", Key: "delete", Payload: []byte(`{"id":-3}`)}, ErrMalformedPayload},
		{"delete string id", Event{Topic: "category", Key: "delete", Payload: []byte(`{"id":"abc"}`)}, ErrMalformedPayload},
		{"update missing author", Event{Topic: "author", Key: "update", Payload: []byte(`{"id":42,"name":"X"}`)}, projection.ErrNotFound},
		{"delete missing location", Event{Topic: "location", Key: "delete", Payload: []byte(`{"id":42}`)}, projection.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Apply(context.Background(), tt.evt)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsPermanent(err))
		})
	}
	assert.Equal(t, 0, store.Len(projection.Authors))
}

func TestApply_NotFoundCarriesEntitySentinel(t *testing.T) {
	s, _ := newTestSynchronizer(t)

	_, err := s.Apply(context.Background(), Event{Topic: "author", Key: "delete", Payload: []byte(`{"id":7}`)})

	assert.ErrorIs(t, err, author.ErrAuthorNotFound)
	assert.ErrorIs(t, err, projection.ErrNotFound)
}

func TestBookAndCopyLifecycle(t *testing.T) {
	s, store := newTestSynchronizer(t)

	apply(t, s, "book", "create", `{"id":10,"name":"1984","isbn":"9780451524935","authors":[{"id":1,"name":"Orwell"},{"id":1,"name":"dup"}],"categories":[{"id":5,"name":"Fiction"}]}`)
	b := load[book.Book](t, store, projection.Books, 10)
	assert.Equal(t, []author.Snapshot{{ID: 1, Name: "Orwell"}}, b.Authors)
	assert.Equal(t, []category.Snapshot{{ID: 5, Name: "Fiction"}}, b.Categories)

	apply(t, s, "book", "update", `{"id":10,"name":"Nineteen Eighty-Four"}`)
	b = load[book.Book](t, store, projection.Books, 10)
	assert.Equal(t, "Nineteen Eighty-Four", b.Name)
	assert.Len(t, b.Authors, 1)

	apply(t, s, "book_copy", "create", `{"id":20,"book_id":10,"print_date":"2019-10-05","state":"good","location":{"id":9,"name":"Brno","address":"A"}}`)
	apply(t, s, "book_copy", "update", `{"id":20,"state":"damaged","note":"torn cover"}`)
	c := load[book.BookCopy](t, store, projection.BookCopies, 20)
	assert.Equal(t, book.StateDamaged, c.State)
	assert.Equal(t, "torn cover", c.Note)
	assert.Equal(t, "Brno", c.Location.Name)

	apply(t, s, "book_copy", "delete", `{"id":20}`)
	apply(t, s, "book", "delete", `{"id":10}`)
	assert.Equal(t, 0, store.Len(projection.Books))
	assert.Equal(t, 0, store.Len(projection.BookCopies))

	// book handlers never create canonical authors or categories
	assert.Equal(t, 0, store.Len(projection.Authors))
	assert.Equal(t, 0, store.Len(projection.Categories))
}

type failingStore struct {
	projection.Store
	failUpdate projection.Collection
}

func (f *failingStore) Update(ctx context.Context, c projection.Collection, id int64, fields map[string]any) error {
	if c == f.failUpdate {
		return errors.New("connection reset")
	}
	return f.Store.Update(ctx, c, id, fields)
}

func TestCascadeFailureIsTransient(t *testing.T) {
	mem := memstore.New()
	store := &failingStore{Store: mem, failUpdate: projection.Books}
	s := NewSynchronizer(NewDefaultRegistry(store), nil)
	seed(t, mem, projection.Authors, 1, author.Author{ID: 1, Name: "X"})
	seed(t, mem, projection.Books, 10, book.Book{ID: 10, Authors: []author.Snapshot{{ID: 1, Name: "X"}}, Categories: []category.Snapshot{}})

	_, err := s.Apply(context.Background(), Event{Topic: "author", Key: "update", Payload: []byte(`{"id":1,"name":"Y"}`)})

	require.Error(t, err)
	assert.False(t, IsPermanent(err))
	// canonical write happened, the cascade did not; nothing is rolled back
	assert.Equal(t, "Y", load[author.Author](t, mem, projection.Authors, 1).Name)
	assert.Equal(t, "X", load[book.Book](t, mem, projection.Books, 10).Authors[0].Name)

	_, err = s.Reconcile(context.Background())
	assert.Error(t, err)
}

func TestBookCreate_StoresEmptyEmbeddedSets(t *testing.T) {
	s, store := newTestSynchronizer(t)
	apply(t, s, "book", "create", `{"id":1,"name":"Empty"}`)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(rawDoc(t, store, projection.Books, 1)), &doc))
	assert.JSONEq(t, `[]`, string(doc["authors"]))
	assert.JSONEq(t, `[]`, string(doc["categories"]))
}
