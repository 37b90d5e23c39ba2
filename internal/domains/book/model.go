package book

import (
	"library-sync/internal/domains/author"
	"library-sync/internal/domains/category"
)

// Book is the book document with its embedded author and category sets.
// Both sets hold at most one snapshot per id and keep insertion order.
type Book struct {
	ID          int64               `json:"id"`
	Name        string              `json:"name"`
	ISBN        string              `json:"isbn,omitempty"`
	Description string              `json:"description,omitempty"`
	ReleaseDate string              `json:"release_date,omitempty"`
	Authors     []author.Snapshot   `json:"authors"`
	Categories  []category.Snapshot `json:"categories"`
}

func authorID(s author.Snapshot) int64     { return s.ID }
func categoryID(s category.Snapshot) int64 { return s.ID }

// HasAuthor reports whether the book embeds author id.
func (b *Book) HasAuthor(id int64) bool {
	return indexOf(b.Authors, id, authorID) >= 0
}

// ReplaceAuthor drops every embedded entry for s.ID and appends s.
// Returns false, leaving the book untouched, when the author is not embedded.
func (b *Book) ReplaceAuthor(s author.Snapshot) bool {
	var ok bool
	b.Authors, ok = replaceByID(b.Authors, s.ID, s, authorID)
	return ok
}

// RemoveAuthor drops the embedded entry for id.
func (b *Book) RemoveAuthor(id int64) bool {
	var ok bool
	b.Authors, ok = removeByID(b.Authors, id, authorID)
	return ok
}

func (b *Book) HasCategory(id int64) bool {
	return indexOf(b.Categories, id, categoryID) >= 0
}

func (b *Book) ReplaceCategory(s category.Snapshot) bool {
	var ok bool
	b.Categories, ok = replaceByID(b.Categories, s.ID, s, categoryID)
	return ok
}

func (b *Book) RemoveCategory(id int64) bool {
	var ok bool
	b.Categories, ok = removeByID(b.Categories, id, categoryID)
	return ok
}

// Normalize collapses duplicate embedded entries, first occurrence wins,
// and turns nil sets into empty ones so stored documents always carry both arrays.
func (b *Book) Normalize() {
	b.Authors = DedupeAuthors(b.Authors)
	b.Categories = DedupeCategories(b.Categories)
}

func DedupeAuthors(in []author.Snapshot) []author.Snapshot {
	return dedupe(in, authorID)
}

func DedupeCategories(in []category.Snapshot) []category.Snapshot {
	return dedupe(in, categoryID)
}

func indexOf[T any](items []T, id int64, idOf func(T) int64) int {
	for i, it := range items {
		if idOf(it) == id {
			return i
		}
	}
	return -1
}

func removeByID[T any](items []T, id int64, idOf func(T) int64) ([]T, bool) {
	out := make([]T, 0, len(items))
	removed := false
	for _, it := range items {
		if idOf(it) == id {
			removed = true
			continue
		}
		out = append(out, it)
	}
	return out, removed
}

// replaceByID is positional removal plus append, not an in-place patch.
func replaceByID[T any](items []T, id int64, repl T, idOf func(T) int64) ([]T, bool) {
	out, found := removeByID(items, id, idOf)
	if !found {
		return items, false
	}
	return append(out, repl), true
}

func dedupe[T any](items []T, idOf func(T) int64) []T {
	seen := make(map[int64]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, it := range items {
		id := idOf(it)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, it)
	}
	return out
}
