// Package memstore is an in-memory projection.Store used by tests and by
// local runs with PROJECTION_BACKEND=memory.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"library-sync/internal/projection"
)

type Store struct {
	mu   sync.RWMutex
	docs map[projection.Collection]map[int64]json.RawMessage
}

var _ projection.Store = (*Store)(nil)

func New() *Store {
	return &Store{docs: make(map[projection.Collection]map[int64]json.RawMessage)}
}

func (s *Store) Find(_ context.Context, c projection.Collection, id int64) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, ok := s.docs[c][id]
	if !ok {
		return nil, projection.NotFound(c, id)
	}
	return clone(raw), nil
}

func (s *Store) Insert(_ context.Context, c projection.Collection, id int64, doc json.RawMessage) error {
	if !json.Valid(doc) {
		return fmt.Errorf("insert %s %d: invalid json", c, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.docs[c] == nil {
		s.docs[c] = make(map[int64]json.RawMessage)
	}
	s.docs[c][id] = clone(doc)
	return nil
}

func (s *Store) Update(_ context.Context, c projection.Collection, id int64, fields map[string]any) error {
	if err := projection.CheckFields(fields); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok := s.docs[c][id]
	if !ok {
		return projection.NotFound(c, id)
	}
	merged, err := projection.MergeFields(raw, fields)
	if err != nil {
		return fmt.Errorf("update %s %d: %w", c, id, err)
	}
	s.docs[c][id] = merged
	return nil
}

func (s *Store) Delete(_ context.Context, c projection.Collection, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[c][id]; !ok {
		return projection.NotFound(c, id)
	}
	delete(s.docs[c], id)
	return nil
}

func (s *Store) FindEmbedding(_ context.Context, ref projection.EmbeddedRef, id int64) ([]json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []json.RawMessage
	for _, docID := range s.sortedIDs(ref.Collection) {
		raw := s.docs[ref.Collection][docID]
		ok, err := projection.Embeds(raw, ref, id)
		if err != nil {
			return nil, fmt.Errorf("%s %d: %w", ref.Collection, docID, err)
		}
		if ok {
			out = append(out, clone(raw))
		}
	}
	return out, nil
}

func (s *Store) List(_ context.Context, c projection.Collection) ([]json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.sortedIDs(c)
	out := make([]json.RawMessage, 0, len(ids))
	for _, id := range ids {
		out = append(out, clone(s.docs[c][id]))
	}
	return out, nil
}

func (s *Store) Ping(context.Context) error { return nil }

// Len returns the number of documents in c.
func (s *Store) Len(c projection.Collection) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs[c])
}

// Dump returns a copy of every document, keyed by collection then id.
func (s *Store) Dump() map[projection.Collection]map[int64]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[projection.Collection]map[int64]string, len(s.docs))
	for c, docs := range s.docs {
		out[c] = make(map[int64]string, len(docs))
		for id, raw := range docs {
			out[c][id] = string(raw)
		}
	}
	return out
}

func (s *Store) sortedIDs(c projection.Collection) []int64 {
	ids := make([]int64, 0, len(s.docs[c]))
	for id := range s.docs[c] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func clone(raw json.RawMessage) json.RawMessage {
	return append(json.RawMessage(nil), raw...)
}
