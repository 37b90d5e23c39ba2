// Package surrealstore keeps projection documents in SurrealDB.
//
// Each record <collection>:<id> holds two fields: doc, the document as native
// SurrealDB values so embedded ids can be filtered on, and body, the exact JSON
// text handed to Insert, which is what reads return.
package surrealstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"

	surrealdb "github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/models"

	"library-sync/internal/projection"
)

type Store struct {
	db *surrealdb.DB
}

var _ projection.Store = (*Store)(nil)

func New(db *surrealdb.DB) *Store {
	return &Store{db: db}
}

type record struct {
	Doc  any    `json:"doc"`
	Body string `json:"body"`
}

func recordID(c projection.Collection, id int64) models.RecordID {
	return models.NewRecordID(string(c), id)
}

func (s *Store) Find(ctx context.Context, c projection.Collection, id int64) (json.RawMessage, error) {
	bodies, err := queryBodies(ctx, s.db, `SELECT VALUE body FROM $rid`, map[string]any{
		"rid": recordID(c, id),
	})
	if err != nil {
		return nil, fmt.Errorf("find %s %d: %w", c, id, err)
	}
	if len(bodies) == 0 {
		return nil, projection.NotFound(c, id)
	}
	return bodies[0], nil
}

func (s *Store) Insert(ctx context.Context, c projection.Collection, id int64, doc json.RawMessage) error {
	native, err := normalize(doc)
	if err != nil {
		return fmt.Errorf("insert %s %d: %w", c, id, err)
	}
	_, err = surrealdb.Query[any](ctx, s.db, `UPSERT $rid CONTENT $content`, map[string]any{
		"rid":     recordID(c, id),
		"content": record{Doc: native, Body: string(doc)},
	})
	if err != nil {
		return fmt.Errorf("insert %s %d: %w", c, id, err)
	}
	return nil
}

// Update reads, merges and rewrites the record. The synchronizer is the only
// writer, so the read-modify-write window is never contended.
func (s *Store) Update(ctx context.Context, c projection.Collection, id int64, fields map[string]any) error {
	if err := projection.CheckFields(fields); err != nil {
		return err
	}
	current, err := s.Find(ctx, c, id)
	if err != nil {
		return err
	}
	merged, err := projection.MergeFields(current, fields)
	if err != nil {
		return fmt.Errorf("update %s %d: %w", c, id, err)
	}
	return s.Insert(ctx, c, id, merged)
}

func (s *Store) Delete(ctx context.Context, c projection.Collection, id int64) error {
	res, err := surrealdb.Query[[]record](ctx, s.db, `DELETE $rid RETURN BEFORE`, map[string]any{
		"rid": recordID(c, id),
	})
	if err != nil {
		return fmt.Errorf("delete %s %d: %w", c, id, err)
	}
	if res == nil || len(*res) == 0 || len((*res)[0].Result) == 0 {
		return projection.NotFound(c, id)
	}
	return nil
}

func (s *Store) FindEmbedding(ctx context.Context, ref projection.EmbeddedRef, id int64) ([]json.RawMessage, error) {
	query, err := embeddingQuery(ref)
	if err != nil {
		return nil, err
	}
	bodies, err := queryBodies(ctx, s.db, query, map[string]any{
		"tb": string(ref.Collection),
		"id": id,
	})
	if err != nil {
		return nil, fmt.Errorf("find embedding %s: %w", ref, err)
	}
	return sortByID(bodies)
}

func (s *Store) List(ctx context.Context, c projection.Collection) ([]json.RawMessage, error) {
	bodies, err := queryBodies(ctx, s.db, `SELECT VALUE body FROM type::table($tb)`, map[string]any{
		"tb": string(c),
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c, err)
	}
	return sortByID(bodies)
}

func (s *Store) Ping(ctx context.Context) error {
	_, err := surrealdb.Query[bool](ctx, s.db, `RETURN true`, nil)
	return err
}

func embeddingQuery(ref projection.EmbeddedRef) (string, error) {
	if !projection.ValidField(ref.Field) {
		return "", fmt.Errorf("invalid embedded field %q", ref.Field)
	}
	if ref.Many {
		return fmt.Sprintf(`SELECT VALUE body FROM type::table($tb) WHERE $id INSIDE doc.%s.id`, ref.Field), nil
	}
	return fmt.Sprintf(`SELECT VALUE body FROM type::table($tb) WHERE doc.%s.id = $id`, ref.Field), nil
}

func queryBodies(ctx context.Context, db *surrealdb.DB, query string, vars map[string]any) ([]json.RawMessage, error) {
	res, err := surrealdb.Query[[]string](ctx, db, query, vars)
	if err != nil {
		return nil, err
	}
	if res == nil || len(*res) == 0 {
		return nil, nil
	}
	bodies := (*res)[0].Result
	out := make([]json.RawMessage, 0, len(bodies))
	for _, body := range bodies {
		out = append(out, json.RawMessage(body))
	}
	return out, nil
}

// normalize decodes JSON into maps and slices with integral numbers as int64,
// so SurrealDB compares embedded ids as integers.
func normalize(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return convertNumbers(v), nil
}

func convertNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			t[k] = convertNumbers(item)
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = convertNumbers(item)
		}
		return t
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		f, _ := t.Float64()
		return f
	default:
		return v
	}
}

func sortByID(docs []json.RawMessage) ([]json.RawMessage, error) {
	type keyed struct {
		id  int64
		doc json.RawMessage
	}
	items := make([]keyed, 0, len(docs))
	for _, doc := range docs {
		id, err := projection.DocumentID(doc)
		if err != nil {
			return nil, err
		}
		items = append(items, keyed{id: id, doc: doc})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].id < items[j].id })

	out := make([]json.RawMessage, len(items))
	for i, it := range items {
		out[i] = it.doc
	}
	return out, nil
}
