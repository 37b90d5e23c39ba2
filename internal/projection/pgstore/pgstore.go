// Package pgstore keeps projection documents as JSONB rows in PostgreSQL.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"library-sync/internal/projection"
	"library-sync/pkg/database"
)

// ErrSchemaMissing means the documents table does not exist; call Migrate.
var ErrSchemaMissing = errors.New("projection_documents table missing")

// One table holds every collection. The GIN index serves the @> containment
// lookups behind FindEmbedding.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS projection_documents (
		collection TEXT        NOT NULL,
		id         BIGINT      NOT NULL,
		doc        JSONB       NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (collection, id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_projection_documents_doc
		ON projection_documents USING GIN (doc jsonb_path_ops)`,
}

type Store struct {
	pool *pgxpool.Pool
}

var _ projection.Store = (*Store)(nil)

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate creates the documents table and its index if missing.
func (s *Store) Migrate(ctx context.Context) error {
	err := database.WithTransaction(ctx, s.pool, func(tx pgx.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("migrate projection schema: %w", err)
	}
	return nil
}

func (s *Store) Find(ctx context.Context, c projection.Collection, id int64) (json.RawMessage, error) {
	const query = `SELECT doc FROM projection_documents WHERE collection = $1 AND id = $2`

	var doc []byte
	err := s.pool.QueryRow(ctx, query, string(c), id).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, projection.NotFound(c, id)
		}
		return nil, wrap("find", c, id, err)
	}
	return doc, nil
}

func (s *Store) Insert(ctx context.Context, c projection.Collection, id int64, doc json.RawMessage) error {
	const query = `
		INSERT INTO projection_documents (collection, id, doc, updated_at)
		VALUES ($1, $2, $3::jsonb, now())
		ON CONFLICT (collection, id)
		DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()
	`

	if _, err := s.pool.Exec(ctx, query, string(c), id, string(doc)); err != nil {
		return wrap("insert", c, id, err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, c projection.Collection, id int64, fields map[string]any) error {
	if err := projection.CheckFields(fields); err != nil {
		return err
	}
	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode patch for %s %d: %w", c, id, err)
	}

	// jsonb || merges at the top level only, which is exactly the update contract.
	const query = `
		UPDATE projection_documents
		SET doc = doc || $3::jsonb, updated_at = now()
		WHERE collection = $1 AND id = $2
	`

	tag, err := s.pool.Exec(ctx, query, string(c), id, string(patch))
	if err != nil {
		return wrap("update", c, id, err)
	}
	if tag.RowsAffected() == 0 {
		return projection.NotFound(c, id)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, c projection.Collection, id int64) error {
	const query = `DELETE FROM projection_documents WHERE collection = $1 AND id = $2`

	tag, err := s.pool.Exec(ctx, query, string(c), id)
	if err != nil {
		return wrap("delete", c, id, err)
	}
	if tag.RowsAffected() == 0 {
		return projection.NotFound(c, id)
	}
	return nil
}

func (s *Store) FindEmbedding(ctx context.Context, ref projection.EmbeddedRef, id int64) ([]json.RawMessage, error) {
	filter, err := containment(ref, id)
	if err != nil {
		return nil, err
	}

	const query = `
		SELECT doc FROM projection_documents
		WHERE collection = $1 AND doc @> $2::jsonb
		ORDER BY id
	`
	return s.collect(ctx, query, string(ref.Collection), filter)
}

func (s *Store) List(ctx context.Context, c projection.Collection) ([]json.RawMessage, error) {
	const query = `SELECT doc FROM projection_documents WHERE collection = $1 ORDER BY id`
	return s.collect(ctx, query, string(c))
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) collect(ctx context.Context, query string, args ...any) ([]json.RawMessage, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(fmt.Errorf("query documents: %w", err))
	}
	docs, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, fmt.Errorf("scan documents: %w", err)
	}

	out := make([]json.RawMessage, len(docs))
	for i, doc := range docs {
		out[i] = doc
	}
	return out, nil
}

// containment builds the right-hand side of doc @> for an embedded reference:
// {"authors":[{"id":1}]} for arrays, {"location":{"id":9}} for single objects.
func containment(ref projection.EmbeddedRef, id int64) (string, error) {
	if !projection.ValidField(ref.Field) {
		return "", fmt.Errorf("invalid embedded field %q", ref.Field)
	}
	entry := map[string]int64{"id": id}

	var filter map[string]any
	if ref.Many {
		filter = map[string]any{ref.Field: []map[string]int64{entry}}
	} else {
		filter = map[string]any{ref.Field: entry}
	}

	b, err := json.Marshal(filter)
	if err != nil {
		return "", fmt.Errorf("encode containment filter: %w", err)
	}
	return string(b), nil
}

func wrap(op string, c projection.Collection, id int64, err error) error {
	return classify(fmt.Errorf("%s %s %d: %w", op, c, id, err))
}

func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "42P01" {
		return fmt.Errorf("%w: %w", ErrSchemaMissing, err)
	}
	return err
}
