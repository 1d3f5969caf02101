package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps each collection in its own table as (id, doc jsonb).
type PostgresStore struct {
	pool *pgxpool.Pool // nil inside a transaction
	q    querier
}

// NewPostgresStore creates a store on top of the given pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, q: pool}
}

func table(coll string) string {
	return pgx.Identifier{coll}.Sanitize()
}

// Insert stores doc under a fresh UUID.
func (s *PostgresStore) Insert(ctx context.Context, coll string, doc Document) (Document, error) {
	body, err := json.Marshal(doc.WithoutID())
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}

	row := s.q.QueryRow(ctx,
		`INSERT INTO `+table(coll)+` (id, doc) VALUES ($1, $2::jsonb) RETURNING id::text, doc`,
		uuid.NewString(), string(body),
	)
	out, err := scanDocument(row)
	if err != nil {
		return nil, fmt.Errorf("insert into %s: %w", coll, err)
	}
	return out, nil
}

// FindByID fetches a document by its UUID.
func (s *PostgresStore) FindByID(ctx context.Context, coll, id string) (Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	row := s.q.QueryRow(ctx, `SELECT id::text, doc FROM `+table(coll)+` WHERE id = $1`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find %s by id: %w", coll, err)
	}
	return doc, nil
}

// Find returns every document matching filter, oldest first.
func (s *PostgresStore) Find(ctx context.Context, coll string, filter Filter) ([]Document, error) {
	where, args := filterClause(filter)
	rows, err := s.q.Query(ctx,
		`SELECT id::text, doc FROM `+table(coll)+where+` ORDER BY created_at, id`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", coll, err)
	}
	docs, err := collectDocuments(rows)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", coll, err)
	}
	return docs, nil
}

// Replace overwrites the document body with m.Set and appends m.Append onto the
// stored arrays in a single statement, so concurrent appends are never lost.
func (s *PostgresStore) Replace(ctx context.Context, coll, id string, m Mutation) (Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	body, err := json.Marshal(m.Set.WithoutID(m.appendKeys()...))
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}

	expr := "$2::jsonb"
	args := []any{id, string(body)}
	for _, key := range m.appendKeys() {
		vals := m.Append[key]
		if vals == nil {
			vals = []string{}
		}
		encoded, err := json.Marshal(vals)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", key, err)
		}
		n := len(args) + 1
		expr += fmt.Sprintf(
			" || jsonb_build_object($%d::text, COALESCE(doc->$%d::text, '[]'::jsonb) || $%d::jsonb)",
			n, n, n+1,
		)
		args = append(args, key, string(encoded))
	}

	row := s.q.QueryRow(ctx,
		`UPDATE `+table(coll)+` SET doc = `+expr+` WHERE id = $1 RETURNING id::text, doc`,
		args...,
	)
	doc, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("replace %s: %w", coll, err)
	}
	return doc, nil
}

// DeleteByID removes one document and returns it.
func (s *PostgresStore) DeleteByID(ctx context.Context, coll, id string) (Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	row := s.q.QueryRow(ctx, `DELETE FROM `+table(coll)+` WHERE id = $1 RETURNING id::text, doc`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("delete %s: %w", coll, err)
	}
	return doc, nil
}

// DeleteMany removes every document matching filter and returns them.
func (s *PostgresStore) DeleteMany(ctx context.Context, coll string, filter Filter) ([]Document, error) {
	if len(filter) == 0 {
		return nil, errEmptyFilter
	}

	where, args := filterClause(filter)
	rows, err := s.q.Query(ctx, `DELETE FROM `+table(coll)+where+` RETURNING id::text, doc`, args...)
	if err != nil {
		return nil, fmt.Errorf("delete many %s: %w", coll, err)
	}
	docs, err := collectDocuments(rows)
	if err != nil {
		return nil, fmt.Errorf("delete many %s: %w", coll, err)
	}
	return docs, nil
}

// WithTx runs fn inside a database transaction. Nested calls reuse the outer one.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	if s.pool == nil {
		return fn(ctx, s)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, &PostgresStore{q: tx})
	})
}

// Close releases the pool.
func (s *PostgresStore) Close(context.Context) error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// filterClause renders filter as a WHERE clause comparing doc->>key to values.
// Only JSON strings match, so a stored number 5 is not equal to "5".
func filterClause(filter Filter) (string, []any) {
	if len(filter) == 0 {
		return "", nil
	}
	conds := make([]string, 0, len(filter))
	args := make([]any, 0, 2*len(filter))
	for _, key := range filter.keys() {
		n := len(args) + 1
		conds = append(conds, fmt.Sprintf("jsonb_typeof(doc->$%d::text) = 'string' AND doc->>$%d::text = $%d", n, n, n+1))
		args = append(args, key, filter[key])
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanDocument(row pgx.Row) (Document, error) {
	var (
		id  string
		raw []byte
	)
	if err := row.Scan(&id, &raw); err != nil {
		return nil, err
	}
	return decodeDocument(id, raw)
}

func collectDocuments(rows pgx.Rows) ([]Document, error) {
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

func decodeDocument(id string, raw []byte) (Document, error) {
	doc := Document{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", id, err)
	}
	doc[IDKey] = id
	return doc, nil
}
