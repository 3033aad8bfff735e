package vocab

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pageglot/pageglot/pkg/lang"
	"github.com/pageglot/pageglot/pkg/types"
)

// Schema is the SQL DDL for the vocab_entries table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS vocab_entries (
    id         BIGSERIAL PRIMARY KEY,
    text       TEXT NOT NULL,
    literal    TEXT NOT NULL DEFAULT '',
    contextual TEXT NOT NULL DEFAULT '',
    language   TEXT NOT NULL,
    chunk_type TEXT NOT NULL DEFAULT 'single_word',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (text, language)
);
CREATE INDEX IF NOT EXISTS idx_vocab_entries_language ON vocab_entries(language);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database.
type PostgresStore struct {
	db DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new [PostgresStore] that uses the given database
// connection or pool. The caller is responsible for calling
// [PostgresStore.Migrate] to ensure the schema exists before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL against the database, creating the
// vocab_entries table and index if they do not already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("vocab: migrate: %w", err)
	}
	return nil
}

// Save upserts an entry keyed by (Text, Language). Re-saving an existing
// entry refreshes its translations but keeps its ID and creation time.
func (s *PostgresStore) Save(ctx context.Context, e Entry) (Entry, error) {
	const query = `
		INSERT INTO vocab_entries (text, literal, contextual, language, chunk_type)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (text, language) DO UPDATE SET
			literal = EXCLUDED.literal,
			contextual = EXCLUDED.contextual,
			chunk_type = EXCLUDED.chunk_type
		RETURNING id, created_at`

	err := s.db.QueryRow(ctx, query,
		e.Text, e.Literal, e.Contextual, string(e.Language), string(e.Type),
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("vocab: save %q: %w", e.Text, err)
	}
	return e, nil
}

// List returns up to limit entries for a language, newest first. A zero
// language lists all languages.
func (s *PostgresStore) List(ctx context.Context, language lang.Tag, limit int) ([]Entry, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if language == lang.Unknown {
		const query = `
			SELECT id, text, literal, contextual, language, chunk_type, created_at
			FROM vocab_entries
			ORDER BY created_at DESC, id DESC
			LIMIT $1`
		rows, err = s.db.Query(ctx, query, nullableLimit(limit))
	} else {
		const query = `
			SELECT id, text, literal, contextual, language, chunk_type, created_at
			FROM vocab_entries
			WHERE language = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2`
		rows, err = s.db.Query(ctx, query, string(language), nullableLimit(limit))
	}
	if err != nil {
		return nil, fmt.Errorf("vocab: list: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			langStr string
			typStr  string
		)
		if err := rows.Scan(&e.ID, &e.Text, &e.Literal, &e.Contextual, &langStr, &typStr, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("vocab: list scan: %w", err)
		}
		e.Language = lang.Tag(langStr)
		e.Type = types.ChunkType(typStr).Normalize()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vocab: list: %w", err)
	}
	return entries, nil
}

// Delete removes an entry by ID.
func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM vocab_entries WHERE id = $1`
	tag, err := s.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("vocab: delete %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// nullableLimit converts a non-positive limit into SQL NULL, which Postgres
// treats as LIMIT ALL.
func nullableLimit(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}
