// Package store persists classified contract examples in sqlite so the
// similarity memory survives across batch runs. The database is a single
// examples table; the memory layer keeps its own in-RAM index and treats the
// store as an append-only journal.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"defrec/internal/logging"
	"defrec/internal/memory"
)

const schema = `
CREATE TABLE IF NOT EXISTS examples (
	id          TEXT PRIMARY KEY,
	description TEXT NOT NULL,
	fields      TEXT NOT NULL,
	added_at    TIMESTAMP NOT NULL
);
`

// Store is a sqlite-backed example journal. It implements memory.Persister.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the sqlite database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open example store: %w", err)
	}
	// modernc sqlite serializes writes itself; a single connection avoids
	// SQLITE_BUSY on concurrent appends.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create examples table: %w", err)
	}

	logging.Get(logging.CategoryStore).Sugar().Debugw("example store open", "path", path)
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// LoadAll returns every stored example, oldest first.
func (s *Store) LoadAll(ctx context.Context) ([]memory.Example, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, description, fields FROM examples ORDER BY added_at, id`)
	if err != nil {
		return nil, fmt.Errorf("load examples: %w", err)
	}
	defer rows.Close()

	var out []memory.Example
	for rows.Next() {
		var ex memory.Example
		var fieldsJSON string
		if err := rows.Scan(&ex.ID, &ex.Description, &fieldsJSON); err != nil {
			return nil, fmt.Errorf("scan example: %w", err)
		}
		if err := json.Unmarshal([]byte(fieldsJSON), &ex.Fields); err != nil {
			// A corrupt row should not poison the whole memory.
			logging.Get(logging.CategoryStore).Sugar().Warnw("skipping corrupt example row",
				"id", ex.ID, "error", err)
			continue
		}
		out = append(out, ex)
	}
	return out, rows.Err()
}

// Add journals one example.
func (s *Store) Add(ctx context.Context, ex memory.Example) error {
	fieldsJSON, err := json.Marshal(ex.Fields)
	if err != nil {
		return fmt.Errorf("encode example fields: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO examples (id, description, fields, added_at) VALUES (?, ?, ?, ?)`,
		ex.ID, ex.Description, string(fieldsJSON), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert example: %w", err)
	}
	return nil
}

// Count returns the number of stored examples.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM examples`).Scan(&n)
	return n, err
}
