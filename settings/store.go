package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Schema for the settings table. A single row holds the whole record as a
// JSON blob; there are no partial updates.
const Schema = `
CREATE TABLE IF NOT EXISTS settings (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	record TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// Store persists the Settings record in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store backed by the given database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Init creates the settings table if it doesn't exist.
func (s *Store) Init() error {
	_, err := s.db.Exec(Schema)
	return err
}

// Get reads the persisted record. When nothing has been saved yet it
// returns Default() without error.
func (s *Store) Get(ctx context.Context) (Settings, error) {
	var blob string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM settings WHERE id = 1`).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return Default(), nil
	}
	if err != nil {
		return Default(), fmt.Errorf("settings: read: %w", err)
	}

	rec := Default()
	if err := json.Unmarshal([]byte(blob), &rec); err != nil {
		return Default(), fmt.Errorf("settings: decode: %w", err)
	}
	return rec, nil
}

// Set replaces the persisted record. Last write wins.
func (s *Store) Set(ctx context.Context, rec Settings) error {
	blob, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("settings: encode: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO settings (id, record, updated_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET record = excluded.record, updated_at = excluded.updated_at`,
		string(blob), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("settings: write: %w", err)
	}
	return nil
}
