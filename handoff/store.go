// Package handoff carries a prompt across a full page navigation.
//
// When a prompt cannot travel in the destination URL (too long, or the
// destination needs a script-driven fill), the sender writes a short-lived
// payload here before navigating and the receiver consumes it after the new
// page loads. Payloads are read at most once (read-then-delete) and expire
// after a fixed TTL regardless of consumption.
//
// Every send writes a tab-scoped key and the shared global key. The global
// entry is last-write-wins and exists as a fallback for receivers that
// cannot derive a tab id; two concurrent sends to different tabs keep their
// tab-scoped entries intact.
package handoff

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Lanshuns/ebutia/dbopen"
)

// TTL is the freshness window for a pending prompt.
const TTL = 60 * time.Second

// GlobalKey is the shared fallback storage key.
const GlobalKey = "pending_prompt"

// Key derives the storage key for a destination tab id. The zero id maps
// to the global key.
func Key(tabID int64) string {
	if tabID == 0 {
		return GlobalKey
	}
	return fmt.Sprintf("%s_%d", GlobalKey, tabID)
}

// Schema for the pending prompts table.
const Schema = `
CREATE TABLE IF NOT EXISTS pending_prompts (
	key TEXT PRIMARY KEY,
	prompt TEXT NOT NULL,
	delivery_mode TEXT NOT NULL DEFAULT '',
	target_url TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
`

// Payload is one pending prompt record.
type Payload struct {
	Prompt       string
	DeliveryMode string
	TargetURL    string
	CreatedAt    time.Time
}

// Store persists pending prompts in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore creates a Store backed by the given database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Init creates the pending prompts table if it doesn't exist.
func (s *Store) Init() error {
	_, err := s.db.Exec(Schema)
	return err
}

// Put writes the payload under the tab-scoped key (when tabID is non-zero)
// and always under the global key. A new write overwrites the prior value
// for each key.
func (s *Store) Put(ctx context.Context, p Payload, tabID int64) error {
	now := s.now().UnixMilli()

	keys := []string{GlobalKey}
	if tabID != 0 {
		keys = append(keys, Key(tabID))
	}

	return dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, k := range keys {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO pending_prompts (key, prompt, delivery_mode, target_url, created_at)
				 VALUES (?, ?, ?, ?, ?)
				 ON CONFLICT(key) DO UPDATE SET
					prompt = excluded.prompt,
					delivery_mode = excluded.delivery_mode,
					target_url = excluded.target_url,
					created_at = excluded.created_at`,
				k, p.Prompt, p.DeliveryMode, p.TargetURL, now)
			if err != nil {
				return fmt.Errorf("handoff: put %s: %w", k, err)
			}
		}
		return nil
	})
}

// Consume reads and deletes the freshest matching payload: the tab-scoped
// key is checked first (when tabID is non-zero), then the global key.
// A payload older than TTL is deleted on sight and not returned. Returns
// (nil, nil) when no live payload exists.
func (s *Store) Consume(ctx context.Context, tabID int64) (*Payload, error) {
	keys := []string{}
	if tabID != 0 {
		keys = append(keys, Key(tabID))
	}
	keys = append(keys, GlobalKey)

	var found *Payload
	err := dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, k := range keys {
			p, err := s.takeLocked(ctx, tx, k)
			if err != nil {
				return err
			}
			if p != nil {
				found = p
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// takeLocked reads one key inside tx, deleting the row whether it was
// fresh (consumed) or expired (cleanup on sight).
func (s *Store) takeLocked(ctx context.Context, tx *sql.Tx, key string) (*Payload, error) {
	var p Payload
	var createdAt int64
	err := tx.QueryRowContext(ctx,
		`SELECT prompt, delivery_mode, target_url, created_at FROM pending_prompts WHERE key = ?`,
		key).Scan(&p.Prompt, &p.DeliveryMode, &p.TargetURL, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("handoff: read %s: %w", key, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM pending_prompts WHERE key = ?`, key); err != nil {
		return nil, fmt.Errorf("handoff: delete %s: %w", key, err)
	}

	p.CreatedAt = time.UnixMilli(createdAt)
	if s.now().Sub(p.CreatedAt) >= TTL {
		return nil, nil
	}
	return &p, nil
}
