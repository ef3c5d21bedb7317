package transcript

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Lanshuns/ebutia/dbopen"
)

// CacheTTL bounds how long a cached transcript is served before the page
// is scraped again.
const CacheTTL = 24 * time.Hour

// CacheSchema creates the transcript cache table.
const CacheSchema = `
CREATE TABLE IF NOT EXISTS transcripts (
	video_id   TEXT PRIMARY KEY,
	record     TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
`

// Cache stores extracted transcripts in SQLite with a fixed TTL. Expired
// rows are deleted when read.
type Cache struct {
	db  *sql.DB
	now func() time.Time
}

// NewCache wraps db, which must already contain CacheSchema.
func NewCache(db *sql.DB) *Cache {
	return &Cache{db: db, now: time.Now}
}

// Get returns the cached transcript for videoID, or nil when the cache
// holds nothing fresh.
func (c *Cache) Get(ctx context.Context, videoID string) (*Data, error) {
	var (
		raw     string
		created int64
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT record, created_at FROM transcripts WHERE video_id = ?`,
		videoID).Scan(&raw, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("transcript: read cache: %w", err)
	}

	age := c.now().Sub(time.UnixMilli(created))
	if age >= CacheTTL {
		_, _ = dbopen.Exec(ctx, c.db, `DELETE FROM transcripts WHERE video_id = ?`, videoID)
		return nil, nil
	}

	var d Data
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, fmt.Errorf("transcript: decode cached record: %w", err)
	}
	return &d, nil
}

// Put stores d under videoID, replacing any previous row.
func (c *Cache) Put(ctx context.Context, videoID string, d *Data) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("transcript: encode record: %w", err)
	}
	_, err = dbopen.Exec(ctx, c.db, `
		INSERT INTO transcripts (video_id, record, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(video_id) DO UPDATE SET
			record = excluded.record,
			created_at = excluded.created_at`,
		videoID, string(raw), c.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("transcript: write cache: %w", err)
	}
	return nil
}
