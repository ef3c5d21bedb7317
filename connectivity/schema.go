package connectivity

import (
	"database/sql"

	"github.com/Lanshuns/ebutia/dbopen"
)

// Schema defines the routes table that drives the router. Each row maps a
// relay service name to a dispatch strategy.
//
// Strategies:
//   - "local": dispatch to the in-memory Handler registered via RegisterLocal.
//   - "http":  POST the payload to a remote relay endpoint.
//   - "noop":  silently succeed (service disabled).
//
// The config column holds per-route JSON (timeouts, content type). Any
// write to this table bumps PRAGMA data_version, which the Watch loop
// detects to trigger a reload.
const Schema = `
CREATE TABLE IF NOT EXISTS routes (
    service_name TEXT PRIMARY KEY,
    strategy     TEXT NOT NULL CHECK(strategy IN ('local', 'http', 'noop')),
    endpoint     TEXT,
    config       TEXT DEFAULT '{}',
    updated_at   INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);

CREATE TRIGGER IF NOT EXISTS trg_routes_updated_at
AFTER UPDATE ON routes
FOR EACH ROW
BEGIN
    UPDATE routes SET updated_at = strftime('%s', 'now') WHERE service_name = NEW.service_name;
END;
`

// OpenDB opens the routing database with the relay's standard pragmas.
func OpenDB(path string) (*sql.DB, error) {
	return dbopen.Open(path, dbopen.WithBusyTimeout(5000), dbopen.WithSchema(Schema))
}

// Init creates the routes table if it doesn't exist.
func Init(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
