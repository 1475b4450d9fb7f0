package shield

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema defines the rule tables. The single maintenance row starts off.
const Schema = `
CREATE TABLE IF NOT EXISTS rate_limits (
    endpoint       TEXT PRIMARY KEY,
    max_requests   INTEGER NOT NULL DEFAULT 60,
    window_seconds INTEGER NOT NULL DEFAULT 60,
    enabled        INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS maintenance (
    id      INTEGER PRIMARY KEY CHECK (id = 1),
    active  INTEGER NOT NULL DEFAULT 0,
    message TEXT NOT NULL DEFAULT 'service under maintenance'
);

INSERT OR IGNORE INTO maintenance (id, active, message)
VALUES (1, 0, 'service under maintenance');
`

// Init creates the shield tables if they don't exist.
func Init(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}

// SetRateLimit inserts or replaces the rule for endpoint ("METHOD /path").
func SetRateLimit(ctx context.Context, db *sql.DB, endpoint string, maxRequests, windowSeconds int) error {
	if maxRequests <= 0 || windowSeconds <= 0 {
		return fmt.Errorf("shield: rate limit for %s must be positive", endpoint)
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO rate_limits (endpoint, max_requests, window_seconds, enabled)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(endpoint) DO UPDATE SET
			max_requests = excluded.max_requests,
			window_seconds = excluded.window_seconds,
			enabled = 1`,
		endpoint, maxRequests, windowSeconds)
	return err
}

// DeleteRateLimit removes the rule for endpoint.
func DeleteRateLimit(ctx context.Context, db *sql.DB, endpoint string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM rate_limits WHERE endpoint = ?`, endpoint)
	return err
}

// SetMaintenance turns maintenance on or off. An empty message keeps the
// current one.
func SetMaintenance(ctx context.Context, db *sql.DB, active bool, message string) error {
	flag := 0
	if active {
		flag = 1
	}
	_, err := db.ExecContext(ctx, `
		UPDATE maintenance SET active = ?, message = COALESCE(NULLIF(?, ''), message)
		WHERE id = 1`, flag, message)
	return err
}
