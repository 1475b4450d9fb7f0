// CLAUDE:SUMMARY Audit trail for docparse operations: SQLite table, async logger, kit middleware, retention cleanup.
// Package observability records every docparse operation (parse, detect)
// in an audit_log table: who called it over which transport, what it was
// asked, how it ended and how long it took.
package observability

import "database/sql"

// Schema is the DDL for the audit trail.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_log (
    entry_id TEXT PRIMARY KEY,
    timestamp INTEGER NOT NULL,
    operation TEXT NOT NULL,
    transport TEXT NOT NULL,
    request_id TEXT,
    remote_addr TEXT,
    parameters TEXT NOT NULL DEFAULT '{}',
    result TEXT,
    error_code TEXT,
    error_message TEXT,
    duration_ms INTEGER,
    status TEXT NOT NULL CHECK(status IN ('success','error','timeout','cancelled')),
    created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_log(timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_audit_operation ON audit_log(operation, timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_audit_status ON audit_log(status);
`

// Init applies the audit schema to db.
func Init(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
