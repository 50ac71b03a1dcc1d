// Package sqlite provides a persistent audit store backed by SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/Grant-Gate/grantgate/internal/domain/audit"
)

const schema = `
CREATE TABLE IF NOT EXISTS access_records (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp     TEXT NOT NULL,
	agent_id      TEXT NOT NULL DEFAULT '',
	tool_id       TEXT NOT NULL DEFAULT '',
	decision      TEXT NOT NULL,
	reason        TEXT NOT NULL DEFAULT '',
	scopes        TEXT NOT NULL DEFAULT '',
	credential_id TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_access_records_timestamp ON access_records (timestamp);
`

// AuditStore implements audit.Store on a SQLite database file.
// Suitable for single-process durable audit retention; shared audit
// pipelines are out of scope for this core.
type AuditStore struct {
	db *sql.DB
}

// NewAuditStore opens (creating if needed) the database at path and
// ensures the schema exists.
func NewAuditStore(path string) (*AuditStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	// modernc sqlite serializes writes; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize audit schema: %w", err)
	}
	return &AuditStore{db: db}, nil
}

// Append stores access records.
func (s *AuditStore) Append(ctx context.Context, records ...audit.AccessRecord) error {
	const insert = `INSERT INTO access_records
		(timestamp, agent_id, tool_id, decision, reason, scopes, credential_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	for _, r := range records {
		_, err := s.db.ExecContext(ctx, insert,
			r.Timestamp.UTC().Format(time.RFC3339Nano),
			r.AgentID,
			r.ToolID,
			r.Decision,
			r.Reason,
			strings.Join(r.Scopes, " "),
			r.CredentialID,
		)
		if err != nil {
			return fmt.Errorf("failed to append audit record: %w", err)
		}
	}
	return nil
}

// Recent returns up to n of the most recent records, newest first.
func (s *AuditStore) Recent(ctx context.Context, n int) ([]audit.AccessRecord, error) {
	if n <= 0 {
		return nil, nil
	}

	const query = `SELECT timestamp, agent_id, tool_id, decision, reason, scopes, credential_id
		FROM access_records ORDER BY id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()

	var result []audit.AccessRecord
	for rows.Next() {
		var r audit.AccessRecord
		var ts, scopes string
		if err := rows.Scan(&ts, &r.AgentID, &r.ToolID, &r.Decision, &r.Reason, &scopes, &r.CredentialID); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		r.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("malformed timestamp in audit record: %w", err)
		}
		if scopes != "" {
			r.Scopes = strings.Fields(scopes)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// Close closes the database.
func (s *AuditStore) Close() error {
	return s.db.Close()
}

// Compile-time interface verification.
var _ audit.Store = (*AuditStore)(nil)
