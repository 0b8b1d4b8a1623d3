package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DBLogger writes entries to PostgreSQL.
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a database logger. Call EnsureTable once at startup
// when the schema is not managed by migrations.
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &DBLogger{db: db}, nil
}

// EnsureTable creates the api_audit_log table if it does not exist.
func (l *DBLogger) EnsureTable(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS api_audit_log (
		id BIGSERIAL PRIMARY KEY,
		timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
		request_id VARCHAR(64) NOT NULL,
		action TEXT NOT NULL,
		route VARCHAR(255),
		user_id VARCHAR(255) NOT NULL,
		org_id VARCHAR(255),
		ip_address VARCHAR(45),
		user_agent TEXT,
		success BOOLEAN NOT NULL,
		status_code INTEGER NOT NULL,
		duration_ms BIGINT NOT NULL,
		error_code VARCHAR(64)
	);

	CREATE INDEX IF NOT EXISTS idx_api_audit_log_timestamp ON api_audit_log(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_api_audit_log_user_id ON api_audit_log(user_id);
	CREATE INDEX IF NOT EXISTS idx_api_audit_log_org_id ON api_audit_log(org_id);
	`
	if _, err := l.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to ensure api_audit_log table: %w", err)
	}
	return nil
}

// Log inserts one row.
func (l *DBLogger) Log(ctx context.Context, e *Entry) error {
	query := `
		INSERT INTO api_audit_log (
			timestamp, request_id, action, route, user_id, org_id, ip_address,
			user_agent, success, status_code, duration_ms, error_code
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := l.db.ExecContext(ctx, query,
		e.Timestamp, e.RequestID, e.Action, nullString(e.Route), e.UserID, nullString(e.OrgID),
		nullString(e.IP), nullString(e.UserAgent), e.Success, e.Status, e.DurationMs, nullString(e.ErrorCode),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Purge deletes entries older than before and returns how many were removed.
func (l *DBLogger) Purge(ctx context.Context, before time.Time) (int64, error) {
	res, err := l.db.ExecContext(ctx, `DELETE FROM api_audit_log WHERE timestamp < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to purge audit entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged audit entries: %w", err)
	}
	return n, nil
}
