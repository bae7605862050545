package database

import (
	"context"
	"fmt"

	"github.com/mechanicbano/admin/internal/audit"
)

const createAuditTable = `
	CREATE TABLE IF NOT EXISTS admin_audit_log (
		id         TEXT PRIMARY KEY,
		actor      TEXT NOT NULL,
		screen     TEXT NOT NULL,
		action     TEXT NOT NULL,
		target     TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS admin_audit_log_created_at_idx ON admin_audit_log (created_at DESC);
`

// AuditRepository stores the admin audit trail in Postgres
type AuditRepository struct {
	db *DB
}

// NewAuditRepository creates a new repository
func NewAuditRepository(db *DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Migrate creates the audit table when missing
func (r *AuditRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.Pool.Exec(ctx, createAuditTable); err != nil {
		return fmt.Errorf("failed to create audit table: %w", err)
	}
	return nil
}

// Record inserts an entry
func (r *AuditRepository) Record(ctx context.Context, e audit.Entry) error {
	query := `
		INSERT INTO admin_audit_log (id, actor, screen, action, target, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Pool.Exec(ctx, query, e.ID, e.Actor, e.Screen, e.Action, e.Target, e.At)
	if err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}

	return nil
}

// Recent returns the latest entries, newest first
func (r *AuditRepository) Recent(ctx context.Context, limit int) ([]audit.Entry, error) {
	query := `
		SELECT id, actor, screen, action, target, created_at
		FROM admin_audit_log
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.Pool.Query(ctx, query, audit.NormalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	entries := []audit.Entry{}
	for rows.Next() {
		var e audit.Entry
		if err := rows.Scan(&e.ID, &e.Actor, &e.Screen, &e.Action, &e.Target, &e.At); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit entries: %w", err)
	}

	return entries, nil
}
