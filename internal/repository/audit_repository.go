package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/parkiq/parkiq-server/internal/model"
)

// AuditRepo appends and reads the audit trail.	 Writes are best-effort from
// the engine's point of view: a failed audit insert never fails the action
// it describes.
type AuditRepo struct {
	db *sql.DB
}

// NewAuditRepo returns a new AuditRepo bound to the provided database.
func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{db: db} }

// Record appends one audit entry.
func (r *AuditRepo) Record(ctx context.Context, userID, action, details string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (timestamp, user_id, action, details) VALUES (?, ?, ?, ?)`,
		time.Now().UTC(), userID, action, details)
	return err
}

// Recent returns the newest entries joined with requester names.
func (r *AuditRepo) Recent(ctx context.Context, limit int) ([]model.AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT a.id, a.timestamp, a.user_id, COALESCE(u.name, ''), a.action, a.details
		 FROM audit_logs a LEFT JOIN users u ON a.user_id = u.id
		 ORDER BY a.timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.UserID, &e.UserName, &e.Action, &e.Details); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
