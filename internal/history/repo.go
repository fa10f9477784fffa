// Package history persists a local audit trail of executed sign-off actions.
// The remote store stays the source of truth for approval state; this log
// only answers "who did what, when, and did it stick".
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Outcomes recorded per action
const (
	OutcomeCommitted = "COMMITTED"
	OutcomeFailed    = "FAILED"
)

// Entry is one executed transition, single or bulk item
type Entry struct {
	ID         int64
	ApprovalID string
	ActorEmail string
	Action     string
	Outcome    string
	Reason     string
	CreatedAt  time.Time
}

// Repository handles action-log database operations
type Repository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRepository creates a new action-log repository
func NewRepository(db *sql.DB, logger *zap.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Record appends an entry to the action log
func (r *Repository) Record(ctx context.Context, entry Entry) error {
	query := `
		INSERT INTO action_log (approval_id, actor_email, action, outcome, reason)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		entry.ApprovalID,
		entry.ActorEmail,
		entry.Action,
		entry.Outcome,
		entry.Reason,
	)
	if err != nil {
		r.logger.Error("Failed to record action", zap.String("approval_id", entry.ApprovalID), zap.Error(err))
		return fmt.Errorf("failed to record action: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		entry.ID = id
	}
	return nil
}

// ListByApproval retrieves the log entries for one approval, newest first
func (r *Repository) ListByApproval(ctx context.Context, approvalID string, limit int) ([]Entry, error) {
	query := `
		SELECT id, approval_id, actor_email, action, outcome, reason, created_at
		FROM action_log
		WHERE approval_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, approvalID, limit)
	if err != nil {
		r.logger.Error("Failed to list action log", zap.String("approval_id", approvalID), zap.Error(err))
		return nil, fmt.Errorf("failed to list action log: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		if err := rows.Scan(
			&entry.ID,
			&entry.ApprovalID,
			&entry.ActorEmail,
			&entry.Action,
			&entry.Outcome,
			&entry.Reason,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan action log entry: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
