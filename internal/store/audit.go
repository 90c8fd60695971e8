package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hyperengineering/standup/internal/types"
)

// insertAudit writes entry, assigning its ID.
func insertAudit(ctx context.Context, q execContext, entry *types.AuditEntry) error {
	entry.ID = newID()
	_, err := q.ExecContext(ctx, `
		INSERT INTO plan_audit (id, plan_id, user_id, action, actor, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.PlanID, entry.UserID, string(entry.Action), entry.Actor,
		stringOrNil(entry.Reason), formatTime(entry.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListAudit returns a plan's audit trail, oldest first.
func (s *SQLiteStore) ListAudit(ctx context.Context, planID string) ([]types.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, plan_id, user_id, action, actor, reason, created_at FROM plan_audit
		WHERE plan_id = ?
		ORDER BY created_at, id
	`, planID)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer rows.Close()

	entries := []types.AuditEntry{}
	for rows.Next() {
		var e types.AuditEntry
		var action, createdAt string
		var reason sql.NullString
		if err := rows.Scan(&e.ID, &e.PlanID, &e.UserID, &action, &e.Actor, &reason, &createdAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Action = types.AuditAction(action)
		e.Reason = nullableString(reason)
		e.CreatedAt = parseTime(createdAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit: %w", err)
	}
	return entries, nil
}
