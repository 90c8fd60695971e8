package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hyperengineering/standup/internal/types"
)

// AddGoalNote attaches a note to a goal.
func (s *SQLiteStore) AddGoalNote(ctx context.Context, goalID, userID, note string) (*types.GoalNote, error) {
	var created *types.GoalNote
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getGoal(ctx, tx, goalID); err != nil {
			return err
		}

		now := s.now()
		n := &types.GoalNote{
			ID:        newID(),
			GoalID:    goalID,
			UserID:    userID,
			Note:      strings.TrimSpace(note),
			CreatedAt: now,
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO goal_notes (id, goal_id, user_id, note, created_at) VALUES (?, ?, ?, ?, ?)
		`, n.ID, n.GoalID, n.UserID, n.Note, formatTime(now)); err != nil {
			return fmt.Errorf("insert goal note: %w", err)
		}
		created = n
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ListGoalNotes returns a goal's notes, oldest first.
func (s *SQLiteStore) ListGoalNotes(ctx context.Context, goalID string) ([]types.GoalNote, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, goal_id, user_id, note, created_at FROM goal_notes
		WHERE goal_id = ?
		ORDER BY created_at, id
	`, goalID)
	if err != nil {
		return nil, fmt.Errorf("list goal notes: %w", err)
	}
	defer rows.Close()

	notes := []types.GoalNote{}
	for rows.Next() {
		var n types.GoalNote
		var createdAt string
		if err := rows.Scan(&n.ID, &n.GoalID, &n.UserID, &n.Note, &createdAt); err != nil {
			return nil, fmt.Errorf("scan goal note: %w", err)
		}
		n.CreatedAt = parseTime(createdAt)
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate goal notes: %w", err)
	}
	return notes, nil
}
