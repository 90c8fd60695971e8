package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hyperengineering/standup/internal/types"
)

// AwardAwareness pays the awareness bonus for a plan at most once. The plan
// must be unclosed with at least one goal still awaiting review.
func (s *SQLiteStore) AwardAwareness(ctx context.Context, planID string, points int64) (*types.AwardResult, error) {
	var result *types.AwardResult
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		userID, err := planOwner(ctx, tx, planID)
		if err != nil {
			return err
		}

		ts := formatTime(s.now())
		if err := ensureProfile(ctx, tx, userID, ts); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE daily_plans SET awareness_awarded = 1, awareness_points = ?, updated_at = ?
			WHERE id = ?
			  AND awareness_awarded = 0
			  AND reviewed_at IS NULL
			  AND status != ?
			  AND EXISTS (SELECT 1 FROM goals WHERE goals.plan_id = daily_plans.id AND goals.reviewed_at IS NULL)
		`, points, ts, planID, string(types.PlanLocked))
		if err != nil {
			return fmt.Errorf("claim awareness: %w", err)
		}

		awarded := false
		if n, _ := res.RowsAffected(); n == 1 {
			if err := addPoints(ctx, tx, userID, points, ts); err != nil {
				return err
			}
			awarded = true
		}

		total, err := profilePoints(ctx, tx, userID)
		if err != nil {
			return err
		}
		result = &types.AwardResult{Awarded: awarded, NewPoints: total}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AwardClosure closes the day and pays the closure bonus the first time the
// day is closed. A reopened day closes again without a second payment.
// Closure requires every engaged goal to be reviewed.
func (s *SQLiteStore) AwardClosure(ctx context.Context, planID string, points int64) (*types.AwardResult, error) {
	var result *types.AwardResult
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var userID string
		var flag int
		err := tx.QueryRowContext(ctx,
			`SELECT user_id, closure_awarded FROM daily_plans WHERE id = ?`, planID).Scan(&userID, &flag)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("read closure flag: %w", err)
		}

		ts := formatTime(s.now())
		if err := ensureProfile(ctx, tx, userID, ts); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE daily_plans SET
				reviewed_at = ?,
				closure_awarded = 1,
				closure_points = CASE WHEN closure_awarded = 0 THEN ? ELSE closure_points END,
				updated_at = ?
			WHERE id = ?
			  AND reviewed_at IS NULL
			  AND closure_awarded = ?
			  AND status != ?
			  AND NOT EXISTS (
				SELECT 1 FROM goals
				WHERE goals.plan_id = daily_plans.id AND goals.status != ? AND goals.reviewed_at IS NULL
			  )
		`, ts, points, ts, planID, flag, string(types.PlanLocked), string(types.GoalNotStarted))
		if err != nil {
			return fmt.Errorf("claim closure: %w", err)
		}

		awarded := false
		if n, _ := res.RowsAffected(); n == 1 && flag == 0 {
			if err := addPoints(ctx, tx, userID, points, ts); err != nil {
				return err
			}
			awarded = true
		}

		total, err := profilePoints(ctx, tx, userID)
		if err != nil {
			return err
		}
		result = &types.AwardResult{Awarded: awarded, NewPoints: total}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func planOwner(ctx context.Context, q querier, planID string) (string, error) {
	var userID string
	err := q.QueryRowContext(ctx, `SELECT user_id FROM daily_plans WHERE id = ?`, planID).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read plan owner: %w", err)
	}
	return userID, nil
}

func addPoints(ctx context.Context, q execContext, userID string, points int64, ts string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE profiles SET points = points + ?, updated_at = ? WHERE id = ?`, points, ts, userID)
	if err != nil {
		return fmt.Errorf("add points: %w", err)
	}
	return nil
}

func profilePoints(ctx context.Context, q querier, userID string) (int64, error) {
	var total int64
	if err := q.QueryRowContext(ctx,
		`SELECT points FROM profiles WHERE id = ?`, userID).Scan(&total); err != nil {
		return 0, fmt.Errorf("read points: %w", err)
	}
	return total, nil
}
