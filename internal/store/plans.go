package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hyperengineering/standup/internal/dates"
	"github.com/hyperengineering/standup/internal/types"
)

const planColumns = `id, user_id, plan_date, status, submitted_at, reviewed_at,
	awareness_awarded, closure_awarded, awareness_points, closure_points, created_at, updated_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlan(row rowScanner) (*types.DailyPlan, error) {
	var p types.DailyPlan
	var status, createdAt, updatedAt string
	var submittedAt, reviewedAt sql.NullString
	var awareness, closure int

	err := row.Scan(&p.ID, &p.UserID, &p.PlanDate, &status, &submittedAt, &reviewedAt,
		&awareness, &closure, &p.AwarenessPoints, &p.ClosurePoints, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	p.Status = types.PlanStatus(status)
	p.SubmittedAt = parseNullableTime(submittedAt)
	p.ReviewedAt = parseNullableTime(reviewedAt)
	p.AwarenessAwarded = awareness == 1
	p.ClosureAwarded = closure == 1
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

func getPlan(ctx context.Context, q querier, planID string) (*types.DailyPlan, error) {
	p, err := scanPlan(q.QueryRowContext(ctx,
		`SELECT `+planColumns+` FROM daily_plans WHERE id = ?`, planID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}
	return p, nil
}

func getPlanByDate(ctx context.Context, q querier, userID string, date dates.Date) (*types.DailyPlan, error) {
	p, err := scanPlan(q.QueryRowContext(ctx,
		`SELECT `+planColumns+` FROM daily_plans WHERE user_id = ? AND plan_date = ?`, userID, date.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get plan by date: %w", err)
	}
	return p, nil
}

// GetOrCreatePlan returns the user's plan for date, creating a draft if none exists.
// Concurrent callers converge on the same row.
func (s *SQLiteStore) GetOrCreatePlan(ctx context.Context, userID string, date dates.Date) (*types.DailyPlan, error) {
	var plan *types.DailyPlan
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := formatTime(s.now())
		_, err := tx.ExecContext(ctx, `
			INSERT INTO daily_plans (id, user_id, plan_date, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(user_id, plan_date) DO NOTHING
		`, newID(), userID, date.String(), string(types.PlanDraft), now, now)
		if err != nil {
			return fmt.Errorf("insert plan: %w", err)
		}

		plan, err = getPlanByDate(ctx, tx, userID, date)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get or create plan: %w", err)
	}
	return plan, nil
}

// GetPlan retrieves a plan by ID. Returns ErrNotFound if it does not exist.
func (s *SQLiteStore) GetPlan(ctx context.Context, planID string) (*types.DailyPlan, error) {
	return getPlan(ctx, s.db, planID)
}

// GetPlanByDate retrieves the user's plan for date without creating one.
func (s *SQLiteStore) GetPlanByDate(ctx context.Context, userID string, date dates.Date) (*types.DailyPlan, error) {
	return getPlanByDate(ctx, s.db, userID, date)
}

// ListPlanSummaries returns per-day goal counts for the user's plans in [from, to].
func (s *SQLiteStore) ListPlanSummaries(ctx context.Context, userID string, from, to dates.Date) ([]types.PlanSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.plan_date, p.status, p.reviewed_at,
		       COUNT(g.id),
		       COALESCE(SUM(CASE WHEN g.status = 'completed' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN g.reviewed_at IS NOT NULL THEN 1 ELSE 0 END), 0)
		FROM daily_plans p
		LEFT JOIN goals g ON g.plan_id = p.id
		WHERE p.user_id = ? AND p.plan_date >= ? AND p.plan_date <= ?
		GROUP BY p.id
		ORDER BY p.plan_date
	`, userID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("list plan summaries: %w", err)
	}
	defer rows.Close()

	var summaries []types.PlanSummary
	for rows.Next() {
		var sum types.PlanSummary
		var status string
		var reviewedAt sql.NullString
		if err := rows.Scan(&sum.PlanID, &sum.PlanDate, &status, &reviewedAt,
			&sum.GoalCount, &sum.CompletedCount, &sum.ReviewedCount); err != nil {
			return nil, fmt.Errorf("scan plan summary: %w", err)
		}
		sum.Status = types.PlanStatus(status)
		sum.ReviewedAt = parseNullableTime(reviewedAt)
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plan summaries: %w", err)
	}
	return summaries, nil
}

// SubmitPlan optionally persists inputs and marks the plan submitted in one
// transaction. A nil inputs slice submits the stored goals as they are.
// Returns ErrNotEligible if fewer than the required goals would remain.
func (s *SQLiteStore) SubmitPlan(ctx context.Context, planID string, inputs []types.GoalInput) (*types.DailyPlan, []types.Goal, error) {
	var plan *types.DailyPlan
	var goals []types.Goal

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		p, err := getPlan(ctx, tx, planID)
		if err != nil {
			return err
		}
		if p.Locked() {
			return ErrPlanLocked
		}

		now := s.now()
		if inputs != nil {
			if err := s.upsertGoalsTx(ctx, tx, p, inputs, false, now); err != nil {
				return err
			}
		}

		var count int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM goals WHERE plan_id = ?`, planID).Scan(&count); err != nil {
			return fmt.Errorf("count goals: %w", err)
		}
		if count < types.RequiredGoals {
			return fmt.Errorf("%w: %d of %d required goals", ErrNotEligible, count, types.RequiredGoals)
		}

		ts := formatTime(now)
		res, err := tx.ExecContext(ctx, `
			UPDATE daily_plans SET status = ?, submitted_at = ?, updated_at = ?
			WHERE id = ? AND status != ?
		`, string(types.PlanSubmitted), ts, ts, planID, string(types.PlanLocked))
		if err != nil {
			return fmt.Errorf("submit plan: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrPlanLocked
		}

		if plan, err = getPlan(ctx, tx, planID); err != nil {
			return err
		}
		goals, err = listGoals(ctx, tx, planID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return plan, goals, nil
}

// ReopenPlan clears the review timestamp of a closed, unlocked plan and
// records who did it. Awarded points are kept.
func (s *SQLiteStore) ReopenPlan(ctx context.Context, planID, actor, reason string) (*types.DailyPlan, error) {
	var plan *types.DailyPlan
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		p, err := getPlan(ctx, tx, planID)
		if err != nil {
			return err
		}
		if p.Locked() {
			return ErrPlanLocked
		}

		now := s.now()
		res, err := tx.ExecContext(ctx, `
			UPDATE daily_plans SET reviewed_at = NULL, updated_at = ?
			WHERE id = ? AND reviewed_at IS NOT NULL AND status != ?
		`, formatTime(now), planID, string(types.PlanLocked))
		if err != nil {
			return fmt.Errorf("reopen plan: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: plan is not closed", ErrNotEligible)
		}

		entry := &types.AuditEntry{
			PlanID:    planID,
			UserID:    p.UserID,
			Action:    types.AuditReopen,
			Actor:     actor,
			Reason:    optionalText(reason),
			CreatedAt: now,
		}
		if err := insertAudit(ctx, tx, entry); err != nil {
			return err
		}

		plan, err = getPlan(ctx, tx, planID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// LockPlansBefore locks every unlocked plan dated before cutoff and returns
// the audit entries written for them.
func (s *SQLiteStore) LockPlansBefore(ctx context.Context, cutoff dates.Date) ([]types.AuditEntry, error) {
	var entries []types.AuditEntry
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		entries = nil

		rows, err := tx.QueryContext(ctx, `
			SELECT id, user_id FROM daily_plans
			WHERE plan_date < ? AND status != ?
			ORDER BY plan_date, id
		`, cutoff.String(), string(types.PlanLocked))
		if err != nil {
			return fmt.Errorf("query stale plans: %w", err)
		}

		type stale struct{ id, userID string }
		var plans []stale
		for rows.Next() {
			var p stale
			if err := rows.Scan(&p.id, &p.userID); err != nil {
				rows.Close()
				return fmt.Errorf("scan stale plan: %w", err)
			}
			plans = append(plans, p)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate stale plans: %w", err)
		}

		now := s.now()
		for _, p := range plans {
			res, err := tx.ExecContext(ctx, `
				UPDATE daily_plans SET status = ?, updated_at = ?
				WHERE id = ? AND status != ?
			`, string(types.PlanLocked), formatTime(now), p.id, string(types.PlanLocked))
			if err != nil {
				return fmt.Errorf("lock plan %s: %w", p.id, err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				continue
			}

			entry := types.AuditEntry{
				PlanID:    p.id,
				UserID:    p.userID,
				Action:    types.AuditLock,
				Actor:     types.SystemActor,
				CreatedAt: now,
			}
			if err := insertAudit(ctx, tx, &entry); err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
