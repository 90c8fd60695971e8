package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hyperengineering/standup/internal/dates"
	"github.com/hyperengineering/standup/internal/types"
)

const rescheduleColumns = `id, user_id, from_goal_id, from_date, to_date, reason, materialized,
	materialized_goal_id, snapshot_title, snapshot_details, snapshot_priority, created_at, materialized_at`

func scanReschedule(row rowScanner) (*types.RescheduleRecord, error) {
	var r types.RescheduleRecord
	var reason, goalID, details, materializedAt sql.NullString
	var materialized int
	var createdAt string

	err := row.Scan(&r.ID, &r.UserID, &r.FromGoalID, &r.FromDate, &r.ToDate, &reason, &materialized,
		&goalID, &r.SnapshotTitle, &details, &r.SnapshotPriority, &createdAt, &materializedAt)
	if err != nil {
		return nil, err
	}

	r.Reason = nullableString(reason)
	r.Materialized = materialized == 1
	r.MaterializedGoalID = nullableString(goalID)
	r.SnapshotDetails = nullableString(details)
	r.CreatedAt = parseTime(createdAt)
	r.MaterializedAt = parseNullableTime(materializedAt)
	return &r, nil
}

func getReschedule(ctx context.Context, q querier, id string) (*types.RescheduleRecord, error) {
	r, err := scanReschedule(q.QueryRowContext(ctx,
		`SELECT `+rescheduleColumns+` FROM goal_reschedules WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reschedule: %w", err)
	}
	return r, nil
}

// RecordReschedule postpones a goal and records the intent to carry a snapshot
// of it to toDate. A goal that is already postponed or completed is not eligible.
func (s *SQLiteStore) RecordReschedule(ctx context.Context, goalID string, toDate dates.Date, reason *string) (*types.RescheduleRecord, error) {
	var record *types.RescheduleRecord
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		g, err := getGoal(ctx, tx, goalID)
		if err != nil {
			return err
		}
		p, err := getPlan(ctx, tx, g.PlanID)
		if err != nil {
			return err
		}
		if p.Locked() {
			return ErrPlanLocked
		}

		ts := formatTime(s.now())
		res, err := tx.ExecContext(ctx, `
			UPDATE goals SET status = ?, updated_at = ?
			WHERE id = ? AND status NOT IN (?, ?)
		`, string(types.GoalPostponed), ts, goalID, string(types.GoalPostponed), string(types.GoalCompleted))
		if err != nil {
			return fmt.Errorf("postpone goal: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: goal already %s", ErrNotEligible, g.Status)
		}

		var why *string
		if reason != nil {
			why = optionalText(*reason)
		}

		id := newID()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO goal_reschedules (id, user_id, from_goal_id, from_date, to_date, reason,
				snapshot_title, snapshot_details, snapshot_priority, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, id, g.UserID, g.ID, p.PlanDate.String(), toDate.String(), stringOrNil(why),
			g.Title, stringOrNil(g.Details), g.Priority, ts)
		if err != nil {
			return fmt.Errorf("insert reschedule: %w", err)
		}

		record, err = getReschedule(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ListReschedules returns every reschedule targeting the user's toDate, oldest first.
func (s *SQLiteStore) ListReschedules(ctx context.Context, userID string, toDate dates.Date) ([]types.RescheduleRecord, error) {
	return listReschedules(ctx, s.db, userID, toDate, false)
}

func listReschedules(ctx context.Context, q querier, userID string, toDate dates.Date, pendingOnly bool) ([]types.RescheduleRecord, error) {
	query := `SELECT ` + rescheduleColumns + ` FROM goal_reschedules WHERE user_id = ? AND to_date = ?`
	if pendingOnly {
		query += ` AND materialized = 0`
	}
	query += ` ORDER BY created_at, id`

	rows, err := q.QueryContext(ctx, query, userID, toDate.String())
	if err != nil {
		return nil, fmt.Errorf("list reschedules: %w", err)
	}
	defer rows.Close()

	records := []types.RescheduleRecord{}
	for rows.Next() {
		r, err := scanReschedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reschedule: %w", err)
		}
		records = append(records, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reschedules: %w", err)
	}
	return records, nil
}

// MaterializeFor turns pending reschedules targeting the plan's date into
// goals on the plan and returns the goals it created. Each record is claimed
// with a conditional update, so concurrent calls never duplicate a goal.
func (s *SQLiteStore) MaterializeFor(ctx context.Context, planID string) ([]types.Goal, error) {
	plan, err := getPlan(ctx, s.db, planID)
	if err != nil {
		return nil, err
	}

	pending, err := listReschedules(ctx, s.db, plan.UserID, plan.PlanDate, true)
	if err != nil {
		return nil, err
	}

	created := []types.Goal{}
	for _, r := range pending {
		var goal *types.Goal
		err := s.withTx(ctx, func(tx *sql.Tx) error {
			goal = nil
			goalID := newID()
			ts := formatTime(s.now())

			res, err := tx.ExecContext(ctx, `
				UPDATE goal_reschedules SET materialized = 1, materialized_goal_id = ?, materialized_at = ?
				WHERE id = ? AND materialized = 0
			`, goalID, ts, r.ID)
			if err != nil {
				return fmt.Errorf("claim reschedule %s: %w", r.ID, err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return nil
			}

			var next int
			if err := tx.QueryRowContext(ctx,
				`SELECT COALESCE(MAX(sort_order) + 1, 0) FROM goals WHERE plan_id = ?`, planID).Scan(&next); err != nil {
				return fmt.Errorf("next sort order: %w", err)
			}

			_, err = tx.ExecContext(ctx, `
				INSERT INTO goals (id, plan_id, user_id, title, details, status, priority, sort_order, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, goalID, planID, plan.UserID, r.SnapshotTitle, stringOrNil(r.SnapshotDetails),
				string(types.GoalNotStarted), r.SnapshotPriority, next, ts, ts)
			if err != nil {
				return fmt.Errorf("insert materialized goal: %w", err)
			}

			if err := repairPriority(ctx, tx, planID, nil, ts); err != nil {
				return err
			}

			goal, err = getGoal(ctx, tx, goalID)
			return err
		})
		if err != nil {
			return created, err
		}
		if goal != nil {
			created = append(created, *goal)
		}
	}
	return created, nil
}
