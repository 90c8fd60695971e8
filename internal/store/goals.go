package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hyperengineering/standup/internal/types"
)

const goalColumns = `id, plan_id, user_id, title, details, status, priority, sort_order,
	reviewed_at, created_at, updated_at`

func scanGoal(row rowScanner) (*types.Goal, error) {
	var g types.Goal
	var status, createdAt, updatedAt string
	var details, reviewedAt sql.NullString

	err := row.Scan(&g.ID, &g.PlanID, &g.UserID, &g.Title, &details, &status,
		&g.Priority, &g.SortOrder, &reviewedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	g.Details = nullableString(details)
	g.Status = types.GoalStatus(status)
	g.ReviewedAt = parseNullableTime(reviewedAt)
	g.CreatedAt = parseTime(createdAt)
	g.UpdatedAt = parseTime(updatedAt)
	return &g, nil
}

func getGoal(ctx context.Context, q querier, goalID string) (*types.Goal, error) {
	g, err := scanGoal(q.QueryRowContext(ctx,
		`SELECT `+goalColumns+` FROM goals WHERE id = ?`, goalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get goal: %w", err)
	}
	return g, nil
}

// listGoals returns a plan's goals in slot order.
func listGoals(ctx context.Context, q querier, planID string) ([]types.Goal, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+goalColumns+` FROM goals
		WHERE plan_id = ?
		ORDER BY sort_order, created_at, id
	`, planID)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	goals := []types.Goal{}
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		goals = append(goals, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate goals: %w", err)
	}
	return goals, nil
}

// ListGoals returns a plan's goals ordered by slot.
func (s *SQLiteStore) ListGoals(ctx context.Context, planID string) ([]types.Goal, error) {
	return listGoals(ctx, s.db, planID)
}

// GetGoal retrieves a goal by ID. Returns ErrNotFound if it does not exist.
func (s *SQLiteStore) GetGoal(ctx context.Context, goalID string) (*types.Goal, error) {
	return getGoal(ctx, s.db, goalID)
}

// UpsertGoals writes a planning payload to the plan and returns the
// resulting goal list.
//
// Inputs are taken in sort order. Titles are trimmed and empty titles are
// skipped. An input with an ID must name a goal on this plan. An input without
// an ID takes over the unclaimed goal at the slot it will occupy once blanks
// are dropped, so replaying a payload does not duplicate rows; otherwise it is
// inserted. With pruneCleared, an optional slot that names a goal and carries
// an empty title deletes that goal in the same transaction.
func (s *SQLiteStore) UpsertGoals(ctx context.Context, planID string, inputs []types.GoalInput, pruneCleared bool) ([]types.Goal, error) {
	var goals []types.Goal
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		p, err := getPlan(ctx, tx, planID)
		if err != nil {
			return err
		}
		if p.Locked() {
			return ErrPlanLocked
		}

		if err := s.upsertGoalsTx(ctx, tx, p, inputs, pruneCleared, s.now()); err != nil {
			return err
		}

		goals, err = listGoals(ctx, tx, planID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return goals, nil
}

// bySortOrder returns a copy of inputs stably ordered by SortOrder.
func bySortOrder(inputs []types.GoalInput) []types.GoalInput {
	sorted := make([]types.GoalInput, len(inputs))
	copy(sorted, inputs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SortOrder < sorted[j].SortOrder
	})
	return sorted
}

func (s *SQLiteStore) upsertGoalsTx(ctx context.Context, tx *sql.Tx, plan *types.DailyPlan, inputs []types.GoalInput, pruneCleared bool, now time.Time) error {
	existing, err := listGoals(ctx, tx, plan.ID)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(existing))
	for _, g := range existing {
		known[g.ID] = true
	}

	sorted := bySortOrder(inputs)
	ts := formatTime(now)

	if pruneCleared {
		for i, in := range sorted {
			if i < types.RequiredGoals || in.ID == "" || strings.TrimSpace(in.Title) != "" {
				continue
			}
			if !known[in.ID] {
				// Already gone is fine; a goal on another plan is not.
				if _, err := getGoal(ctx, tx, in.ID); !errors.Is(err, ErrNotFound) {
					if err != nil {
						return err
					}
					return fmt.Errorf("goal %s: %w", in.ID, ErrNotFound)
				}
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM goals WHERE id = ? AND plan_id = ?`, in.ID, plan.ID); err != nil {
				return fmt.Errorf("prune goal %s: %w", in.ID, err)
			}
			delete(known, in.ID)
		}
	}

	claimed := make(map[string]bool)
	for _, in := range sorted {
		if in.ID != "" {
			claimed[in.ID] = true
		}
	}
	// Surviving goals keyed by their dense slot.
	bySlot := make(map[int]string)
	slot := 0
	for _, g := range existing {
		if !known[g.ID] {
			continue
		}
		if !claimed[g.ID] {
			bySlot[slot] = g.ID
		}
		slot++
	}

	var p1 []string
	slot = 0
	for _, in := range sorted {
		title := strings.TrimSpace(in.Title)
		if title == "" {
			continue
		}
		var details *string
		if in.Details != nil {
			details = optionalText(*in.Details)
		}

		id := in.ID
		if id == "" {
			if match, ok := bySlot[slot]; ok {
				id = match
				delete(bySlot, slot)
			}
		}
		slot++

		if id != "" {
			if !known[id] {
				return fmt.Errorf("goal %s: %w", id, ErrNotFound)
			}
			// Empty status and zero priority leave the stored values alone.
			_, err := tx.ExecContext(ctx, `
				UPDATE goals SET
					title = ?,
					details = ?,
					status = COALESCE(NULLIF(?, ''), status),
					priority = COALESCE(NULLIF(?, 0), priority),
					sort_order = ?,
					updated_at = ?
				WHERE id = ? AND plan_id = ?
			`, title, stringOrNil(details), string(in.Status), in.Priority, in.SortOrder, ts, id, plan.ID)
			if err != nil {
				return fmt.Errorf("update goal %s: %w", id, err)
			}
		} else {
			status := in.Status
			if status == "" {
				status = types.GoalNotStarted
			}
			priority := in.Priority
			if priority == 0 {
				priority = types.DefaultPriority
			}

			id = newID()
			_, err := tx.ExecContext(ctx, `
				INSERT INTO goals (id, plan_id, user_id, title, details, status, priority, sort_order, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, id, plan.ID, plan.UserID, title, stringOrNil(details), string(status), priority, in.SortOrder, ts, ts)
			if err != nil {
				return fmt.Errorf("insert goal: %w", err)
			}
			known[id] = true
		}

		if in.Priority == types.MinPriority {
			p1 = append(p1, id)
		}
	}

	if err := renumberGoals(ctx, tx, plan.ID, ts); err != nil {
		return err
	}
	return repairPriority(ctx, tx, plan.ID, p1, ts)
}

// renumberGoals rewrites sort orders densely as 0..n-1.
func renumberGoals(ctx context.Context, q querier, planID, ts string) error {
	goals, err := listGoals(ctx, q, planID)
	if err != nil {
		return err
	}
	for i, g := range goals {
		if g.SortOrder == i {
			continue
		}
		if _, err := q.ExecContext(ctx,
			`UPDATE goals SET sort_order = ?, updated_at = ? WHERE id = ?`, i, ts, g.ID); err != nil {
			return fmt.Errorf("renumber goal %s: %w", g.ID, err)
		}
	}
	return nil
}

// repairPriority leaves at most one P1 among the required slots. The winner
// is the last of candidates that sits in a required slot; without one, the
// earliest slot holding P1 keeps it. Every other required-slot P1 is demoted.
func repairPriority(ctx context.Context, q querier, planID string, candidates []string, ts string) error {
	goals, err := listGoals(ctx, q, planID)
	if err != nil {
		return err
	}
	required := goals
	if len(required) > types.RequiredGoals {
		required = required[:types.RequiredGoals]
	}

	inRequired := make(map[string]bool, len(required))
	for _, g := range required {
		if g.Priority == types.MinPriority {
			inRequired[g.ID] = true
		}
	}

	winner := ""
	for i := len(candidates) - 1; i >= 0; i-- {
		if inRequired[candidates[i]] {
			winner = candidates[i]
			break
		}
	}
	if winner == "" {
		for _, g := range required {
			if g.Priority == types.MinPriority {
				winner = g.ID
				break
			}
		}
	}

	for _, g := range required {
		if g.ID == winner || g.Priority != types.MinPriority {
			continue
		}
		if _, err := q.ExecContext(ctx,
			`UPDATE goals SET priority = ?, updated_at = ? WHERE id = ?`,
			types.DemotedPriority, ts, g.ID); err != nil {
			return fmt.Errorf("demote goal %s: %w", g.ID, err)
		}
	}
	return nil
}

// DeleteGoal removes a goal and closes the gap in its plan's slot order.
// Deleting an unknown goal is a no-op.
func (s *SQLiteStore) DeleteGoal(ctx context.Context, goalID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		g, err := getGoal(ctx, tx, goalID)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
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

		if _, err := tx.ExecContext(ctx, `DELETE FROM goals WHERE id = ?`, goalID); err != nil {
			return fmt.Errorf("delete goal: %w", err)
		}
		return renumberGoals(ctx, tx, g.PlanID, formatTime(s.now()))
	})
}

// SetGoalStatus updates a goal's progress state.
func (s *SQLiteStore) SetGoalStatus(ctx context.Context, goalID string, status types.GoalStatus) (*types.Goal, error) {
	var goal *types.Goal
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE goals SET status = ?, updated_at = ? WHERE id = ?`,
			string(status), formatTime(s.now()), goalID)
		if err != nil {
			return fmt.Errorf("set goal status: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		goal, err = getGoal(ctx, tx, goalID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return goal, nil
}

// SetGoalPriority updates a goal's priority. Setting P1 on a required slot
// demotes the previous required-slot P1.
func (s *SQLiteStore) SetGoalPriority(ctx context.Context, goalID string, priority int) (*types.Goal, error) {
	var goal *types.Goal
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		g, err := getGoal(ctx, tx, goalID)
		if err != nil {
			return err
		}

		ts := formatTime(s.now())
		if _, err := tx.ExecContext(ctx,
			`UPDATE goals SET priority = ?, updated_at = ? WHERE id = ?`,
			priority, ts, goalID); err != nil {
			return fmt.Errorf("set goal priority: %w", err)
		}

		var candidates []string
		if priority == types.MinPriority {
			candidates = []string{goalID}
		}
		if err := repairPriority(ctx, tx, g.PlanID, candidates, ts); err != nil {
			return err
		}

		goal, err = getGoal(ctx, tx, goalID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return goal, nil
}

// ToggleGoalReviewed flips the goal's reviewed timestamp between null and now.
func (s *SQLiteStore) ToggleGoalReviewed(ctx context.Context, goalID string) (*types.Goal, error) {
	var goal *types.Goal
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		ts := formatTime(s.now())
		res, err := tx.ExecContext(ctx, `
			UPDATE goals SET
				reviewed_at = CASE WHEN reviewed_at IS NULL THEN ? ELSE NULL END,
				updated_at = ?
			WHERE id = ?
		`, ts, ts, goalID)
		if err != nil {
			return fmt.Errorf("toggle goal review: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		goal, err = getGoal(ctx, tx, goalID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return goal, nil
}
