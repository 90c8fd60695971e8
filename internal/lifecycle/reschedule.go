package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hyperengineering/standup/internal/dates"
	"github.com/hyperengineering/standup/internal/store"
	"github.com/hyperengineering/standup/internal/types"
	"github.com/hyperengineering/standup/internal/validation"
)

// RescheduleGoal postpones a reviewed goal and carries a snapshot of it to
// toDate. The copy appears when the target plan is opened; if toDate is
// tomorrow and that plan already exists, it is materialized right away.
func (e *Engine) RescheduleGoal(ctx context.Context, userID, goalID string, toDate dates.Date, reason *string, today dates.Date) (*types.RescheduleRecord, error) {
	if reason != nil {
		if problems := validation.ValidateText("reason", *reason, validation.MaxReasonLength); len(problems) > 0 {
			return nil, &ValidationError{Problems: problems}
		}
	}

	goal, plan, err := e.ownedGoal(ctx, userID, goalID)
	if err != nil {
		return nil, err
	}
	if err := writable(plan, true); err != nil {
		return nil, err
	}

	var c validation.Collector
	if !goal.Reviewed() {
		c.Add(&validation.ValidationError{Field: "goal", Message: "must be reviewed before rescheduling"})
	}
	if goal.Status == types.GoalCompleted || goal.Status == types.GoalPostponed {
		c.Add(&validation.ValidationError{Field: "goal", Message: fmt.Sprintf("cannot reschedule a %s goal", goal.Status)})
	}
	if !toDate.After(plan.PlanDate) || !toDate.After(today) {
		c.Add(&validation.ValidationError{Field: "to_date", Message: "must be after the goal's day and after today"})
	} else if today.DaysUntil(toDate) > e.settings.RescheduleHorizonDays {
		c.Add(&validation.ValidationError{
			Field:   "to_date",
			Message: fmt.Sprintf("must be within %d days", e.settings.RescheduleHorizonDays),
		})
	}
	if c.HasErrors() {
		return nil, &ValidationError{Problems: c.Errors()}
	}

	record, err := e.store.RecordReschedule(ctx, goalID, toDate, reason)
	if err != nil {
		return nil, mapStoreError(err, "goal", goalID, plan.ID)
	}

	slog.Info("goal rescheduled",
		"component", "lifecycle",
		"action", "reschedule",
		"goal_id", goalID,
		"user_id", userID,
		"from_date", record.FromDate.String(),
		"to_date", record.ToDate.String(),
	)

	if toDate.Equal(today.Next()) {
		target, err := e.store.GetPlanByDate(ctx, userID, toDate)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		if target != nil && !target.Locked() {
			if _, err := e.store.MaterializeFor(ctx, target.ID); err != nil {
				return nil, err
			}
		}
	}
	return record, nil
}

// Reschedules lists the reschedules targeting the user's date.
func (e *Engine) Reschedules(ctx context.Context, userID string, toDate dates.Date) ([]types.RescheduleRecord, error) {
	return e.store.ListReschedules(ctx, userID, toDate)
}
