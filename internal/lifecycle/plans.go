package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hyperengineering/standup/internal/dates"
	"github.com/hyperengineering/standup/internal/store"
	"github.com/hyperengineering/standup/internal/types"
	"github.com/hyperengineering/standup/internal/validation"
)

// MaxHistoryDays bounds the range accepted by History.
const MaxHistoryDays = 366

// PlanView is a plan with its goals in slot order.
type PlanView struct {
	Plan         *types.DailyPlan `json:"plan"`
	Goals        []types.Goal     `json:"goals"`
	Materialized []types.Goal     `json:"materialized,omitempty"`
}

// GateStatus describes whether a date may be planned.
type GateStatus struct {
	Date         dates.Date  `json:"date"`
	Open         bool        `json:"open"`
	BlockingDate *dates.Date `json:"blocking_date,omitempty"`
}

// CheckGate evaluates the review gate for date. The gate is open when the
// user has no plan for the previous day or that plan has been reviewed.
func (e *Engine) CheckGate(ctx context.Context, userID string, date dates.Date) (*GateStatus, error) {
	prev := date.Prev()
	status := &GateStatus{Date: date, Open: true}

	plan, err := e.store.GetPlanByDate(ctx, userID, prev)
	if errors.Is(err, store.ErrNotFound) {
		return status, nil
	}
	if err != nil {
		return nil, err
	}
	if !plan.Closed() {
		status.Open = false
		status.BlockingDate = &prev
	}
	return status, nil
}

// IsPriorDayReviewed reports whether date may be planned.
func (e *Engine) IsPriorDayReviewed(ctx context.Context, userID string, date dates.Date) (bool, error) {
	gate, err := e.CheckGate(ctx, userID, date)
	if err != nil {
		return false, err
	}
	return gate.Open, nil
}

// requireGate fails with GateBlockedError when date is after today and its gate is closed.
func (e *Engine) requireGate(ctx context.Context, userID string, date, today dates.Date) error {
	if !date.After(today) {
		return nil
	}
	gate, err := e.CheckGate(ctx, userID, date)
	if err != nil {
		return err
	}
	if !gate.Open {
		return &GateBlockedError{Date: date, BlockingDate: *gate.BlockingDate}
	}
	return nil
}

// OpenPlan returns the user's plan for date, creating it if needed and
// materializing goals rescheduled onto it.
func (e *Engine) OpenPlan(ctx context.Context, userID string, date, today dates.Date) (*PlanView, error) {
	if err := e.requireGate(ctx, userID, date, today); err != nil {
		return nil, err
	}

	plan, err := e.store.GetOrCreatePlan(ctx, userID, date)
	if err != nil {
		return nil, err
	}

	view := &PlanView{Plan: plan}
	if !plan.Locked() {
		created, err := e.store.MaterializeFor(ctx, plan.ID)
		if err != nil {
			return nil, err
		}
		if len(created) > 0 {
			view.Materialized = created
			slog.Info("reschedules materialized",
				"component", "lifecycle",
				"action", "materialize",
				"plan_id", plan.ID,
				"user_id", userID,
				"count", len(created),
			)
		}
	}

	if view.Goals, err = e.store.ListGoals(ctx, plan.ID); err != nil {
		return nil, err
	}
	return view, nil
}

// GetPlan returns one of the user's plans with its goals.
func (e *Engine) GetPlan(ctx context.Context, userID, planID string) (*PlanView, error) {
	plan, err := e.ownedPlan(ctx, userID, planID)
	if err != nil {
		return nil, err
	}
	goals, err := e.store.ListGoals(ctx, planID)
	if err != nil {
		return nil, err
	}
	return &PlanView{Plan: plan, Goals: goals}, nil
}

// SubmitPlan validates and commits a plan. When inputs is non-nil the slot
// list is compacted, validated, and persisted together with the status
// change; a nil list submits the stored goals. Resubmitting refreshes
// the submission time.
func (e *Engine) SubmitPlan(ctx context.Context, userID, planID string, inputs []types.GoalInput, today dates.Date) (*PlanView, error) {
	plan, err := e.ownedPlan(ctx, userID, planID)
	if err != nil {
		return nil, err
	}
	if err := writable(plan, false); err != nil {
		return nil, err
	}
	if err := e.requireGate(ctx, userID, plan.PlanDate, today); err != nil {
		return nil, err
	}

	var compacted []types.GoalInput
	if inputs != nil {
		if problems := validation.ValidateGoalInputs(inputs, e.settings.MaxGoals); len(problems) > 0 {
			return nil, &ValidationError{Problems: problems}
		}
		compacted = Compact(inputs, e.settings.MaxGoals)
		if problems := RequiredSlotProblems(compacted); len(problems) > 0 {
			return nil, &ValidationError{Problems: problems}
		}
		if err := e.checkPayloadStatuses(ctx, planID, inputs); err != nil {
			return nil, err
		}
	} else {
		goals, err := e.store.ListGoals(ctx, planID)
		if err != nil {
			return nil, err
		}
		if problems := storedSlotProblems(goals); len(problems) > 0 {
			return nil, &ValidationError{Problems: problems}
		}
	}

	submitted, goals, err := e.store.SubmitPlan(ctx, planID, compacted)
	if err != nil {
		return nil, mapStoreError(err, "goal", "", planID)
	}

	slog.Info("plan submitted",
		"component", "lifecycle",
		"action", "submit",
		"plan_id", planID,
		"user_id", userID,
		"goals", len(goals),
	)
	return &PlanView{Plan: submitted, Goals: goals}, nil
}

// ReopenPlan clears the review of a closed day so it can be reviewed again.
// The change is audited; awarded points stay with the user.
func (e *Engine) ReopenPlan(ctx context.Context, userID, planID, actor, reason string) (*types.DailyPlan, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		actor = userID
	}
	if problems := validation.ValidateText("reason", reason, validation.MaxReasonLength); len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}

	plan, err := e.ownedPlan(ctx, userID, planID)
	if err != nil {
		return nil, err
	}
	if err := writable(plan, true); err != nil {
		return nil, err
	}
	if !plan.Closed() {
		return nil, invalid("plan", "is not closed")
	}

	reopened, err := e.store.ReopenPlan(ctx, planID, actor, reason)
	if err != nil {
		return nil, mapStoreError(err, "plan", planID, planID)
	}

	slog.Warn("plan reopened",
		"component", "lifecycle",
		"action", "reopen",
		"plan_id", planID,
		"user_id", userID,
		"plan_date", plan.PlanDate.String(),
		"actor", actor,
		"reason", reason,
	)
	return reopened, nil
}

// History returns per-day summaries of the user's plans in [from, to].
func (e *Engine) History(ctx context.Context, userID string, from, to dates.Date) ([]types.PlanSummary, error) {
	if to.Before(from) {
		return nil, invalid("to", "must not be before from")
	}
	if from.DaysUntil(to) >= MaxHistoryDays {
		return nil, invalid("to", fmt.Sprintf("range must not exceed %d days", MaxHistoryDays))
	}
	summaries, err := e.store.ListPlanSummaries(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	if summaries == nil {
		summaries = []types.PlanSummary{}
	}
	return summaries, nil
}

// AuditTrail returns the out-of-band changes recorded for a plan.
func (e *Engine) AuditTrail(ctx context.Context, userID, planID string) ([]types.AuditEntry, error) {
	if _, err := e.ownedPlan(ctx, userID, planID); err != nil {
		return nil, err
	}
	return e.store.ListAudit(ctx, planID)
}
