package lifecycle

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hyperengineering/standup/internal/types"
	"github.com/hyperengineering/standup/internal/validation"
)

// ReviewResult is the outcome of a review toggle. Closure is set when the
// toggle completed the day's review and closure was attempted.
type ReviewResult struct {
	Goal    *types.Goal        `json:"goal"`
	Closure *types.AwardResult `json:"closure,omitempty"`
}

// ToggleReview flips a goal between reviewed and unreviewed.
//
// A goal must leave not_started before it can be reviewed. When the toggle
// leaves every goal on the plan reviewed and automatic closure is enabled,
// the day is closed in the same call.
func (e *Engine) ToggleReview(ctx context.Context, userID, goalID string) (*ReviewResult, error) {
	goal, plan, err := e.ownedGoal(ctx, userID, goalID)
	if err != nil {
		return nil, err
	}
	if err := writable(plan, false); err != nil {
		return nil, err
	}
	if !goal.Reviewed() && !goal.Engaged() {
		return nil, invalid("status", "take action on the goal before reviewing it")
	}

	updated, err := e.store.ToggleGoalReviewed(ctx, goalID)
	if err != nil {
		return nil, mapStoreError(err, "goal", goalID, plan.ID)
	}
	result := &ReviewResult{Goal: updated}

	if !updated.Reviewed() || !e.settings.AutoClosure {
		return result, nil
	}

	goals, err := e.store.ListGoals(ctx, plan.ID)
	if err != nil {
		return nil, err
	}
	for _, g := range goals {
		if !g.Reviewed() {
			return result, nil
		}
	}

	closure, err := e.store.AwardClosure(ctx, plan.ID, e.settings.ClosurePoints)
	if err != nil {
		return nil, mapStoreError(err, "plan", plan.ID, plan.ID)
	}
	result.Closure = closure
	e.logAward("closure", plan, closure)
	return result, nil
}

// AwardAwareness pays the awareness bonus for a plan at most once.
// Ineligible or repeated calls return Awarded=false with the current total.
func (e *Engine) AwardAwareness(ctx context.Context, userID, planID string) (*types.AwardResult, error) {
	plan, err := e.ownedPlan(ctx, userID, planID)
	if err != nil {
		return nil, err
	}
	if err := writable(plan, true); err != nil {
		return nil, err
	}

	res, err := e.store.AwardAwareness(ctx, planID, e.settings.AwarenessPoints)
	if err != nil {
		return nil, mapStoreError(err, "plan", planID, planID)
	}
	e.logAward("awareness", plan, res)
	return res, nil
}

// AwardClosure closes the day and pays the closure bonus at most once.
// Every goal that left not_started must be reviewed first.
func (e *Engine) AwardClosure(ctx context.Context, userID, planID string) (*types.AwardResult, error) {
	plan, err := e.ownedPlan(ctx, userID, planID)
	if err != nil {
		return nil, err
	}
	if err := writable(plan, true); err != nil {
		return nil, err
	}

	if !plan.Closed() {
		goals, err := e.store.ListGoals(ctx, planID)
		if err != nil {
			return nil, err
		}
		if problems := pendingReview(goals); len(problems) > 0 {
			return nil, &ValidationError{Problems: problems}
		}
	}

	res, err := e.store.AwardClosure(ctx, planID, e.settings.ClosurePoints)
	if err != nil {
		return nil, mapStoreError(err, "plan", planID, planID)
	}
	e.logAward("closure", plan, res)
	return res, nil
}

// pendingReview lists engaged goals that still need review.
func pendingReview(goals []types.Goal) []validation.ValidationError {
	var c validation.Collector
	for i, g := range goals {
		if g.Engaged() && !g.Reviewed() {
			c.Add(&validation.ValidationError{
				Field:   fmt.Sprintf("goals[%d]", i),
				Message: fmt.Sprintf("goal %d (%s) needs review", i+1, g.Title),
			})
		}
	}
	return c.Errors()
}

func (e *Engine) logAward(kind string, plan *types.DailyPlan, res *types.AwardResult) {
	if !res.Awarded {
		return
	}
	slog.Info("points awarded",
		"component", "lifecycle",
		"action", "award_"+kind,
		"plan_id", plan.ID,
		"user_id", plan.UserID,
		"new_points", res.NewPoints,
	)
}
