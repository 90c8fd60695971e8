package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hyperengineering/standup/internal/dates"
	"github.com/hyperengineering/standup/internal/types"
	"github.com/hyperengineering/standup/internal/validation"
)

// ListGoals returns a plan's goals in slot order.
func (e *Engine) ListGoals(ctx context.Context, userID, planID string) ([]types.Goal, error) {
	if _, err := e.ownedPlan(ctx, userID, planID); err != nil {
		return nil, err
	}
	return e.store.ListGoals(ctx, planID)
}

// SaveGoals upserts a planning payload and returns the plan's goals.
//
// Future plans require an open gate. On a submitted plan, optional slots that
// arrive with an id and a blank title are deleted so cleared slots do not
// linger; the deletes and the upsert commit together.
func (e *Engine) SaveGoals(ctx context.Context, userID, planID string, inputs []types.GoalInput, today dates.Date) ([]types.Goal, error) {
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
	if problems := validation.ValidateGoalInputs(inputs, e.settings.MaxGoals); len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}
	if err := e.checkPayloadStatuses(ctx, planID, inputs); err != nil {
		return nil, err
	}

	goals, err := e.store.UpsertGoals(ctx, planID, inputs, plan.Status == types.PlanSubmitted)
	if err != nil {
		return nil, mapStoreError(err, "goal", "", planID)
	}

	slog.Debug("goals saved",
		"component", "lifecycle",
		"action", "save_goals",
		"plan_id", planID,
		"user_id", userID,
		"goals", len(goals),
	)
	return goals, nil
}

// statusChangeProblem applies the status transition rules. current is nil
// for a goal that does not exist yet. Goals become postponed only through
// rescheduling, and a reviewed goal cannot return to not_started.
func statusChangeProblem(field string, current *types.Goal, next types.GoalStatus) *validation.ValidationError {
	if next == "" || (current != nil && current.Status == next) {
		return nil
	}
	switch {
	case next == types.GoalPostponed:
		return &validation.ValidationError{Field: field, Message: "is set to postponed by rescheduling the goal"}
	case next == types.GoalNotStarted && current != nil && current.Reviewed():
		return &validation.ValidationError{Field: field, Message: "a reviewed goal cannot return to not_started"}
	}
	return nil
}

// checkPayloadStatuses rejects planning inputs whose status would bypass
// statusChangeProblem.
func (e *Engine) checkPayloadStatuses(ctx context.Context, planID string, inputs []types.GoalInput) error {
	stored, err := e.store.ListGoals(ctx, planID)
	if err != nil {
		return err
	}
	byID := make(map[string]*types.Goal, len(stored))
	for i := range stored {
		byID[stored[i].ID] = &stored[i]
	}

	var c validation.Collector
	for i, in := range inputs {
		c.Add(statusChangeProblem(fmt.Sprintf("goals[%d].status", i), byID[in.ID], in.Status))
	}
	if c.HasErrors() {
		return &ValidationError{Problems: c.Errors()}
	}
	return nil
}

// DeleteGoal removes a goal. Deleting a goal that does not exist is a no-op.
func (e *Engine) DeleteGoal(ctx context.Context, userID, goalID string) error {
	goal, plan, err := e.ownedGoal(ctx, userID, goalID)
	var nf *NotFoundError
	if errors.As(err, &nf) && nf.Resource == "goal" {
		return nil
	}
	if err != nil {
		return err
	}
	if err := writable(plan, false); err != nil {
		return err
	}
	return mapStoreError(e.store.DeleteGoal(ctx, goal.ID), "goal", goalID, plan.ID)
}

// SetGoalStatus records progress on a goal. A reviewed goal cannot go back
// to not_started.
func (e *Engine) SetGoalStatus(ctx context.Context, userID, goalID string, status types.GoalStatus) (*types.Goal, error) {
	if err := validation.ValidateGoalStatus("status", status); err != nil {
		return nil, &ValidationError{Problems: []validation.ValidationError{*err}}
	}

	goal, plan, err := e.ownedGoal(ctx, userID, goalID)
	if err != nil {
		return nil, err
	}
	if err := writable(plan, false); err != nil {
		return nil, err
	}
	if problem := statusChangeProblem("status", goal, status); problem != nil {
		return nil, &ValidationError{Problems: []validation.ValidationError{*problem}}
	}

	updated, err := e.store.SetGoalStatus(ctx, goalID, status)
	if err != nil {
		return nil, mapStoreError(err, "goal", goalID, plan.ID)
	}
	return updated, nil
}

// SetGoalPriority changes a goal's priority, keeping a single P1 among the
// required slots.
func (e *Engine) SetGoalPriority(ctx context.Context, userID, goalID string, priority int) (*types.Goal, error) {
	if err := validation.ValidatePriority("priority", priority); err != nil {
		return nil, &ValidationError{Problems: []validation.ValidationError{*err}}
	}

	_, plan, err := e.ownedGoal(ctx, userID, goalID)
	if err != nil {
		return nil, err
	}
	if err := writable(plan, false); err != nil {
		return nil, err
	}

	updated, err := e.store.SetGoalPriority(ctx, goalID, priority)
	if err != nil {
		return nil, mapStoreError(err, "goal", goalID, plan.ID)
	}
	return updated, nil
}

// AddGoalNote attaches a review note to a goal.
func (e *Engine) AddGoalNote(ctx context.Context, userID, goalID, note string) (*types.GoalNote, error) {
	var c validation.Collector
	c.Add(validation.ValidateRequired("note", note))
	c.AddAll(validation.ValidateText("note", note, validation.MaxNoteLength))
	if c.HasErrors() {
		return nil, &ValidationError{Problems: c.Errors()}
	}

	_, plan, err := e.ownedGoal(ctx, userID, goalID)
	if err != nil {
		return nil, err
	}
	if err := writable(plan, true); err != nil {
		return nil, err
	}

	created, err := e.store.AddGoalNote(ctx, goalID, userID, note)
	if err != nil {
		return nil, mapStoreError(err, "goal", goalID, plan.ID)
	}
	return created, nil
}

// ListGoalNotes returns a goal's notes, oldest first.
func (e *Engine) ListGoalNotes(ctx context.Context, userID, goalID string) ([]types.GoalNote, error) {
	if _, _, err := e.ownedGoal(ctx, userID, goalID); err != nil {
		return nil, err
	}
	return e.store.ListGoalNotes(ctx, goalID)
}
