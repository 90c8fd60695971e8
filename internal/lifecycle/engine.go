// Package lifecycle implements the daily plan and goal state machine: the
// review gate, submission, review bookkeeping, awards, and reschedules.
//
// The engine holds no domain state of its own. Every operation reads and
// writes through a store.Store, and every gating decision takes an explicit
// reference date so callers control what "today" means.
package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hyperengineering/standup/internal/dates"
	"github.com/hyperengineering/standup/internal/store"
	"github.com/hyperengineering/standup/internal/types"
)

// Settings holds the tunable rules of the lifecycle.
type Settings struct {
	Location              *time.Location
	MaxGoals              int
	RescheduleHorizonDays int
	LockAfterDays         int
	AwarenessPoints       int64
	ClosurePoints         int64
	AutoClosure           bool
}

// DefaultSettings returns the production defaults.
func DefaultSettings() Settings {
	return Settings{
		Location:              time.UTC,
		MaxGoals:              10,
		RescheduleHorizonDays: 30,
		LockAfterDays:         7,
		AwarenessPoints:       5,
		ClosurePoints:         5,
		AutoClosure:           true,
	}
}

// Engine orchestrates plan and goal operations for authenticated users.
type Engine struct {
	store    store.Store
	settings Settings
	clock    dates.Clock
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the clock used to derive today's date.
func WithClock(c dates.Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// NewEngine creates an engine over s.
func NewEngine(s store.Store, settings Settings, opts ...Option) *Engine {
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	e := &Engine{
		store:    s,
		settings: settings,
		clock:    dates.SystemClock{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Settings returns the engine's rules.
func (e *Engine) Settings() Settings {
	return e.settings
}

// Today returns the current date in the configured planning timezone.
func (e *Engine) Today() dates.Date {
	return dates.Today(e.clock, e.settings.Location)
}

// ownedPlan loads a plan and hides plans that belong to someone else.
func (e *Engine) ownedPlan(ctx context.Context, userID, planID string) (*types.DailyPlan, error) {
	plan, err := e.store.GetPlan(ctx, planID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && plan.UserID != userID) {
		return nil, &NotFoundError{Resource: "plan", ID: planID}
	}
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// ownedGoal loads a goal with its plan, hiding goals that belong to someone else.
func (e *Engine) ownedGoal(ctx context.Context, userID, goalID string) (*types.Goal, *types.DailyPlan, error) {
	goal, err := e.store.GetGoal(ctx, goalID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && goal.UserID != userID) {
		return nil, nil, &NotFoundError{Resource: "goal", ID: goalID}
	}
	if err != nil {
		return nil, nil, err
	}
	plan, err := e.ownedPlan(ctx, userID, goal.PlanID)
	if err != nil {
		return nil, nil, err
	}
	return goal, plan, nil
}

// writable rejects writes on locked plans and, unless allowClosed, on closed days.
func writable(plan *types.DailyPlan, allowClosed bool) error {
	if plan.Locked() {
		return &ImmutablePlanError{PlanID: plan.ID, Reason: ReasonLocked}
	}
	if plan.Closed() && !allowClosed {
		return &ImmutablePlanError{PlanID: plan.ID, Reason: ReasonClosed}
	}
	return nil
}

// LockStalePlans locks every plan dated more than LockAfterDays before today.
func (e *Engine) LockStalePlans(ctx context.Context, today dates.Date) (int, error) {
	cutoff := today.AddDays(-e.settings.LockAfterDays)
	entries, err := e.store.LockPlansBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	for _, entry := range entries {
		slog.Info("plan locked",
			"component", "lifecycle",
			"action", "plan_locked",
			"plan_id", entry.PlanID,
			"user_id", entry.UserID,
			"actor", entry.Actor,
		)
	}
	return len(entries), nil
}
