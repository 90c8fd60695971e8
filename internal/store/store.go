package store

import (
	"context"

	"github.com/hyperengineering/standup/internal/dates"
	"github.com/hyperengineering/standup/internal/types"
)

// Store defines the interface contract for plan, goal, and scoring persistence.
//
// Every multi-row write runs in a single transaction. Operations that must be
// idempotent under concurrency (plan creation, awards, materialization) are
// expressed as conditional writes and report whether they took effect.
type Store interface {
	// Plans
	GetOrCreatePlan(ctx context.Context, userID string, date dates.Date) (*types.DailyPlan, error)
	GetPlan(ctx context.Context, planID string) (*types.DailyPlan, error)
	GetPlanByDate(ctx context.Context, userID string, date dates.Date) (*types.DailyPlan, error)
	ListPlanSummaries(ctx context.Context, userID string, from, to dates.Date) ([]types.PlanSummary, error)
	SubmitPlan(ctx context.Context, planID string, inputs []types.GoalInput) (*types.DailyPlan, []types.Goal, error)
	ReopenPlan(ctx context.Context, planID, actor, reason string) (*types.DailyPlan, error)
	LockPlansBefore(ctx context.Context, cutoff dates.Date) ([]types.AuditEntry, error)

	// Goals
	ListGoals(ctx context.Context, planID string) ([]types.Goal, error)
	GetGoal(ctx context.Context, goalID string) (*types.Goal, error)
	UpsertGoals(ctx context.Context, planID string, inputs []types.GoalInput, pruneCleared bool) ([]types.Goal, error)
	DeleteGoal(ctx context.Context, goalID string) error
	SetGoalStatus(ctx context.Context, goalID string, status types.GoalStatus) (*types.Goal, error)
	SetGoalPriority(ctx context.Context, goalID string, priority int) (*types.Goal, error)
	ToggleGoalReviewed(ctx context.Context, goalID string) (*types.Goal, error)

	// Reschedules
	RecordReschedule(ctx context.Context, goalID string, toDate dates.Date, reason *string) (*types.RescheduleRecord, error)
	ListReschedules(ctx context.Context, userID string, toDate dates.Date) ([]types.RescheduleRecord, error)
	MaterializeFor(ctx context.Context, planID string) ([]types.Goal, error)

	// Scoring
	GetOrCreateProfile(ctx context.Context, userID string) (*types.Profile, error)
	UpdateDisplayName(ctx context.Context, userID string, name *string) (*types.Profile, error)
	AwardAwareness(ctx context.Context, planID string, points int64) (*types.AwardResult, error)
	AwardClosure(ctx context.Context, planID string, points int64) (*types.AwardResult, error)

	// Notes and audit
	AddGoalNote(ctx context.Context, goalID, userID, note string) (*types.GoalNote, error)
	ListGoalNotes(ctx context.Context, goalID string) ([]types.GoalNote, error)
	ListAudit(ctx context.Context, planID string) ([]types.AuditEntry, error)

	// Maintenance
	GetStats(ctx context.Context) (*types.StoreStats, error)
	GenerateSnapshot(ctx context.Context, path string) error
	Close() error
}

var _ Store = (*SQLiteStore)(nil)
