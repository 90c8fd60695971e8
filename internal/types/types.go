package types

import (
	"time"

	"github.com/hyperengineering/standup/internal/dates"
)

// PlanStatus is the lifecycle state of a DailyPlan.
// Transitions are forward-only: draft -> submitted -> locked.
type PlanStatus string

const (
	PlanDraft     PlanStatus = "draft"
	PlanSubmitted PlanStatus = "submitted"
	PlanLocked    PlanStatus = "locked"
)

// rank orders plan statuses for monotonic transitions.
func (s PlanStatus) rank() int {
	switch s {
	case PlanDraft:
		return 0
	case PlanSubmitted:
		return 1
	case PlanLocked:
		return 2
	default:
		return -1
	}
}

// CanTransitionTo reports whether moving from s to next keeps the lifecycle monotonic.
func (s PlanStatus) CanTransitionTo(next PlanStatus) bool {
	return next.rank() >= 0 && next.rank() >= s.rank()
}

// GoalStatus is the progress state of a Goal.
type GoalStatus string

const (
	GoalNotStarted GoalStatus = "not_started"
	GoalInProgress GoalStatus = "in_progress"
	GoalCompleted  GoalStatus = "completed"
	GoalAttempted  GoalStatus = "attempted"
	GoalPostponed  GoalStatus = "postponed"
	GoalBlocked    GoalStatus = "blocked"
)

// GoalStatuses lists every valid goal status.
var GoalStatuses = []string{
	string(GoalNotStarted),
	string(GoalInProgress),
	string(GoalCompleted),
	string(GoalAttempted),
	string(GoalPostponed),
	string(GoalBlocked),
}

const (
	// RequiredGoals is the number of leading slots that must be filled to submit.
	RequiredGoals = 3

	// DefaultPriority is assigned when a goal carries no explicit priority.
	DefaultPriority = 3

	// DemotedPriority is what a displaced P1 becomes.
	DemotedPriority = 2

	MinPriority = 1
	MaxPriority = 5
)

// Profile holds a user's display name and point total.
type Profile struct {
	ID          string    `json:"id"`
	DisplayName *string   `json:"display_name"`
	Points      int64     `json:"points"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DailyPlan is a user's plan for one calendar date.
type DailyPlan struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	PlanDate         dates.Date `json:"plan_date"`
	Status           PlanStatus `json:"status"`
	SubmittedAt      *time.Time `json:"submitted_at"`
	ReviewedAt       *time.Time `json:"reviewed_at"`
	AwarenessAwarded bool       `json:"awareness_awarded"`
	ClosureAwarded   bool       `json:"closure_awarded"`
	AwarenessPoints  int64      `json:"awareness_points"`
	ClosurePoints    int64      `json:"closure_points"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Locked reports whether the plan is read-only.
func (p *DailyPlan) Locked() bool { return p.Status == PlanLocked }

// Closed reports whether the day has been reviewed (closure recorded).
func (p *DailyPlan) Closed() bool { return p.ReviewedAt != nil }

// Goal is one commitment on a plan.
type Goal struct {
	ID         string     `json:"id"`
	PlanID     string     `json:"plan_id"`
	UserID     string     `json:"user_id"`
	Title      string     `json:"title"`
	Details    *string    `json:"details"`
	Status     GoalStatus `json:"status"`
	Priority   int        `json:"priority"`
	SortOrder  int        `json:"sort_order"`
	ReviewedAt *time.Time `json:"reviewed_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Reviewed reports whether the goal has been marked reviewed.
func (g *Goal) Reviewed() bool { return g.ReviewedAt != nil }

// Engaged reports whether the goal was acted upon (left not_started).
func (g *Goal) Engaged() bool { return g.Status != GoalNotStarted }

// GoalInput is a planning-time goal payload. ID is empty for new goals.
// Priority 0 means unset; Status "" means not_started.
type GoalInput struct {
	ID        string     `json:"id,omitempty"`
	Title     string     `json:"title"`
	Details   *string    `json:"details,omitempty"`
	Status    GoalStatus `json:"status,omitempty"`
	Priority  int        `json:"priority,omitempty"`
	SortOrder int        `json:"sort_order"`
}

// RescheduleRecord is the intent to carry a goal to another date.
// The snapshot fields are written once and never updated.
type RescheduleRecord struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"user_id"`
	FromGoalID         string     `json:"from_goal_id"`
	FromDate           dates.Date `json:"from_date"`
	ToDate             dates.Date `json:"to_date"`
	Reason             *string    `json:"reason"`
	Materialized       bool       `json:"materialized"`
	MaterializedGoalID *string    `json:"materialized_goal_id"`
	SnapshotTitle      string     `json:"snapshot_title"`
	SnapshotDetails    *string    `json:"snapshot_details"`
	SnapshotPriority   int        `json:"snapshot_priority"`
	CreatedAt          time.Time  `json:"created_at"`
	MaterializedAt     *time.Time `json:"materialized_at"`
}

// GoalNote is a free-text note attached to a goal during review.
type GoalNote struct {
	ID        string    `json:"id"`
	GoalID    string    `json:"goal_id"`
	UserID    string    `json:"user_id"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
}

// AuditAction names an out-of-band plan change.
type AuditAction string

const (
	AuditReopen AuditAction = "reopen"
	AuditLock   AuditAction = "lock"
)

// SystemActor is recorded for changes made by background workers.
const SystemActor = "system"

// AuditEntry records an out-of-band change to a plan.
type AuditEntry struct {
	ID        string      `json:"id"`
	PlanID    string      `json:"plan_id"`
	UserID    string      `json:"user_id"`
	Action    AuditAction `json:"action"`
	Actor     string      `json:"actor"`
	Reason    *string     `json:"reason"`
	CreatedAt time.Time   `json:"created_at"`
}

// AwardResult is the outcome of an idempotent award call.
// Awarded=false with the current total is the normal "already done" answer.
type AwardResult struct {
	Awarded   bool  `json:"awarded"`
	NewPoints int64 `json:"new_points"`
}

// PlanSummary is a per-day overview used for history views.
type PlanSummary struct {
	PlanID         string     `json:"plan_id"`
	PlanDate       dates.Date `json:"plan_date"`
	Status         PlanStatus `json:"status"`
	ReviewedAt     *time.Time `json:"reviewed_at"`
	GoalCount      int        `json:"goal_count"`
	CompletedCount int        `json:"completed_count"`
	ReviewedCount  int        `json:"reviewed_count"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	PlanCount int64  `json:"plan_count"`
	GoalCount int64  `json:"goal_count"`
}

// StoreStats holds aggregate counts for health reporting.
type StoreStats struct {
	PlanCount int64
	GoalCount int64
}
