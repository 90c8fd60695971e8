package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hyperengineering/standup/internal/dates"
	"github.com/hyperengineering/standup/internal/types"
)

func TestGetOrCreatePlan_Idempotent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	date := dates.MustParse("2026-03-10")

	first, err := s.GetOrCreatePlan(ctx, "u1", date)
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.GetOrCreatePlan(ctx, "u1", date)
	if err != nil {
		t.Fatal(err)
	}

	if first.ID != second.ID {
		t.Errorf("second call returned plan %s, want %s", second.ID, first.ID)
	}
	if first.Status != types.PlanDraft {
		t.Errorf("Status = %q, want draft", first.Status)
	}
	if !first.PlanDate.Equal(date) {
		t.Errorf("PlanDate = %s, want %s", first.PlanDate, date)
	}
	if !first.CreatedAt.Equal(testNow) {
		t.Errorf("CreatedAt = %v, want %v", first.CreatedAt, testNow)
	}

	other, err := s.GetOrCreatePlan(ctx, "u2", date)
	if err != nil {
		t.Fatal(err)
	}
	if other.ID == first.ID {
		t.Error("different users must get different plans")
	}
}

func TestGetPlanByDate_NotFound(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.GetPlanByDate(context.Background(), "u1", dates.MustParse("2026-03-10"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPlanByDate() error = %v, want ErrNotFound", err)
	}

	_, err = s.GetPlan(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPlan() error = %v, want ErrNotFound", err)
	}
}

func TestSubmitPlan_PersistsGoalsAndStatus(t *testing.T) {
	s, clock := newTestStore(t)
	ctx := context.Background()
	plan, err := s.GetOrCreatePlan(ctx, "u1", dates.MustParse("2026-03-10"))
	if err != nil {
		t.Fatal(err)
	}

	clock.Advance(time.Minute)
	submitted, goals, err := s.SubmitPlan(ctx, plan.ID, []types.GoalInput{
		{Title: "one", SortOrder: 0},
		{Title: "two", SortOrder: 1},
		{Title: "three", SortOrder: 2},
		{Title: "four", SortOrder: 3},
	})
	if err != nil {
		t.Fatalf("SubmitPlan() error = %v", err)
	}

	if submitted.Status != types.PlanSubmitted {
		t.Errorf("Status = %q, want submitted", submitted.Status)
	}
	if submitted.SubmittedAt == nil || !submitted.SubmittedAt.Equal(testNow.Add(time.Minute)) {
		t.Errorf("SubmittedAt = %v, want %v", submitted.SubmittedAt, testNow.Add(time.Minute))
	}
	if len(goals) != 4 {
		t.Fatalf("got %d goals, want 4", len(goals))
	}
}

func TestSubmitPlan_TooFewGoalsLeavesPlanUntouched(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	plan, err := s.GetOrCreatePlan(ctx, "u1", dates.MustParse("2026-03-10"))
	if err != nil {
		t.Fatal(err)
	}

	_, _, err = s.SubmitPlan(ctx, plan.ID, []types.GoalInput{
		{Title: "one", SortOrder: 0},
		{Title: "two", SortOrder: 1},
	})
	if !errors.Is(err, ErrNotEligible) {
		t.Fatalf("SubmitPlan() error = %v, want ErrNotEligible", err)
	}

	got, err := s.GetPlan(ctx, plan.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != types.PlanDraft {
		t.Errorf("Status = %q, want draft", got.Status)
	}
	goals, err := s.ListGoals(ctx, plan.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(goals) != 0 {
		t.Errorf("rolled back submit left %d goals", len(goals))
	}
}

func TestSubmitPlan_NilInputsUsesStoredGoals(t *testing.T) {
	s, _ := newTestStore(t)
	plan, _ := seedPlan(t, s, "u1", "2026-03-10", "a", "b", "c")

	submitted, goals, err := s.SubmitPlan(context.Background(), plan.ID, nil)
	if err != nil {
		t.Fatalf("SubmitPlan() error = %v", err)
	}
	if submitted.Status != types.PlanSubmitted {
		t.Errorf("Status = %q, want submitted", submitted.Status)
	}
	if len(goals) != 3 {
		t.Errorf("got %d goals, want 3", len(goals))
	}
}

func TestSubmitPlan_LockedPlan(t *testing.T) {
	s, _ := newTestStore(t)
	plan, _ := seedPlan(t, s, "u1", "2026-03-01", "a", "b", "c")

	if _, err := s.LockPlansBefore(context.Background(), dates.MustParse("2026-03-02")); err != nil {
		t.Fatal(err)
	}

	_, _, err := s.SubmitPlan(context.Background(), plan.ID, nil)
	if !errors.Is(err, ErrPlanLocked) {
		t.Errorf("SubmitPlan() error = %v, want ErrPlanLocked", err)
	}
}

func TestReopenPlan_ClearsReviewAndAudits(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	plan, _ := seedPlan(t, s, "u1", "2026-03-10", "a", "b", "c")

	// Not closed yet.
	if _, err := s.ReopenPlan(ctx, plan.ID, "admin", "oops"); !errors.Is(err, ErrNotEligible) {
		t.Fatalf("ReopenPlan() on open day error = %v, want ErrNotEligible", err)
	}

	// All goals not_started: closure is vacuously eligible.
	if _, err := s.AwardClosure(ctx, plan.ID, 5); err != nil {
		t.Fatal(err)
	}

	reopened, err := s.ReopenPlan(ctx, plan.ID, "admin", "  forgot a goal  ")
	if err != nil {
		t.Fatalf("ReopenPlan() error = %v", err)
	}
	if reopened.ReviewedAt != nil {
		t.Error("ReviewedAt should be cleared")
	}
	if !reopened.ClosureAwarded {
		t.Error("ClosureAwarded should stay true after reopen")
	}

	entries, err := s.ListAudit(ctx, plan.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d audit entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Action != types.AuditReopen || e.Actor != "admin" {
		t.Errorf("audit entry = %+v", e)
	}
	if e.Reason == nil || *e.Reason != "forgot a goal" {
		t.Errorf("Reason = %v, want trimmed reason", e.Reason)
	}
}

func TestLockPlansBefore_LocksOnlyOlderPlans(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	old, _ := seedPlan(t, s, "u1", "2026-03-01", "a")
	older, _ := seedPlan(t, s, "u2", "2026-02-20", "b")
	recent, _ := seedPlan(t, s, "u1", "2026-03-05", "c")

	entries, err := s.LockPlansBefore(ctx, dates.MustParse("2026-03-03"))
	if err != nil {
		t.Fatalf("LockPlansBefore() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("locked %d plans, want 2", len(entries))
	}
	for _, e := range entries {
		if e.Actor != types.SystemActor || e.Action != types.AuditLock {
			t.Errorf("unexpected audit entry %+v", e)
		}
	}

	for _, tc := range []struct {
		id   string
		want types.PlanStatus
	}{
		{old.ID, types.PlanLocked},
		{older.ID, types.PlanLocked},
		{recent.ID, types.PlanDraft},
	} {
		p, err := s.GetPlan(ctx, tc.id)
		if err != nil {
			t.Fatal(err)
		}
		if p.Status != tc.want {
			t.Errorf("plan %s status = %q, want %q", p.PlanDate, p.Status, tc.want)
		}
	}

	again, err := s.LockPlansBefore(ctx, dates.MustParse("2026-03-03"))
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != 0 {
		t.Errorf("second pass locked %d plans, want 0", len(again))
	}
}

func TestListPlanSummaries_CountsPerDay(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	_, goals := seedPlan(t, s, "u1", "2026-03-09", "a", "b", "c")
	seedPlan(t, s, "u1", "2026-03-10", "d")
	seedPlan(t, s, "u1", "2026-03-20", "outside")
	seedPlan(t, s, "u2", "2026-03-09", "other user")

	if _, err := s.SetGoalStatus(ctx, goals[0].ID, types.GoalCompleted); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ToggleGoalReviewed(ctx, goals[0].ID); err != nil {
		t.Fatal(err)
	}

	summaries, err := s.ListPlanSummaries(ctx, "u1", dates.MustParse("2026-03-01"), dates.MustParse("2026-03-15"))
	if err != nil {
		t.Fatalf("ListPlanSummaries() error = %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("got %d summaries, want 2", len(summaries))
	}

	first := summaries[0]
	if first.PlanDate.String() != "2026-03-09" {
		t.Errorf("first date = %s, want 2026-03-09", first.PlanDate)
	}
	if first.GoalCount != 3 || first.CompletedCount != 1 || first.ReviewedCount != 1 {
		t.Errorf("first summary counts = %+v", first)
	}
	if summaries[1].GoalCount != 1 {
		t.Errorf("second summary goal count = %d, want 1", summaries[1].GoalCount)
	}
}
