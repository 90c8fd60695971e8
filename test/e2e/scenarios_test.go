package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/hyperengineering/standup/internal/api"
	"github.com/hyperengineering/standup/internal/lifecycle"
	"github.com/hyperengineering/standup/internal/types"
)

func manualClosure(s *lifecycle.Settings) { s.AutoClosure = false }

// --- Review gate ---

func TestScenario_NoPriorPlanMeansGateOpen(t *testing.T) {
	srv := startInProcess(t)
	c := srv.client(t, "alice")

	for _, date := range []string{"2025-01-01", "2025-02-14", "2026-12-31"} {
		if gate := c.gate(date); !gate.Open {
			t.Errorf("gate(%s) closed with no prior plan", date)
		}
	}
}

func TestScenario_ClosureOpensNextDay(t *testing.T) {
	srv := startInProcess(t, manualClosure)
	c := srv.client(t, "alice")

	view := c.submitDay("2025-01-01", "Write brief", "Fix build", "Call vendor")
	for _, g := range view.Goals {
		c.setStatus(g.ID, types.GoalCompleted)
		if res := c.review(g.ID); res.Closure != nil {
			t.Fatalf("closure awarded by toggle with auto-closure off: %+v", res.Closure)
		}
	}

	if gate := c.gate("2025-01-02"); gate.Open {
		t.Fatal("gate open before closure")
	}
	status, _, err := c.send(http.MethodGet, "/days/2025-01-02?today=2025-01-01", nil)
	if err != nil {
		t.Fatal(err)
	}
	if status != http.StatusConflict {
		t.Fatalf("planning tomorrow before closure: status = %d, want %d", status, http.StatusConflict)
	}

	var closure types.AwardResult
	c.call(http.MethodPost, "/plans/"+view.Plan.ID+"/awards/closure", nil, http.StatusOK, &closure)
	if !closure.Awarded {
		t.Fatalf("closure = %+v, want awarded", closure)
	}

	reopened := c.openDay("2025-01-01")
	if reopened.Plan.ReviewedAt == nil {
		t.Error("reviewed_at not set after closure")
	}
	if gate := c.gate("2025-01-02"); !gate.Open {
		t.Error("gate closed after closure")
	}
	c.call(http.MethodGet, "/days/2025-01-02?today=2025-01-01", nil, http.StatusOK, nil)
}

// --- Scoring ---

func TestScenario_ConcurrentAwardsPayOnce(t *testing.T) {
	srv := startInProcess(t, manualClosure)
	c := srv.client(t, "alice")
	view := c.submitDay("2025-01-01", "a", "b", "c")
	path := "/plans/" + view.Plan.ID + "/awards/"

	const callers = 16
	race := func(kind string) int {
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			awarded int
			errs    []error
		)
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				status, body, err := c.send(http.MethodPost, path+kind, nil)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					errs = append(errs, err)
					return
				}
				if status != http.StatusOK {
					errs = append(errs, fmt.Errorf("status %d: %s", status, body))
					return
				}
				var res types.AwardResult
				if err := json.Unmarshal(body, &res); err != nil {
					errs = append(errs, err)
					return
				}
				if res.Awarded {
					awarded++
				}
			}()
		}
		wg.Wait()
		for _, err := range errs {
			t.Errorf("%s call failed: %v", kind, err)
		}
		return awarded
	}

	if n := race("awareness"); n != 1 {
		t.Errorf("awareness awarded %d times, want 1", n)
	}
	if p := c.profile(); p.Points != 5 {
		t.Errorf("points after awareness = %d, want 5", p.Points)
	}

	for _, g := range view.Goals {
		c.setStatus(g.ID, types.GoalAttempted)
		c.review(g.ID)
	}

	if n := race("closure"); n != 1 {
		t.Errorf("closure awarded %d times, want 1", n)
	}
	if p := c.profile(); p.Points != 10 {
		t.Errorf("points after closure = %d, want 10", p.Points)
	}

	plan := c.openDay("2025-01-01").Plan
	if !plan.AwarenessAwarded || !plan.ClosureAwarded {
		t.Errorf("flags = (%t, %t), want both set", plan.AwarenessAwarded, plan.ClosureAwarded)
	}
}

func TestScenario_AutoClosureOnLastReview(t *testing.T) {
	srv := startInProcess(t)
	c := srv.client(t, "alice")
	view := c.submitDay("2025-01-01", "a", "b", "c")

	var last lifecycle.ReviewResult
	for _, g := range view.Goals {
		c.setStatus(g.ID, types.GoalCompleted)
		last = c.review(g.ID)
	}

	if last.Closure == nil || !last.Closure.Awarded {
		t.Fatalf("closure = %+v, want awarded on last review", last.Closure)
	}
	if gate := c.gate("2025-01-02"); !gate.Open {
		t.Error("gate closed after automatic closure")
	}
}

// --- Goals ---

func TestScenario_PriorityOneIsUnique(t *testing.T) {
	srv := startInProcess(t)
	c := srv.client(t, "alice")
	view := c.submitDay("2025-01-01", "A", "B", "C", "D")
	a, b := view.Goals[0], view.Goals[1]

	c.call(http.MethodPut, "/goals/"+a.ID+"/priority", api.PriorityRequest{Priority: 1}, http.StatusOK, nil)
	c.call(http.MethodPut, "/goals/"+b.ID+"/priority", api.PriorityRequest{Priority: 1}, http.StatusOK, nil)

	byTitle := map[string]int{}
	for _, g := range c.goals(view.Plan.ID) {
		byTitle[g.Title] = g.Priority
	}
	want := map[string]int{"A": 2, "B": 1, "C": types.DefaultPriority, "D": types.DefaultPriority}
	for title, p := range want {
		if byTitle[title] != p {
			t.Errorf("priority(%s) = %d, want %d", title, byTitle[title], p)
		}
	}
}

func TestScenario_SubmitRequiresThreeGoals(t *testing.T) {
	srv := startInProcess(t)
	c := srv.client(t, "alice")
	view := c.openDay("2025-01-01")

	status, _, err := c.send(http.MethodPost, "/plans/"+view.Plan.ID+"/submit", api.GoalsRequest{
		Goals: []types.GoalInput{{Title: "one", SortOrder: 0}, {Title: "", SortOrder: 1}, {Title: "three", SortOrder: 2}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", status, http.StatusUnprocessableEntity)
	}
	if got := c.openDay("2025-01-01").Plan.Status; got != types.PlanDraft {
		t.Errorf("status after failed submit = %q, want %q", got, types.PlanDraft)
	}

	submitted := c.submitDay("2025-01-01", "one", "two", "three")
	if submitted.Plan.Status != types.PlanSubmitted || submitted.Plan.SubmittedAt == nil {
		t.Errorf("plan = %+v, want submitted with submitted_at", submitted.Plan)
	}
}

func TestScenario_UpsertReplayIsIdempotent(t *testing.T) {
	payloads := []struct {
		name  string
		goals []types.GoalInput
		want  int
	}{
		{"dense slots", []types.GoalInput{
			{Title: "alpha", SortOrder: 0},
			{Title: "beta", SortOrder: 1},
			{Title: "gamma", SortOrder: 2},
		}, 3},
		// Fixed slot forms send every slot, empty ones included.
		{"blank middle slot", []types.GoalInput{
			{Title: "alpha", SortOrder: 0},
			{Title: "", SortOrder: 1},
			{Title: "gamma", SortOrder: 2},
			{Title: "", SortOrder: 3},
			{Title: "epsilon", SortOrder: 4},
		}, 3},
	}

	for _, tt := range payloads {
		t.Run(tt.name, func(t *testing.T) {
			srv := startInProcess(t)
			c := srv.client(t, "alice")
			view := c.openDay("2025-01-01")

			payload := api.GoalsRequest{Goals: tt.goals}
			var first, second []types.Goal
			c.call(http.MethodPut, "/plans/"+view.Plan.ID+"/goals", payload, http.StatusOK, &first)
			c.call(http.MethodPut, "/plans/"+view.Plan.ID+"/goals", payload, http.StatusOK, &second)

			if len(first) != tt.want || len(second) != tt.want {
				t.Fatalf("len = %d then %d, want %d", len(first), len(second), tt.want)
			}
			for i := range first {
				if first[i].ID != second[i].ID || first[i].Title != second[i].Title {
					t.Errorf("goal %d = %s/%s after replay, want %s/%s", i, second[i].ID, second[i].Title, first[i].ID, first[i].Title)
				}
			}
		})
	}
}

// --- Reschedule ---

func TestScenario_RescheduleMaterializesOnce(t *testing.T) {
	srv := startInProcess(t)
	c := srv.client(t, "alice")
	view := c.submitDay("2025-01-01", "Ship report", "Sync with design", "Inbox zero")
	g := view.Goals[0]

	c.setStatus(g.ID, types.GoalAttempted)
	c.review(g.ID)

	reason := "waiting on data"
	var record types.RescheduleRecord
	c.call(http.MethodPost, "/goals/"+g.ID+"/reschedule?today=2025-01-01",
		api.RescheduleRequest{ToDate: "2025-01-03", Reason: &reason}, http.StatusCreated, &record)
	if record.Materialized {
		t.Fatal("record materialized before target day was opened")
	}

	first := c.openDay("2025-01-03")
	second := c.openDay("2025-01-03")

	if len(first.Materialized) != 1 {
		t.Errorf("first open materialized %d goals, want 1", len(first.Materialized))
	}
	if len(second.Materialized) != 0 {
		t.Errorf("second open materialized %d goals, want 0", len(second.Materialized))
	}

	count := 0
	for _, goal := range second.Goals {
		if goal.Title == "Ship report" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("goals titled Ship report on 2025-01-03 = %d, want 1", count)
	}

	var records []types.RescheduleRecord
	c.call(http.MethodGet, "/days/2025-01-03/reschedules", nil, http.StatusOK, &records)
	if len(records) != 1 || !records[0].Materialized {
		t.Errorf("records = %+v, want one materialized", records)
	}
	if records[0].Reason == nil || *records[0].Reason != reason {
		t.Errorf("reason = %v, want %q", records[0].Reason, reason)
	}
}

// --- Isolation ---

func TestScenario_UsersAreIsolated(t *testing.T) {
	srv := startInProcess(t)
	alice := srv.client(t, "alice")
	bob := srv.client(t, "bob")

	view := alice.submitDay("2025-01-01", "a", "b", "c")

	if gate := bob.gate("2025-01-02"); !gate.Open {
		t.Error("bob's gate blocked by alice's plan")
	}

	status, _, err := bob.send(http.MethodGet, "/plans/"+view.Plan.ID+"/goals", nil)
	if err != nil {
		t.Fatal(err)
	}
	if status != http.StatusNotFound {
		t.Errorf("bob reading alice's goals: status = %d, want %d", status, http.StatusNotFound)
	}

	status, _, err = bob.send(http.MethodPost, "/plans/"+view.Plan.ID+"/awards/awareness", nil)
	if err != nil {
		t.Fatal(err)
	}
	if status != http.StatusNotFound {
		t.Errorf("bob awarding alice's plan: status = %d, want %d", status, http.StatusNotFound)
	}
	if p := alice.profile(); p.Points != 0 {
		t.Errorf("alice points = %d, want 0", p.Points)
	}
}

// --- Locking ---

func TestScenario_LockedPlanIsReadOnly(t *testing.T) {
	srv := startInProcess(t)
	c := srv.client(t, "alice")
	view := c.submitDay("2025-01-01", "a", "b", "c")

	engine := lifecycle.NewEngine(srv.store, lifecycle.DefaultSettings())
	if _, err := engine.LockStalePlans(context.Background(), view.Plan.PlanDate.AddDays(30)); err != nil {
		t.Fatal(err)
	}

	status, _, err := c.send(http.MethodPut, "/goals/"+view.Goals[0].ID+"/status", api.StatusRequest{Status: types.GoalCompleted})
	if err != nil {
		t.Fatal(err)
	}
	if status != http.StatusForbidden {
		t.Errorf("status = %d, want %d", status, http.StatusForbidden)
	}

	var entries []types.AuditEntry
	c.call(http.MethodGet, "/plans/"+view.Plan.ID+"/audit", nil, http.StatusOK, &entries)
	if len(entries) != 1 || entries[0].Action != types.AuditLock || entries[0].Actor != types.SystemActor {
		t.Errorf("audit = %+v, want one lock by system", entries)
	}
}
