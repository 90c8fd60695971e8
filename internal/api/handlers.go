package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/hyperengineering/standup/internal/dates"
	"github.com/hyperengineering/standup/internal/lifecycle"
	"github.com/hyperengineering/standup/internal/snapshot"
	"github.com/hyperengineering/standup/internal/types"
	"github.com/hyperengineering/standup/internal/validation"
)

// StatsProvider reports aggregate counts for the health endpoint.
type StatsProvider interface {
	GetStats(ctx context.Context) (*types.StoreStats, error)
}

// Handler implements the API handlers
type Handler struct {
	engine       *lifecycle.Engine
	stats        StatsProvider
	uploader     snapshot.Uploader
	snapshotPath string
	apiKey       string
	version      string
}

// NewHandler creates a new Handler. uploader may be nil when snapshots are
// kept local only.
func NewHandler(engine *lifecycle.Engine, stats StatsProvider, uploader snapshot.Uploader, snapshotPath, apiKey, version string) *Handler {
	return &Handler{
		engine:       engine,
		stats:        stats,
		uploader:     uploader,
		snapshotPath: snapshotPath,
		apiKey:       apiKey,
		version:      version,
	}
}

// UpdateProfileRequest is the body of PUT /profile.
type UpdateProfileRequest struct {
	DisplayName *string `json:"display_name"`
}

// GoalsRequest is the body of PUT /plans/{planID}/goals and POST /plans/{planID}/submit.
type GoalsRequest struct {
	Goals []types.GoalInput `json:"goals"`
}

// ReopenRequest is the body of POST /plans/{planID}/reopen.
type ReopenRequest struct {
	Reason string `json:"reason"`
	Actor  string `json:"actor,omitempty"`
}

// StatusRequest is the body of PUT /goals/{goalID}/status.
type StatusRequest struct {
	Status types.GoalStatus `json:"status"`
}

// PriorityRequest is the body of PUT /goals/{goalID}/priority.
type PriorityRequest struct {
	Priority int `json:"priority"`
}

// RescheduleRequest is the body of POST /goals/{goalID}/reschedule.
type RescheduleRequest struct {
	ToDate string  `json:"to_date"`
	Reason *string `json:"reason,omitempty"`
}

// NoteRequest is the body of POST /goals/{goalID}/notes.
type NoteRequest struct {
	Note string `json:"note"`
}

// Health returns the health status
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.GetStats(r.Context())
	if err != nil {
		slog.Error("health check failed", "component", "api", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, types.HealthResponse{
		Status:    "healthy",
		Version:   h.version,
		PlanCount: stats.PlanCount,
		GoalCount: stats.GoalCount,
	})
}

// GetProfile handles GET /api/v1/profile
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.engine.Profile(r.Context(), MustUserIDFromContext(r.Context()))
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// UpdateProfile handles PUT /api/v1/profile
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	profile, err := h.engine.SetDisplayName(r.Context(), MustUserIDFromContext(r.Context()), req.DisplayName)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// History handles GET /api/v1/days?from=&to=
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	var c validation.Collector
	q := r.URL.Query()
	c.Add(validation.ValidateDate("from", q.Get("from")))
	c.Add(validation.ValidateDate("to", q.Get("to")))
	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", c.Errors())
		return
	}
	from, _ := dates.Parse(q.Get("from"))
	to, _ := dates.Parse(q.Get("to"))

	summaries, err := h.engine.History(r.Context(), MustUserIDFromContext(r.Context()), from, to)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

// OpenDay handles GET /api/v1/days/{date}. It creates the plan on first
// access and materializes reschedules that target the date.
func (h *Handler) OpenDay(w http.ResponseWriter, r *http.Request) {
	date, ok := pathDate(w, r)
	if !ok {
		return
	}
	today, ok := h.referenceDate(w, r)
	if !ok {
		return
	}
	view, err := h.engine.OpenPlan(r.Context(), MustUserIDFromContext(r.Context()), date, today)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Gate handles GET /api/v1/days/{date}/gate
func (h *Handler) Gate(w http.ResponseWriter, r *http.Request) {
	date, ok := pathDate(w, r)
	if !ok {
		return
	}
	gate, err := h.engine.CheckGate(r.Context(), MustUserIDFromContext(r.Context()), date)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, gate)
}

// Reschedules handles GET /api/v1/days/{date}/reschedules
func (h *Handler) Reschedules(w http.ResponseWriter, r *http.Request) {
	date, ok := pathDate(w, r)
	if !ok {
		return
	}
	records, err := h.engine.Reschedules(r.Context(), MustUserIDFromContext(r.Context()), date)
	if err != nil {
		MapError(w, r, err)
		return
	}
	if records == nil {
		records = []types.RescheduleRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// ListGoals handles GET /api/v1/plans/{planID}/goals
func (h *Handler) ListGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := h.engine.ListGoals(r.Context(), MustUserIDFromContext(r.Context()), chi.URLParam(r, "planID"))
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNilGoals(goals))
}

// SaveGoals handles PUT /api/v1/plans/{planID}/goals
func (h *Handler) SaveGoals(w http.ResponseWriter, r *http.Request) {
	var req GoalsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	today, ok := h.referenceDate(w, r)
	if !ok {
		return
	}
	goals, err := h.engine.SaveGoals(r.Context(), MustUserIDFromContext(r.Context()), chi.URLParam(r, "planID"), req.Goals, today)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNilGoals(goals))
}

// SubmitPlan handles POST /api/v1/plans/{planID}/submit. The body is
// optional; without one the stored goals are submitted as they are.
func (h *Handler) SubmitPlan(w http.ResponseWriter, r *http.Request) {
	var req GoalsRequest
	present, ok := decodeOptionalJSON(w, r, &req)
	if !ok {
		return
	}
	today, ok := h.referenceDate(w, r)
	if !ok {
		return
	}

	var inputs []types.GoalInput
	if present && req.Goals != nil {
		inputs = req.Goals
	}
	view, err := h.engine.SubmitPlan(r.Context(), MustUserIDFromContext(r.Context()), chi.URLParam(r, "planID"), inputs, today)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// AwardAwareness handles POST /api/v1/plans/{planID}/awards/awareness
func (h *Handler) AwardAwareness(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.AwardAwareness(r.Context(), MustUserIDFromContext(r.Context()), chi.URLParam(r, "planID"))
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// AwardClosure handles POST /api/v1/plans/{planID}/awards/closure
func (h *Handler) AwardClosure(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.AwardClosure(r.Context(), MustUserIDFromContext(r.Context()), chi.URLParam(r, "planID"))
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ReopenPlan handles POST /api/v1/plans/{planID}/reopen
func (h *Handler) ReopenPlan(w http.ResponseWriter, r *http.Request) {
	var req ReopenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	plan, err := h.engine.ReopenPlan(r.Context(), MustUserIDFromContext(r.Context()), chi.URLParam(r, "planID"), req.Actor, req.Reason)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// AuditTrail handles GET /api/v1/plans/{planID}/audit
func (h *Handler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	entries, err := h.engine.AuditTrail(r.Context(), MustUserIDFromContext(r.Context()), chi.URLParam(r, "planID"))
	if err != nil {
		MapError(w, r, err)
		return
	}
	if entries == nil {
		entries = []types.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// DeleteGoal handles DELETE /api/v1/goals/{goalID}.
// Returns 204 whether or not the goal existed.
func (h *Handler) DeleteGoal(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.DeleteGoal(r.Context(), MustUserIDFromContext(r.Context()), chi.URLParam(r, "goalID")); err != nil {
		MapError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleReview handles POST /api/v1/goals/{goalID}/review
func (h *Handler) ToggleReview(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.ToggleReview(r.Context(), MustUserIDFromContext(r.Context()), chi.URLParam(r, "goalID"))
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// SetStatus handles PUT /api/v1/goals/{goalID}/status
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	goal, err := h.engine.SetGoalStatus(r.Context(), MustUserIDFromContext(r.Context()), chi.URLParam(r, "goalID"), req.Status)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

// SetPriority handles PUT /api/v1/goals/{goalID}/priority
func (h *Handler) SetPriority(w http.ResponseWriter, r *http.Request) {
	var req PriorityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	goal, err := h.engine.SetGoalPriority(r.Context(), MustUserIDFromContext(r.Context()), chi.URLParam(r, "goalID"), req.Priority)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

// Reschedule handles POST /api/v1/goals/{goalID}/reschedule
func (h *Handler) Reschedule(w http.ResponseWriter, r *http.Request) {
	var req RescheduleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if verr := validation.ValidateDate("to_date", req.ToDate); verr != nil {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", []validation.ValidationError{*verr})
		return
	}
	toDate, _ := dates.Parse(req.ToDate)
	today, ok := h.referenceDate(w, r)
	if !ok {
		return
	}

	record, err := h.engine.RescheduleGoal(r.Context(), MustUserIDFromContext(r.Context()), chi.URLParam(r, "goalID"), toDate, req.Reason, today)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

// ListNotes handles GET /api/v1/goals/{goalID}/notes
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.engine.ListGoalNotes(r.Context(), MustUserIDFromContext(r.Context()), chi.URLParam(r, "goalID"))
	if err != nil {
		MapError(w, r, err)
		return
	}
	if notes == nil {
		notes = []types.GoalNote{}
	}
	writeJSON(w, http.StatusOK, notes)
}

// AddNote handles POST /api/v1/goals/{goalID}/notes
func (h *Handler) AddNote(w http.ResponseWriter, r *http.Request) {
	var req NoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	note, err := h.engine.AddGoalNote(r.Context(), MustUserIDFromContext(r.Context()), chi.URLParam(r, "goalID"), req.Note)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// Snapshot handles GET /api/v1/admin/snapshot.
// Redirects to a presigned object storage URL when one is available and
// otherwise streams the latest local backup.
func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	if h.uploader != nil {
		url, _, err := h.uploader.PresignedURL(r.Context(), snapshot.CurrentName)
		if err == nil {
			http.Redirect(w, r, url, http.StatusFound)
			return
		}
		if !errors.Is(err, snapshot.ErrNotConfigured) {
			slog.Warn("presigned url failed, serving local snapshot",
				"component", "api",
				"error", err,
			)
		}
	}

	if h.snapshotPath == "" {
		WriteProblem(w, r, http.StatusServiceUnavailable, "Snapshot not available")
		return
	}
	f, err := os.Open(h.snapshotPath)
	if errors.Is(err, os.ErrNotExist) {
		WriteProblem(w, r, http.StatusServiceUnavailable, "Snapshot not yet generated")
		return
	}
	if err != nil {
		MapError(w, r, fmt.Errorf("open snapshot: %w", err))
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil {
		slog.Warn("snapshot stream interrupted", "component", "api", "error", err)
	}
}

// referenceDate returns the caller's "today": the today query parameter
// when present, otherwise the engine clock.
func (h *Handler) referenceDate(w http.ResponseWriter, r *http.Request) (dates.Date, bool) {
	raw := r.URL.Query().Get("today")
	if raw == "" {
		return h.engine.Today(), true
	}
	d, err := dates.Parse(raw)
	if err != nil {
		WriteProblem(w, r, http.StatusBadRequest, "Invalid today parameter: must be YYYY-MM-DD")
		return dates.Date{}, false
	}
	return d, true
}

func pathDate(w http.ResponseWriter, r *http.Request) (dates.Date, bool) {
	d, err := dates.Parse(chi.URLParam(r, "date"))
	if err != nil {
		WriteProblem(w, r, http.StatusBadRequest, "Invalid date: must be YYYY-MM-DD")
		return dates.Date{}, false
	}
	return d, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return false
	}
	return true
}

// decodeOptionalJSON is decodeJSON for endpoints whose body may be empty.
// present reports whether a body was decoded.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) (present, ok bool) {
	if r.Body == nil {
		return false, true
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return false, true
	}
	if err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return false, false
	}
	return true, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "component", "api", "error", err)
	}
}

func nonNilGoals(goals []types.Goal) []types.Goal {
	if goals == nil {
		return []types.Goal{}
	}
	return goals
}
