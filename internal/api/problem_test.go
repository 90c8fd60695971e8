package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hyperengineering/standup/internal/dates"
	"github.com/hyperengineering/standup/internal/lifecycle"
	"github.com/hyperengineering/standup/internal/store"
	"github.com/hyperengineering/standup/internal/validation"
)

func TestWriteProblem(t *testing.T) {
	tests := []struct {
		status  int
		typeURI string
		title   string
	}{
		{http.StatusUnauthorized, "https://standup.dev/errors/unauthorized", "Unauthorized"},
		{http.StatusForbidden, "https://standup.dev/errors/forbidden", "Forbidden"},
		{http.StatusConflict, "https://standup.dev/errors/conflict", "Conflict"},
		{http.StatusUnprocessableEntity, "https://standup.dev/errors/validation-error", "Validation Error"},
		{http.StatusServiceUnavailable, "https://standup.dev/errors/service-unavailable", "Service Unavailable"},
		{http.StatusTeapot, "https://standup.dev/errors/unknown", "I'm a teapot"},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/api/v1/days/2025-01-02", nil)

			WriteProblem(w, r, tt.status, "something went wrong")

			if w.Code != tt.status {
				t.Errorf("status code = %d, want %d", w.Code, tt.status)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/problem+json" {
				t.Errorf("Content-Type = %q, want application/problem+json", ct)
			}
			want := Problem{
				Type:     tt.typeURI,
				Title:    tt.title,
				Status:   tt.status,
				Detail:   "something went wrong",
				Instance: "/api/v1/days/2025-01-02",
			}
			if got := decodeProblem(t, w); got != want {
				t.Errorf("problem = %+v, want %+v", got, want)
			}
		})
	}
}

func TestWriteProblemWithErrors(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPut, "/api/v1/plans/p1/goals", nil)

	WriteProblemWithErrors(w, r, "Request contains invalid fields", []validation.ValidationError{
		{Field: "goals[0].title", Message: "exceeds maximum length of 200 characters"},
		{Field: "note", Message: "is required"},
	})

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status code = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}
	var body struct {
		Type   string `json:"type"`
		Errors []struct {
			Field   string `json:"field"`
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if body.Type != "https://standup.dev/errors/validation-error" {
		t.Errorf("type = %q", body.Type)
	}
	if len(body.Errors) != 2 || body.Errors[0].Field != "goals[0].title" || body.Errors[1].Message != "is required" {
		t.Errorf("errors = %+v", body.Errors)
	}
}

// --- MapError Tests ---

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) Problem {
	t.Helper()
	var p Problem
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	return p
}

func TestMapError_StatusCodes(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		typeURI string
	}{
		{"store not found", store.ErrNotFound, http.StatusNotFound, "https://standup.dev/errors/not-found"},
		{"lifecycle not found", &lifecycle.NotFoundError{Resource: "goal", ID: "g1"}, http.StatusNotFound, "https://standup.dev/errors/not-found"},
		{"immutable", &lifecycle.ImmutablePlanError{PlanID: "p1", Reason: lifecycle.ReasonLocked}, http.StatusForbidden, "https://standup.dev/errors/forbidden"},
		{"store locked", store.ErrPlanLocked, http.StatusForbidden, "https://standup.dev/errors/forbidden"},
		{"conflict", fmt.Errorf("%w: busy", store.ErrConflict), http.StatusConflict, "https://standup.dev/errors/conflict"},
		{"unknown", errors.New("some unknown error"), http.StatusInternalServerError, "https://standup.dev/errors/internal-error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/api/v1/goals/g1", nil)

			MapError(w, r, tt.err)

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			if p := decodeProblem(t, w); p.Type != tt.typeURI {
				t.Errorf("type = %v, want %v", p.Type, tt.typeURI)
			}
		})
	}
}

func TestMapError_UnknownDoesNotLeak(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/profile", nil)

	MapError(w, r, errors.New("disk I/O error at /var/lib/standup.db"))

	if p := decodeProblem(t, w); p.Detail != "Internal Server Error" {
		t.Errorf("detail = %v, want 'Internal Server Error' (no leak)", p.Detail)
	}
}

func TestMapError_Validation(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/plans/p1/submit", nil)

	err := &lifecycle.ValidationError{Problems: []validation.ValidationError{
		{Field: "goals[1].title", Message: "goal 2 is empty"},
	}}
	MapError(w, r, fmt.Errorf("submit: %w", err))

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}
	var p ProblemWithErrors
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if len(p.Errors) != 1 || p.Errors[0].Message != "goal 2 is empty" {
		t.Errorf("errors = %+v", p.Errors)
	}
}

func TestMapError_GateBlocked(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/days/2025-01-02", nil)

	MapError(w, r, &lifecycle.GateBlockedError{
		Date:         dates.MustParse("2025-01-02"),
		BlockingDate: dates.MustParse("2025-01-01"),
	})

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusConflict)
	}
	var p ProblemGateBlocked
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if p.BlockingDate != "2025-01-01" {
		t.Errorf("blocking_date = %q, want %q", p.BlockingDate, "2025-01-01")
	}
	if p.Type != gateBlockedType {
		t.Errorf("type = %v, want %v", p.Type, gateBlockedType)
	}
}
