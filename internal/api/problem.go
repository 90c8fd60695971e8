package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hyperengineering/standup/internal/lifecycle"
	"github.com/hyperengineering/standup/internal/store"
	"github.com/hyperengineering/standup/internal/validation"
)

// Problem represents an RFC 7807 Problem Details response.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
}

const problemBase = "https://standup.dev/errors/"

// problemSlugs names the type URI for each status the API emits.
var problemSlugs = map[int]string{
	http.StatusBadRequest:          "bad-request",
	http.StatusUnauthorized:        "unauthorized",
	http.StatusForbidden:           "forbidden",
	http.StatusNotFound:            "not-found",
	http.StatusConflict:            "conflict",
	http.StatusUnprocessableEntity: "validation-error",
	http.StatusInternalServerError: "internal-error",
	http.StatusServiceUnavailable:  "service-unavailable",
}

// gateBlockedType identifies 409 responses caused by an unreviewed prior day.
const gateBlockedType = problemBase + "gate-blocked"

func newProblem(r *http.Request, status int, detail string) Problem {
	slug, ok := problemSlugs[status]
	if !ok {
		slug = "unknown"
	}
	title := http.StatusText(status)
	if status == http.StatusUnprocessableEntity {
		title = "Validation Error"
	}
	return Problem{
		Type:     problemBase + slug,
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: r.URL.Path,
	}
}

func writeProblemBody(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode problem response", "error", err)
	}
}

// WriteProblem writes an RFC 7807 Problem Details response.
func WriteProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	writeProblemBody(w, status, newProblem(r, status, detail))
}

// ProblemWithErrors extends Problem with validation error details.
type ProblemWithErrors struct {
	Problem
	Errors []validation.ValidationError `json:"errors,omitempty"`
}

// WriteProblemWithErrors writes a 422 Problem Details response with field errors.
func WriteProblemWithErrors(w http.ResponseWriter, r *http.Request, detail string, errs []validation.ValidationError) {
	p := ProblemWithErrors{
		Problem: newProblem(r, http.StatusUnprocessableEntity, detail),
		Errors:  errs,
	}
	writeProblemBody(w, http.StatusUnprocessableEntity, p)
}

// ProblemGateBlocked extends Problem with the day that must be reviewed first.
type ProblemGateBlocked struct {
	Problem
	BlockingDate string `json:"blocking_date"`
}

// WriteProblemGateBlocked writes a 409 response naming the blocking day.
func WriteProblemGateBlocked(w http.ResponseWriter, r *http.Request, gateErr *lifecycle.GateBlockedError) {
	p := ProblemGateBlocked{
		Problem:      newProblem(r, http.StatusConflict, gateErr.Error()),
		BlockingDate: gateErr.BlockingDate.String(),
	}
	p.Type = gateBlockedType
	writeProblemBody(w, http.StatusConflict, p)
}

// MapError converts domain errors to Problem Details responses.
func MapError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr      *lifecycle.ValidationError
		gateErr   *lifecycle.GateBlockedError
		nf        *lifecycle.NotFoundError
		immutable *lifecycle.ImmutablePlanError
	)
	switch {
	case errors.As(err, &verr):
		WriteProblemWithErrors(w, r, "Request contains invalid fields", verr.Problems)
	case errors.As(err, &gateErr):
		WriteProblemGateBlocked(w, r, gateErr)
	case errors.As(err, &nf):
		WriteProblem(w, r, http.StatusNotFound, nf.Error())
	case errors.Is(err, store.ErrNotFound):
		WriteProblem(w, r, http.StatusNotFound, "Resource not found")
	case errors.As(err, &immutable):
		WriteProblem(w, r, http.StatusForbidden, immutable.Error())
	case errors.Is(err, store.ErrPlanLocked):
		WriteProblem(w, r, http.StatusForbidden, "Plan is locked")
	case errors.Is(err, store.ErrConflict):
		WriteProblem(w, r, http.StatusConflict, "Concurrent update, retry the request")
	default:
		slog.Error("request failed",
			"component", "api",
			"request_id", GetRequestID(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
		// Never expose internal error details to client
		WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
	}
}
