package lifecycle

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hyperengineering/standup/internal/dates"
	"github.com/hyperengineering/standup/internal/store"
	"github.com/hyperengineering/standup/internal/validation"
)

var (
	ErrValidation    = errors.New("validation failed")
	ErrGateBlocked   = errors.New("prior day not reviewed")
	ErrImmutablePlan = errors.New("plan is read-only")
)

// ValidationError carries every field problem found in a request.
type ValidationError struct {
	Problems []validation.ValidationError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		if p.Field == "" {
			msgs[i] = p.Message
		} else {
			msgs[i] = p.Field + ": " + p.Message
		}
	}
	return strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, message string) *ValidationError {
	return &ValidationError{Problems: []validation.ValidationError{{Field: field, Message: message}}}
}

// GateBlockedError reports that Date cannot be planned until BlockingDate is reviewed.
type GateBlockedError struct {
	Date         dates.Date
	BlockingDate dates.Date
}

func (e *GateBlockedError) Error() string {
	return fmt.Sprintf("cannot plan %s until %s is reviewed", e.Date, e.BlockingDate)
}

func (e *GateBlockedError) Unwrap() error { return ErrGateBlocked }

// NotFoundError reports a missing resource or one owned by another user.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return store.ErrNotFound }

// Reasons a plan refuses writes.
const (
	ReasonLocked = "locked"
	ReasonClosed = "closed"
)

// ImmutablePlanError reports a write against a locked or closed plan.
type ImmutablePlanError struct {
	PlanID string
	Reason string
}

func (e *ImmutablePlanError) Error() string {
	return fmt.Sprintf("plan %s is %s", e.PlanID, e.Reason)
}

func (e *ImmutablePlanError) Unwrap() error { return ErrImmutablePlan }

// mapStoreError translates store sentinels into the engine's typed errors.
func mapStoreError(err error, resource, id, planID string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return &NotFoundError{Resource: resource, ID: id}
	case errors.Is(err, store.ErrPlanLocked):
		return &ImmutablePlanError{PlanID: planID, Reason: ReasonLocked}
	case errors.Is(err, store.ErrNotEligible):
		return invalid("", strings.TrimPrefix(err.Error(), store.ErrNotEligible.Error()+": "))
	default:
		return err
	}
}
