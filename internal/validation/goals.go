package validation

import (
	"fmt"

	"github.com/hyperengineering/standup/internal/types"
)

// ValidateGoalInput checks one planning payload entry. Empty titles are
// allowed here; callers decide whether a blank slot is dropped or rejected.
func ValidateGoalInput(index int, in types.GoalInput) []ValidationError {
	var c Collector
	prefix := fmt.Sprintf("goals[%d]", index)

	if in.ID != "" {
		c.Add(ValidateULID(prefix+".id", in.ID))
	}
	c.AddAll(ValidateText(prefix+".title", in.Title, MaxTitleLength))
	if in.Details != nil {
		c.AddAll(ValidateText(prefix+".details", *in.Details, MaxDetailsLength))
	}
	if in.Status != "" {
		c.Add(ValidateEnum(prefix+".status", string(in.Status), types.GoalStatuses))
	}
	if in.Priority != 0 {
		c.Add(ValidatePriority(prefix+".priority", in.Priority))
	}
	if in.SortOrder < 0 {
		c.Add(&ValidationError{Field: prefix + ".sort_order", Message: "must not be negative"})
	}
	return c.Errors()
}

// ValidateGoalInputs checks every entry and caps the number of non-empty goals.
func ValidateGoalInputs(inputs []types.GoalInput, maxGoals int) []ValidationError {
	var c Collector
	filled := 0
	for i, in := range inputs {
		c.AddAll(ValidateGoalInput(i, in))
		if ValidateRequired("", in.Title) == nil {
			filled++
		}
	}
	if maxGoals > 0 && filled > maxGoals {
		c.Add(&ValidationError{
			Field:   "goals",
			Message: fmt.Sprintf("exceeds maximum of %d goals", maxGoals),
		})
	}
	return c.Errors()
}

// ValidatePriority returns an error if p is outside 1..5.
func ValidatePriority(field string, p int) *ValidationError {
	return ValidateRange(field, p, types.MinPriority, types.MaxPriority)
}

// ValidateGoalStatus returns an error if s is not a known goal status.
func ValidateGoalStatus(field string, s types.GoalStatus) *ValidationError {
	return ValidateEnum(field, string(s), types.GoalStatuses)
}
