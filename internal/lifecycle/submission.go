package lifecycle

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hyperengineering/standup/internal/types"
	"github.com/hyperengineering/standup/internal/validation"
)

// Compact collapses a slot list for submission: the required slots are kept
// as given, followed by the non-empty optional slots, capped at maxGoals.
// Sort orders are rewritten to match the result.
func Compact(inputs []types.GoalInput, maxGoals int) []types.GoalInput {
	sorted := make([]types.GoalInput, len(inputs))
	copy(sorted, inputs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SortOrder < sorted[j].SortOrder
	})

	out := make([]types.GoalInput, 0, len(sorted))
	for i, in := range sorted {
		if len(out) == maxGoals {
			break
		}
		if i >= types.RequiredGoals && strings.TrimSpace(in.Title) == "" {
			continue
		}
		in.SortOrder = len(out)
		out = append(out, in)
	}
	return out
}

// RequiredSlotProblems reports each required slot that is missing or blank.
// Slots are numbered from one in messages.
func RequiredSlotProblems(inputs []types.GoalInput) []validation.ValidationError {
	var c validation.Collector
	for i := 0; i < types.RequiredGoals; i++ {
		if i < len(inputs) && strings.TrimSpace(inputs[i].Title) != "" {
			continue
		}
		c.Add(&validation.ValidationError{
			Field:   fmt.Sprintf("goals[%d].title", i),
			Message: fmt.Sprintf("goal %d is empty", i+1),
		})
	}
	return c.Errors()
}

// storedSlotProblems reports required slots left unfilled by the stored goals.
// Stored titles are never blank, so only missing slots can fail.
func storedSlotProblems(goals []types.Goal) []validation.ValidationError {
	inputs := make([]types.GoalInput, len(goals))
	for i, g := range goals {
		inputs[i] = types.GoalInput{ID: g.ID, Title: g.Title, SortOrder: g.SortOrder}
	}
	return RequiredSlotProblems(inputs)
}
