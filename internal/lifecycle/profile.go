package lifecycle

import (
	"context"

	"github.com/hyperengineering/standup/internal/types"
	"github.com/hyperengineering/standup/internal/validation"
)

// Profile returns the user's profile, creating it on first use.
func (e *Engine) Profile(ctx context.Context, userID string) (*types.Profile, error) {
	return e.store.GetOrCreateProfile(ctx, userID)
}

// SetDisplayName sets or clears the user's display name.
func (e *Engine) SetDisplayName(ctx context.Context, userID string, name *string) (*types.Profile, error) {
	if name != nil {
		if problems := validation.ValidateText("display_name", *name, validation.MaxNameLength); len(problems) > 0 {
			return nil, &ValidationError{Problems: problems}
		}
	}
	return e.store.UpdateDisplayName(ctx, userID, name)
}
