package store

import "errors"

var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflicting concurrent update")
	ErrPlanLocked  = errors.New("plan is locked")
	ErrNotEligible = errors.New("plan not eligible")
)
