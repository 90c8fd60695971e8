package client

import (
	"errors"
	"fmt"
	"net/http"
)

// FieldError describes one invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// APIError is a problem response returned by the service.
type APIError struct {
	Type         string       `json:"type"`
	Title        string       `json:"title"`
	Status       int          `json:"status"`
	Detail       string       `json:"detail"`
	BlockingDate string       `json:"blocking_date,omitempty"`
	Errors       []FieldError `json:"errors,omitempty"`
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("standup: %d %s", e.Status, e.Title)
	}
	return fmt.Sprintf("standup: %d %s: %s", e.Status, e.Title, e.Detail)
}

// IsNotFound reports whether err is a 404 from the service.
func IsNotFound(err error) bool { return hasStatus(err, http.StatusNotFound) }

// IsForbidden reports whether err rejected a write to a locked or closed plan.
func IsForbidden(err error) bool { return hasStatus(err, http.StatusForbidden) }

// IsValidation reports whether err is a field validation failure.
func IsValidation(err error) bool { return hasStatus(err, http.StatusUnprocessableEntity) }

// GateBlocked returns the day that must be reviewed first when err is a
// review-gate rejection.
func GateBlocked(err error) (string, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict && apiErr.BlockingDate != "" {
		return apiErr.BlockingDate, true
	}
	return "", false
}

func hasStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}
