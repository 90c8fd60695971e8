// Package validation checks user-entered planning input and reports every
// failing field at once.
package validation

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/hyperengineering/standup/internal/dates"
)

// Field limits for user-entered text, counted in runes.
const (
	MaxTitleLength   = 200
	MaxDetailsLength = 2000
	MaxNoteLength    = 2000
	MaxReasonLength  = 500
	MaxNameLength    = 100
)

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) String() string {
	return e.Field + " " + e.Message
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Collector accumulates validation errors without failing on first.
type Collector struct {
	errors []ValidationError
}

// Add records err; nil is ignored so checks can be chained directly.
func (c *Collector) Add(err *ValidationError) {
	if err != nil {
		c.errors = append(c.errors, *err)
	}
}

// AddAll records every error in errs.
func (c *Collector) AddAll(errs []ValidationError) {
	c.errors = append(c.errors, errs...)
}

func (c *Collector) HasErrors() bool {
	return len(c.errors) > 0
}

// Errors returns the recorded errors in the order they were added.
func (c *Collector) Errors() []ValidationError {
	return c.errors
}

func ValidateUTF8(field, value string) *ValidationError {
	if utf8.ValidString(value) {
		return nil
	}
	return invalid(field, "must be valid UTF-8")
}

func ValidateNoNullBytes(field, value string) *ValidationError {
	if strings.IndexByte(value, 0) < 0 {
		return nil
	}
	return invalid(field, "must not contain null bytes")
}

// ValidateMaxLength rejects values longer than max runes.
func ValidateMaxLength(field, value string, max int) *ValidationError {
	if utf8.RuneCountInString(value) <= max {
		return nil
	}
	return invalid(field, "exceeds maximum length of %d characters", max)
}

// ValidateULID requires a canonical 26-character Crockford Base32 ULID.
func ValidateULID(field, value string) *ValidationError {
	_, err := ulid.ParseStrict(value)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ulid.ErrDataSize):
		return invalid(field, "must be a valid ULID (26 characters)")
	case errors.Is(err, ulid.ErrOverflow):
		return invalid(field, "must be a valid ULID (out of range)")
	default:
		return invalid(field, "must be a valid ULID (invalid character)")
	}
}

// ValidateRequired rejects empty and whitespace-only values.
func ValidateRequired(field, value string) *ValidationError {
	if strings.TrimSpace(value) != "" {
		return nil
	}
	return invalid(field, "is required")
}

// ValidateEnum is case sensitive.
func ValidateEnum(field, value string, allowed []string) *ValidationError {
	if slices.Contains(allowed, value) {
		return nil
	}
	return invalid(field, "must be one of: %s", strings.Join(allowed, ", "))
}

// ValidateRange rejects values outside [min, max].
func ValidateRange(field string, value, min, max int) *ValidationError {
	if value >= min && value <= max {
		return nil
	}
	return invalid(field, "must be between %d and %d", min, max)
}

// ValidateDate requires a real YYYY-MM-DD calendar date.
func ValidateDate(field, value string) *ValidationError {
	if _, err := dates.Parse(value); err != nil {
		return invalid(field, "must be a date in YYYY-MM-DD format")
	}
	return nil
}

// ValidateText applies the encoding checks and a length limit to free text.
// Surrounding whitespace does not count towards the limit.
func ValidateText(field, value string, max int) []ValidationError {
	var c Collector
	c.Add(ValidateUTF8(field, value))
	c.Add(ValidateNoNullBytes(field, value))
	c.Add(ValidateMaxLength(field, strings.TrimSpace(value), max))
	return c.Errors()
}
