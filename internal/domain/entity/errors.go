package entity

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced to collaborators.
var (
	// ErrNotFound is returned for unknown batch numbers, check numbers and
	// holiday ids.
	ErrNotFound = errors.New("not found")

	// ErrDateOccupied is returned when a calendar entry already exists for
	// the requested date.
	ErrDateOccupied = errors.New("calendar date already classified")

	// ErrFileTooLarge and ErrTooManyRows reject an upload before any row is
	// processed; nothing is persisted.
	ErrFileTooLarge = errors.New("file exceeds maximum allowed size")
	ErrTooManyRows  = errors.New("file exceeds maximum allowed rows")

	// ErrInvalidRange rejects a check invocation whose date range is
	// inverted, incomplete, or wider than the configured maximum.
	ErrInvalidRange = errors.New("invalid date range")
)

// ValidationError describes a row-level import failure. It is recorded as a
// row error on the batch and never aborts the import.
type ValidationError struct {
	Row     int
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("row %d: field %q: %s", e.Row, e.Field, e.Message)
}

// AsRowError converts the validation failure into its batch representation.
func (e *ValidationError) AsRowError() RowError {
	return RowError{Row: e.Row, Field: e.Field, Error: e.Message}
}

// ConsistencyError signals an invariant violation: a finalized batch whose
// counters do not add up, or a stored check run whose summary and issues
// disagree. It is fatal, logged, and never silently corrected.
type ConsistencyError struct {
	Message string
}

func (e *ConsistencyError) Error() string {
	return "consistency violation: " + e.Message
}

// CalendarSyncError wraps a failure to reach the external holiday provider.
// Existing calendar data is left untouched when it occurs.
type CalendarSyncError struct {
	Year int
	Err  error
}

func (e *CalendarSyncError) Error() string {
	return fmt.Sprintf("holiday sync for year %d failed: %v", e.Year, e.Err)
}

func (e *CalendarSyncError) Unwrap() error {
	return e.Err
}
