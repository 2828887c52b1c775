/*
errors.go - Centralized error types for the attendance and leave engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Data-quality anomalies - NOT errors. They become notes on records.
  2. Configuration gaps - ErrRuleNotFound; the batch skips the employee.
  3. Hard failures - store and file errors; propagated to the caller.

USAGE:
  Domain packages wrap generic errors:

    if errors.Is(err, generic.ErrConcurrentModification) {
        return fmt.Errorf("saving balance %s: %w", id, err)
    }

SEE ALSO:
  - store.go: AuditLog for configuration-gap diagnostics
  - store/sqlite/sqlite.go: Maps SQL failures onto these sentinels
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrConcurrentModification is returned when optimistic locking detects a conflict.
	// Callers surface it; nothing in the engine retries.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrEntityNotFound is returned when a referenced record doesn't exist.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrRuleNotFound is returned when a subsidiary has no leave rule for a year.
	ErrRuleNotFound = errors.New("leave rule not found")

	// ErrDuplicateRecord is returned when a unique key (employee+year,
	// employee+date) already exists.
	ErrDuplicateRecord = errors.New("duplicate record")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrInvalidFileRef is returned when a file identifier cannot be resolved
	// safely (empty, absolute, escaping the root).
	ErrInvalidFileRef = errors.New("invalid file reference")

	// ErrMissingColumn is returned when a punch export lacks a required header.
	ErrMissingColumn = errors.New("missing column in punch export")

	// ErrValidation is returned when an input document fails validation.
	ErrValidation = errors.New("validation failed")

	// ErrUnknownLeaveType is returned when a leave type reference has no
	// canonical kind.
	ErrUnknownLeaveType = errors.New("unknown leave type")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// StaleVersionError provides details about an optimistic locking conflict.
type StaleVersionError struct {
	Record  string
	ID      string
	Version int
}

func (e *StaleVersionError) Error() string {
	return fmt.Sprintf("%s %s: version %d is stale", e.Record, e.ID, e.Version)
}

func (e *StaleVersionError) Unwrap() error {
	return ErrConcurrentModification
}

// MissingRuleError identifies the subsidiary and year with no leave rule.
type MissingRuleError struct {
	Subsidiary string
	Year       int
}

func (e *MissingRuleError) Error() string {
	return fmt.Sprintf("no leave rule for subsidiary %q in %d", e.Subsidiary, e.Year)
}

func (e *MissingRuleError) Unwrap() error {
	return ErrRuleNotFound
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed after reloading the record.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidFileRef) ||
		errors.Is(err, ErrMissingColumn) ||
		errors.Is(err, ErrUnknownLeaveType)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEntityNotFound) ||
		errors.Is(err, ErrRuleNotFound)
}

// IsConflict returns true if the error indicates a write conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConcurrentModification) ||
		errors.Is(err, ErrDuplicateRecord)
}
