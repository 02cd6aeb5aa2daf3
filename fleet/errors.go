/*
errors.go - Centralized error types for the fleet domain

PURPOSE:
  All error types in one place for consistency and discoverability.
  Stores and the API wrap these with context; callers use errors.Is/As.

ERROR CATEGORIES:
  1. Validation errors - missing field, out-of-range value, password mismatch
  2. Lookup errors - user or entry not found
  3. Conflict errors - duplicate email, duplicate entry id

  Storage failures are not listed here: they come from the driver and are
  wrapped by the store implementations.

SEE ALSO:
  - api/handlers.go: maps these to HTTP status codes
*/
package fleet

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the root of every ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrPasswordMismatch is returned when a password and its confirmation differ.
	ErrPasswordMismatch = errors.New("passwords do not match")

	// ErrUserNotFound is returned when a referenced user doesn't exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrEntryNotFound is returned when a referenced entry doesn't exist.
	ErrEntryNotFound = errors.New("entry not found")

	// ErrDuplicateEmail is returned when another user already owns the email.
	ErrDuplicateEmail = errors.New("email already in use")

	// ErrDuplicateEntry is returned when an entry id is inserted twice.
	// Entries are immutable, so this is expected for re-imports.
	ErrDuplicateEntry = errors.New("duplicate entry id")

	// ErrUnknownCollection is returned for a collection name outside the known set.
	ErrUnknownCollection = errors.New("unknown collection")

	// ErrReadOnlyCollection is returned when writing a collection that can only be read.
	ErrReadOnlyCollection = errors.New("collection is read-only")

	// ErrInvalidRange is returned when a day range ends before it starts.
	ErrInvalidRange = errors.New("invalid range: end before start")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrPasswordMismatch) ||
		errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrUnknownCollection) ||
		errors.Is(err, ErrReadOnlyCollection)
}

// IsConflict returns true if the write collides with existing data.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateEmail) || errors.Is(err, ErrDuplicateEntry)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrEntryNotFound)
}
