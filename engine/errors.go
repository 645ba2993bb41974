/*
errors.go - Centralized error taxonomy for the accounting engine

PURPOSE:
  All error kinds in one place for consistency and discoverability.
  Callers match with errors.Is; structured errors carry context and
  unwrap to their sentinel.

ERROR CATEGORIES:
  1. Lookup errors - employee, license type, or request missing
  2. Validation errors - rejected before any ledger mutation
  3. Store errors - optimistic-lock conflicts

PROPAGATION POLICY:
  Validation errors (insufficient balance, invalid range, expired
  carry-over, ineligible) are raised before the availability record is
  touched. Store-level failures abort the whole operation; the coordinator
  never leaves a request persisted without its ledger effect, or a ledger
  effect without its request.

SEE ALSO:
  - availability.go: raises the validation errors
  - license package: maps these to HTTP status codes
*/
package engine

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when an employee, license type, or request
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrIneligible is returned when a license type does not apply to an
	// employee (gender/eligibility filter) and therefore has no ledger entry.
	ErrIneligible = errors.New("license not applicable to employee")

	// ErrInsufficientBalance is returned when a debit exceeds the available
	// balance of the target bucket.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidRange is returned when a request's date range or quantity is
	// malformed (end before start, non-positive or over-cap quantity).
	ErrInvalidRange = errors.New("invalid request range")

	// ErrExpiredCarryOver is returned when a debit would consume carried-over
	// balance past its expiry.
	ErrExpiredCarryOver = errors.New("carried-over balance expired")

	// ErrConcurrentModification is returned when the availability record's
	// version check fails during a compare-and-swap update.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrAlreadyInitialized is returned by stores when an availability record
	// exists for an employee being initialized. Initialize treats it as a no-op.
	ErrAlreadyInitialized = errors.New("availability record already initialized")

	// ErrRequestNotActive is returned when a lifecycle action targets a
	// request that has already been cancelled or completed.
	ErrRequestNotActive = errors.New("request is not active")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientBalanceError reports a balance shortage on a specific bucket.
// Bucket is "current", a year ("2024"), or a year-month ("2024-03").
type InsufficientBalanceError struct {
	EmployeeID EmployeeID
	Code       LicenseCode
	Bucket     string
	Available  Quantity
	Requested  Quantity
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for %s (bucket %s): available %s, requested %s",
		e.Code, e.Bucket, e.Available, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// ExpiredCarryOverError reports consumption against expired carry-over.
type ExpiredCarryOverError struct {
	Code      LicenseCode
	ExpiredAt time.Time
	AsOf      time.Time
}

func (e *ExpiredCarryOverError) Error() string {
	return fmt.Sprintf("carry-over for %s expired %s (as of %s)",
		e.Code, e.ExpiredAt.Format("2006-01-02"), e.AsOf.Format("2006-01-02"))
}

func (e *ExpiredCarryOverError) Unwrap() error {
	return ErrExpiredCarryOver
}

// RequestNotActiveError reports a lifecycle action against a request in a
// terminal state.
type RequestNotActiveError struct {
	Action string
	Status string
}

func (e *RequestNotActiveError) Error() string {
	return fmt.Sprintf("cannot %s a %s request", e.Action, e.Status)
}

func (e *RequestNotActiveError) Unwrap() error {
	return ErrRequestNotActive
}

// InvalidRangeError reports a malformed request.
type InvalidRangeError struct {
	Reason string
}

func (e *InvalidRangeError) Error() string {
	return "invalid request: " + e.Reason
}

func (e *InvalidRangeError) Unwrap() error {
	return ErrInvalidRange
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the operation might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrExpiredCarryOver) ||
		errors.Is(err, ErrIneligible) ||
		errors.Is(err, ErrRequestNotActive)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
