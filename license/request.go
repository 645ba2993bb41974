/*
Package license orchestrates the license request lifecycle.

PURPOSE:
  This package owns everything above the pure accounting engine: the
  request model, the availability manager that serializes ledger
  mutations per employee, the lifecycle service that keeps requests and
  ledger effects paired, and the renewal scheduler.

OWNERSHIP:
  The request is the source of a debit; the availability record is the
  incrementally-maintained net effect of all live requests. Every edit
  therefore reverses the original debit before applying the new one -
  skipping that discipline makes the two drift apart.

KEY COMPONENTS:
  Request:             The leave event with status and attribution date
  AvailabilityManager: Per-employee serialized ledger mutation (manager.go)
  Service:             create/edit/delete/cancel/complete (service.go)
  RenewalScheduler:    Period rollover as a background job (scheduler.go)
*/
package license

import (
	"time"

	"github.com/talenthub/license-engine/engine"
)

// =============================================================================
// REQUEST - One leave event
// =============================================================================

type Status string

const (
	// StatusActive is the only status from which edit, delete, cancel and
	// complete are permitted.
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// Request is a single license consumption event. Quantity is interpreted
// in the unit dictated by the license type's category (hours, days, or
// event count). StartDate locates the accounting bucket the debit is
// attributed to - which may be a past period.
type Request struct {
	ID         engine.RequestID   `json:"id"`
	EmployeeID engine.EmployeeID  `json:"employee_id"`
	Code       engine.LicenseCode `json:"license_code"`
	StartDate  time.Time          `json:"start_date"`
	EndDate    time.Time          `json:"end_date"`
	Quantity   engine.Quantity    `json:"quantity"`
	Reason     string             `json:"reason"`
	Status     Status             `json:"status"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

// Validate checks the request's range and quantity against the license
// type's per-request cap. All failures map to ErrInvalidRange.
func (r *Request) Validate(lt engine.LicenseType) error {
	if r.EndDate.Before(r.StartDate) {
		return &engine.InvalidRangeError{Reason: "end date before start date"}
	}
	if !r.Quantity.IsPositive() {
		return &engine.InvalidRangeError{Reason: "quantity must be positive"}
	}
	if !lt.WithinRequestCap(r.Quantity) {
		return &engine.InvalidRangeError{Reason: "quantity exceeds per-request cap for " + string(lt.Code)}
	}
	return nil
}

// =============================================================================
// EMPLOYEE - The ledger owner
// =============================================================================

// Employee carries the embedded availability record; ledger mutations are
// persisted as part of the employee document.
type Employee struct {
	ID           engine.EmployeeID          `json:"id"`
	Name         string                     `json:"name"`
	Email        string                     `json:"email"`
	Gender       engine.Gender              `json:"gender"`
	HireDate     time.Time                  `json:"hire_date"`
	Availability *engine.AvailabilityRecord `json:"availability,omitempty"`
	CreatedAt    time.Time                  `json:"created_at"`
}

// =============================================================================
// MOVEMENT - Append-only audit of ledger effects
// =============================================================================

type MovementType string

const (
	MovementDebit        MovementType = "debit"
	MovementCredit       MovementType = "credit"
	MovementRenewAnnual  MovementType = "renew_annual"
	MovementRenewMonthly MovementType = "renew_monthly"
)

// Movement records one committed ledger effect. Movements are written in
// the same store transaction as the availability update, so the audit
// trail can always explain how a record reached its current state.
type Movement struct {
	ID         string             `json:"id"`
	EmployeeID engine.EmployeeID  `json:"employee_id"`
	Code       engine.LicenseCode `json:"license_code,omitempty"`
	Type       MovementType       `json:"type"`
	Quantity   engine.Quantity    `json:"quantity"`
	EventDate  time.Time          `json:"event_date"`
	RequestID  engine.RequestID   `json:"request_id,omitempty"`
	Reason     string             `json:"reason,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
}
