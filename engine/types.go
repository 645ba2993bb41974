/*
Package engine implements the license balance and period-accounting core.

PURPOSE:
  This package contains the storage-free types and algorithms that track,
  for each employee and each license type, how much entitlement exists, how
  much has been consumed, how entitlement renews on annual/monthly cycles,
  how unused annual entitlement carries into a grace window, and how
  backdated consumption is attributed to the correct historical period.

KEY CONCEPTS IN THIS FILE (types.go):
  - Quantity: a decimal amount in the unit dictated by a license category
  - Category: which sub-ledger applies (hours, days, occasions)
  - PeriodControl: the renewal cadence (annual, monthly, quarterly, none)
  - EmployeeID / LicenseCode: type-safe identifiers

DESIGN PRINCIPLES:
  1. Purity: period and balance math take an explicit reference date;
     nothing in this package reads the wall clock on its own
  2. Precision: decimal.Decimal for quantities (hours may be fractional)
  3. Reject-before-mutate: every ledger operation validates fully before
     touching the record, so readers never observe a partial commit

SEE ALSO:
  - period.go: accounting period calculation and the carry-over grace window
  - balance.go: pure balance calculation (carry-over, expiry)
  - availability.go: the per-employee ledger record and its mutations
*/
package engine

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// QUANTITY - Decimal amount in the unit of the license category
// =============================================================================

type Quantity struct {
	Value decimal.Decimal
}

func NewQuantity(value float64) Quantity {
	return Quantity{Value: decimal.NewFromFloat(value)}
}

func NewQuantityFromInt(value int) Quantity {
	return Quantity{Value: decimal.NewFromInt(int64(value))}
}

func ZeroQuantity() Quantity { return Quantity{Value: decimal.Zero} }

func (q Quantity) Add(o Quantity) Quantity      { return Quantity{Value: q.Value.Add(o.Value)} }
func (q Quantity) Sub(o Quantity) Quantity      { return Quantity{Value: q.Value.Sub(o.Value)} }
func (q Quantity) Neg() Quantity                { return Quantity{Value: q.Value.Neg()} }
func (q Quantity) IsZero() bool                 { return q.Value.IsZero() }
func (q Quantity) IsNegative() bool             { return q.Value.IsNegative() }
func (q Quantity) IsPositive() bool             { return q.Value.IsPositive() }
func (q Quantity) Equal(o Quantity) bool        { return q.Value.Equal(o.Value) }
func (q Quantity) GreaterThan(o Quantity) bool  { return q.Value.GreaterThan(o.Value) }
func (q Quantity) LessThan(o Quantity) bool     { return q.Value.LessThan(o.Value) }
func (q Quantity) String() string               { return q.Value.String() }

func (q Quantity) Min(o Quantity) Quantity {
	if q.LessThan(o) {
		return q
	}
	return o
}

func (q Quantity) Max(o Quantity) Quantity {
	if q.GreaterThan(o) {
		return q
	}
	return o
}

// MarshalJSON renders the quantity as a bare decimal string ("7.5"),
// matching how decimal.Decimal itself serializes.
func (q Quantity) MarshalJSON() ([]byte, error) {
	return q.Value.MarshalJSON()
}

func (q *Quantity) UnmarshalJSON(data []byte) error {
	return q.Value.UnmarshalJSON(data)
}

// ClampFloor returns the quantity, floored at zero.
func (q Quantity) ClampFloor() Quantity {
	if q.IsNegative() {
		return ZeroQuantity()
	}
	return q
}

// ParseQuantity parses a decimal string; invalid input yields zero.
// Used when rehydrating persisted records.
func ParseQuantity(s string) Quantity {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return ZeroQuantity()
	}
	return Quantity{Value: d}
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type LicenseCode string
type RequestID string

// =============================================================================
// CATEGORY - Which sub-ledger of the availability record applies
// =============================================================================

// Category determines the unit of account and which ledger an entry lives in.
// HOURS and DAYS entries carry assigned/used/available balances;
// OCCASIONS entries carry event counters, never annual day balances.
type Category string

const (
	CategoryHours     Category = "hours"
	CategoryDays      Category = "days"
	CategoryOccasions Category = "occasions"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryHours, CategoryDays, CategoryOccasions:
		return true
	}
	return false
}

// =============================================================================
// PERIOD CONTROL - Renewal cadence of a license type
// =============================================================================

type PeriodControl string

const (
	PeriodAnnual    PeriodControl = "annual"
	PeriodMonthly   PeriodControl = "monthly"
	PeriodQuarterly PeriodControl = "quarterly"
	PeriodNone      PeriodControl = "none"
)

func (p PeriodControl) Valid() bool {
	switch p {
	case PeriodAnnual, PeriodMonthly, PeriodQuarterly, PeriodNone:
		return true
	}
	return false
}

// =============================================================================
// GENDER - Eligibility filter applied at initialization time
// =============================================================================

type Gender string

const (
	GenderFemale Gender = "F"
	GenderMale   Gender = "M"
)
