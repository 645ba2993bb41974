/*
balance.go - Pure balance calculation with carry-over

PURPOSE:
  Combines a license type's entitlement ceiling with current- and
  previous-period consumption into a Balance value: available, used,
  carried-over, expiry. This is the single calculation that answers
  "how much can this employee still take?".

CARRY-OVER RULES:
  Only ANNUAL licenses carry unused balance forward, and only while the
  previous period is inside its grace window (3 calendar months past the
  period end). The transfer is capped at a fixed amount - carrying 7
  unused days forward still yields 5.

EXAMPLE:
  Ceiling 15 days, 5 used this year, 3 unused last year, window open:
    Available = 15 - 5 + 3 = 13, CarriedOver = 3
  Same but 8 unused last year:
    CarriedOver = 5 (capped), Available = 15

This function is pure and callable without storage; the reference date is
an explicit argument.
*/
package engine

import "time"

// CarryOverCap is the maximum quantity transferable from the previous
// annual period, regardless of how much remained unused.
var CarryOverCap = NewQuantityFromInt(5)

// =============================================================================
// BALANCE - Computed entitlement state for one license entry
// =============================================================================

type Balance struct {
	// TotalAvailable is the entitlement ceiling granted per period.
	TotalAvailable Quantity

	// Used is consumption attributed to the current period.
	Used Quantity

	// Available is what can still be consumed in the current period,
	// including any live carry-over. Never negative.
	Available Quantity

	// CarriedOver is the previous period's unused balance transferred in,
	// after the cap. Zero once expired.
	CarriedOver Quantity

	// ExpiresAt is when the carried-over balance dies. Zero when there is
	// no carry-over.
	ExpiresAt time.Time

	// IsExpired reports whether the carry-over window has already closed
	// as of the reference date.
	IsExpired bool
}

// CalculateLicenseBalance computes the balance for one license entry.
//
//   control       the license type's renewal cadence
//   totalAvailable the per-period entitlement ceiling
//   usedCurrent   consumption attributed to the current period
//   usedPrevious  consumption attributed to the previous period
//   ref           the reference date ("now" from the injected clock)
func CalculateLicenseBalance(
	control PeriodControl,
	totalAvailable Quantity,
	usedCurrent Quantity,
	usedPrevious Quantity,
	ref time.Time,
) Balance {
	b := Balance{
		TotalAvailable: totalAvailable,
		Used:           usedCurrent,
	}

	// Only annual licenses carry over.
	if control == PeriodAnnual {
		previousRemaining := totalAvailable.Sub(usedPrevious).ClampFloor()
		if previousRemaining.IsPositive() {
			prevEnd := PreviousPeriod(control, ref).End
			expiresAt := AddCalendarMonths(prevEnd, GraceMonths)
			b.ExpiresAt = expiresAt
			b.IsExpired = DateOf(ref).After(expiresAt)
			if PreviousPeriodStillValid(control, prevEnd, ref) {
				b.CarriedOver = previousRemaining.Min(CarryOverCap)
			}
		}
	}

	b.Available = totalAvailable.Sub(usedCurrent).Add(b.CarriedOver).ClampFloor()
	return b
}
