/*
period.go - Accounting period calculation

PURPOSE:
  Pure, deterministic period math: which accounting period a date falls
  into for a given period control, the period immediately before it, and
  whether a previous annual period's unused balance is still inside its
  carry-over grace window.

KEY RULES:
  - ANNUAL periods are calendar years (Jan 1 - Dec 31).
  - MONTHLY periods are calendar months; QUARTERLY the 3-month block.
  - NONE is an unbounded sentinel range (registration-only licenses).
  - The grace window is exactly 3 calendar months after the previous
    period's end, not 90 days.
  - Month arithmetic clamps explicitly to the end of the target month;
    it never relies on date-library normalization.
*/
package engine

import (
	"fmt"
	"time"
)

// GraceMonths is the carry-over grace window for annual licenses:
// unused balance from the previous year may be spent until this many
// calendar months into the new year.
const GraceMonths = 3

// =============================================================================
// PERIOD - A closed accounting interval
// =============================================================================

// Period is the time boundary a balance is accounted against.
// Month is set for monthly periods, Quarter for quarterly ones.
type Period struct {
	Start   time.Time
	End     time.Time
	Year    int
	Month   time.Month
	Quarter int

	// Unbounded marks the sentinel range used for PeriodNone.
	Unbounded bool
}

// Contains reports whether t falls within [Start, End].
func (p Period) Contains(t time.Time) bool {
	if p.Unbounded {
		return true
	}
	d := DateOf(t)
	return !d.Before(p.Start) && !d.After(p.End)
}

func (p Period) String() string {
	if p.Unbounded {
		return "[unbounded]"
	}
	return "[" + p.Start.Format("2006-01-02") + ", " + p.End.Format("2006-01-02") + "]"
}

// =============================================================================
// PERIOD CALCULATOR
// =============================================================================

// CurrentPeriod returns the accounting period containing ref for the given
// period control.
func CurrentPeriod(control PeriodControl, ref time.Time) Period {
	ref = DateOf(ref)
	switch control {
	case PeriodAnnual:
		return Period{
			Start: time.Date(ref.Year(), time.January, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(ref.Year(), time.December, 31, 0, 0, 0, 0, time.UTC),
			Year:  ref.Year(),
		}

	case PeriodMonthly:
		return Period{
			Start: time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, time.UTC),
			End:   EndOfMonth(ref.Year(), ref.Month()),
			Year:  ref.Year(),
			Month: ref.Month(),
		}

	case PeriodQuarterly:
		q := (int(ref.Month()) - 1) / 3 // 0-based quarter
		start := time.Date(ref.Year(), time.Month(q*3+1), 1, 0, 0, 0, 0, time.UTC)
		return Period{
			Start:   start,
			End:     EndOfMonth(ref.Year(), time.Month(q*3+3)),
			Year:    ref.Year(),
			Quarter: q + 1,
		}

	default: // PeriodNone
		return Period{
			Start:     time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC),
			End:       time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC),
			Year:      ref.Year(),
			Unbounded: true,
		}
	}
}

// PreviousPeriod returns the period immediately preceding CurrentPeriod(ref),
// with correct year rollover (January's previous month is the prior year's
// December, Q1's previous quarter the prior year's Q4).
func PreviousPeriod(control PeriodControl, ref time.Time) Period {
	current := CurrentPeriod(control, ref)
	if current.Unbounded {
		return current
	}
	// The previous period is the one containing the day before this one starts.
	return CurrentPeriod(control, current.Start.AddDate(0, 0, -1))
}

// PreviousPeriodStillValid reports whether the previous period's unused
// balance is still within its grace window as of now. Only annual licenses
// have a grace window; monthly and quarterly balances die with their period,
// and uncontrolled licenses never expire.
func PreviousPeriodStillValid(control PeriodControl, previousPeriodEnd, now time.Time) bool {
	switch control {
	case PeriodAnnual:
		return !DateOf(now).After(AddCalendarMonths(previousPeriodEnd, GraceMonths))
	case PeriodMonthly, PeriodQuarterly:
		return false
	default: // PeriodNone
		return true
	}
}

// =============================================================================
// CALENDAR ARITHMETIC
// =============================================================================

// AddCalendarMonths adds n calendar months to t, clamping the day to the
// last day of the target month. time.AddDate would normalize Jan 31 + 1
// month into March; entitlement expiry must not slide like that.
func AddCalendarMonths(t time.Time, n int) time.Time {
	t = DateOf(t)
	months := int(t.Month()) - 1 + n
	year := t.Year() + months/12
	month := time.Month(months%12 + 1)
	if months < 0 && months%12 != 0 {
		year--
		month = time.Month(months%12 + 13)
	}
	day := t.Day()
	if last := EndOfMonth(year, month).Day(); day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// EndOfMonth returns the last day of the given month.
func EndOfMonth(year int, month time.Month) time.Time {
	return time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
}

// =============================================================================
// BUCKET KEYS - Historical usage map keys
// =============================================================================

// YearKey formats a date as the historical year bucket key, e.g. "2024".
func YearKey(t time.Time) string { return fmt.Sprintf("%04d", t.Year()) }

// MonthKey formats a date as the historical month bucket key, e.g. "2024-03".
func MonthKey(t time.Time) string { return fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month())) }
