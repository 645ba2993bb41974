package engine

import "time"

// =============================================================================
// CLOCK - Injected time source
// =============================================================================

// Clock supplies "now" to everything that needs it. Period boundaries and
// carry-over expiry are date arithmetic over Clock.Now(), which keeps them
// deterministic under test.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns the same instant. For tests and backfills.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time { return c.At }

// DateOf truncates an instant to a UTC calendar date.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
