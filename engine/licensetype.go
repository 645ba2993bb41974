/*
licensetype.go - License type definitions (reference data)

PURPOSE:
  A LicenseType describes one license code's accounting rules: which
  ledger it lives in (category), how it renews (period control), the
  per-period entitlement ceiling, an optional per-request cap, and an
  optional gender eligibility filter. The engine treats these as
  immutable reference data; the catalog package owns where they come
  from (seed data, JSON overrides).

INVARIANT:
  Category and PeriodControl jointly determine which ledger-entry fields
  are meaningful. An OCCASIONS type never has annual day balances, only
  event/request counters.
*/
package engine

// LicenseType is the accounting rule set for one license code.
type LicenseType struct {
	Code     LicenseCode   `json:"code"`
	Name     string        `json:"name"`
	Category Category      `json:"category"`
	Control  PeriodControl `json:"period_control"`

	// QuantityCeiling is the entitlement granted per period.
	// Zero means uncapped: the entry only registers usage.
	QuantityCeiling Quantity `json:"quantity_ceiling"`

	// MaxPerRequest caps a single request independently of the remaining
	// balance. Nil means no cap.
	MaxPerRequest *Quantity `json:"max_per_request,omitempty"`

	// GenderRestriction limits eligibility at initialization time.
	// Nil means the license applies to everyone.
	GenderRestriction *Gender `json:"gender_restriction,omitempty"`

	Active bool `json:"active"`
}

// Uncapped reports whether the type is registration-only (no ceiling).
func (lt LicenseType) Uncapped() bool {
	return lt.QuantityCeiling.IsZero()
}

// EligibleFor reports whether an employee of the given gender may hold
// a ledger entry for this type.
func (lt LicenseType) EligibleFor(g Gender) bool {
	return lt.GenderRestriction == nil || *lt.GenderRestriction == g
}

// WithinRequestCap reports whether a single request of qty respects the
// per-request cap.
func (lt LicenseType) WithinRequestCap(qty Quantity) bool {
	return lt.MaxPerRequest == nil || !qty.GreaterThan(*lt.MaxPerRequest)
}
