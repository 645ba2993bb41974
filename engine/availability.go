/*
availability.go - The per-employee availability record and its mutations

PURPOSE:
  One AvailabilityRecord per employee holds a ledger entry per eligible
  license code, partitioned by accounting category (hours, days,
  occasions). All entitlement state lives here: current-period balances,
  occasion counters, and historical usage buckets for closed periods.

RETROACTIVE ATTRIBUTION:
  A debit whose event date falls in a period before the current one must
  not touch the live balances. Instead it lands in a historical bucket
  keyed "YYYY" (annual) or "YYYY-MM" (monthly), seeded on first touch
  from the current catalog ceiling. This is what lets a backdated request
  consume last year's entitlement without corrupting this year's numbers.

MUTATION DISCIPLINE:
  Every operation validates fully before mutating; a rejected debit or
  credit leaves the record untouched. Callers that need atomic visibility
  operate on a Clone and swap it in (see license.AvailabilityManager).

CARRY-OVER:
  Stored balances keep available = max(0, assigned - used) per bucket.
  When a current-period debit spends carried-over balance, used may
  exceed assigned and the stored available floors at zero; the live
  Balance from CalculateLicenseBalance (which adds unexpired carry-over)
  is the authoritative availability.

SEE ALSO:
  - balance.go: the pure balance calculation used for debit validation
  - period.go: bucket keys and period membership
*/
package engine

import (
	"time"
)

// =============================================================================
// LEDGER ENTRIES
// =============================================================================

// PeriodUsage is a snapshot of one closed period's figures inside a
// historical bucket.
type PeriodUsage struct {
	Assigned  Quantity `json:"assigned"`
	Used      Quantity `json:"used"`
	Available Quantity `json:"available"`
}

// LedgerEntry tracks a HOURS or DAYS license. The annual fields are
// meaningful when Control is annual, the monthly fields when it is
// monthly; an entry never uses both sets.
type LedgerEntry struct {
	Code    LicenseCode   `json:"code"`
	Control PeriodControl `json:"period_control"`

	AssignedAnnual  Quantity `json:"assigned_annual"`
	UsedAnnual      Quantity `json:"used_annual"`
	AvailableAnnual Quantity `json:"available_annual"`

	AssignedMonthly Quantity `json:"assigned_monthly"`
	UsedMonth       Quantity `json:"used_current_month"`
	AvailableMonth  Quantity `json:"available_current_month"`

	// HistoryByYear / HistoryByMonth hold usage attributed to past, closed
	// periods, keyed "YYYY" / "YYYY-MM". Renewal snapshots the closing
	// period here; backdated debits create buckets lazily.
	HistoryByYear  map[string]*PeriodUsage `json:"historical_usage_by_year,omitempty"`
	HistoryByMonth map[string]*PeriodUsage `json:"historical_usage_by_month,omitempty"`
}

// OccasionEntry tracks an OCCASIONS license: event counters, never
// day balances. Month-gated occasion types additionally carry monthly
// counters and history, with the same shape as a ledger entry's.
type OccasionEntry struct {
	Code    LicenseCode   `json:"code"`
	Control PeriodControl `json:"period_control"`

	MaxPerRequest Quantity `json:"max_per_request"`

	TotalDaysThisYear     Quantity `json:"total_days_this_year"`
	TotalRequestsThisYear int      `json:"total_requests_this_year"`

	AssignedMonthly Quantity `json:"assigned_monthly"`
	UsedMonth       Quantity `json:"used_current_month"`
	AvailableMonth  Quantity `json:"available_current_month"`

	HistoryByMonth map[string]*PeriodUsage `json:"historical_usage_by_month,omitempty"`
}

// =============================================================================
// AVAILABILITY RECORD
// =============================================================================

// AvailabilityRecord is the mutable per-employee ledger. CurrentYear and
// CurrentMonth record which renewal cycle the live balances represent;
// Version supports optimistic concurrency at the store.
type AvailabilityRecord struct {
	EmployeeID   EmployeeID `json:"employee_id"`
	CurrentYear  int        `json:"current_year"`
	CurrentMonth time.Month `json:"current_month"`

	LastAnnualRenewal  time.Time `json:"last_annual_renewal"`
	LastMonthlyRenewal time.Time `json:"last_monthly_renewal"`

	Hours     map[LicenseCode]*LedgerEntry   `json:"hours_ledger"`
	Days      map[LicenseCode]*LedgerEntry   `json:"days_ledger"`
	Occasions map[LicenseCode]*OccasionEntry `json:"occasions_ledger"`

	Version int64 `json:"version"`
}

// NewAvailabilityRecord creates an empty record anchored to now's cycle.
func NewAvailabilityRecord(id EmployeeID, now time.Time) *AvailabilityRecord {
	return &AvailabilityRecord{
		EmployeeID:         id,
		CurrentYear:        now.Year(),
		CurrentMonth:       now.Month(),
		LastAnnualRenewal:  DateOf(now),
		LastMonthlyRenewal: DateOf(now),
		Hours:              make(map[LicenseCode]*LedgerEntry),
		Days:               make(map[LicenseCode]*LedgerEntry),
		Occasions:          make(map[LicenseCode]*OccasionEntry),
	}
}

// Initialize creates a ledger entry for every active license type the
// employee is eligible for. Idempotent: codes that already have an entry
// are left untouched, so re-running never clobbers recorded usage.
func (r *AvailabilityRecord) Initialize(types []LicenseType, gender Gender) {
	for _, lt := range types {
		if !lt.Active || !lt.EligibleFor(gender) {
			continue
		}
		switch lt.Category {
		case CategoryHours:
			if _, ok := r.Hours[lt.Code]; !ok {
				r.Hours[lt.Code] = newLedgerEntry(lt)
			}
		case CategoryDays:
			if _, ok := r.Days[lt.Code]; !ok {
				r.Days[lt.Code] = newLedgerEntry(lt)
			}
		case CategoryOccasions:
			if _, ok := r.Occasions[lt.Code]; !ok {
				r.Occasions[lt.Code] = newOccasionEntry(lt)
			}
		}
	}
}

func newLedgerEntry(lt LicenseType) *LedgerEntry {
	e := &LedgerEntry{Code: lt.Code, Control: lt.Control}
	switch lt.Control {
	case PeriodMonthly:
		e.AssignedMonthly = lt.QuantityCeiling
		e.AvailableMonth = lt.QuantityCeiling
	default:
		e.AssignedAnnual = lt.QuantityCeiling
		e.AvailableAnnual = lt.QuantityCeiling
	}
	return e
}

func newOccasionEntry(lt LicenseType) *OccasionEntry {
	e := &OccasionEntry{Code: lt.Code, Control: lt.Control}
	if lt.MaxPerRequest != nil {
		e.MaxPerRequest = *lt.MaxPerRequest
	}
	if lt.Control == PeriodMonthly {
		e.AssignedMonthly = lt.QuantityCeiling
		e.AvailableMonth = lt.QuantityCeiling
	}
	return e
}

// =============================================================================
// BALANCE VIEW
// =============================================================================

// EntryBalance computes the live balance for one license entry as of ref.
// For annual entries the previous period's usage is read from the matching
// historical bucket; a missing bucket means the previous period is unknown
// and contributes no carry-over.
func (r *AvailabilityRecord) EntryBalance(lt LicenseType, ref time.Time) (Balance, error) {
	switch lt.Category {
	case CategoryHours, CategoryDays:
		e := r.ledgerEntry(lt)
		if e == nil {
			return Balance{}, ErrIneligible
		}
		if lt.Control == PeriodMonthly {
			return CalculateLicenseBalance(PeriodMonthly, e.AssignedMonthly, e.UsedMonth, ZeroQuantity(), ref), nil
		}
		return CalculateLicenseBalance(lt.Control, e.AssignedAnnual, e.UsedAnnual, r.previousAnnualUsed(e, ref), ref), nil

	case CategoryOccasions:
		e := r.Occasions[lt.Code]
		if e == nil {
			return Balance{}, ErrIneligible
		}
		if lt.Control == PeriodMonthly {
			return CalculateLicenseBalance(PeriodMonthly, e.AssignedMonthly, e.UsedMonth, ZeroQuantity(), ref), nil
		}
		// Year-scoped occasions count requests against the ceiling.
		used := NewQuantityFromInt(e.TotalRequestsThisYear)
		return CalculateLicenseBalance(PeriodNone, lt.QuantityCeiling, used, ZeroQuantity(), ref), nil
	}
	return Balance{}, ErrIneligible
}

// previousAnnualUsed returns the previous period's consumption for an
// annual entry. Without a historical bucket the previous year is treated
// as fully used, which yields zero carry-over.
func (r *AvailabilityRecord) previousAnnualUsed(e *LedgerEntry, ref time.Time) Quantity {
	prev := PreviousPeriod(PeriodAnnual, ref)
	if u, ok := e.HistoryByYear[YearKey(prev.End)]; ok {
		return u.Used
	}
	return e.AssignedAnnual
}

func (r *AvailabilityRecord) ledgerEntry(lt LicenseType) *LedgerEntry {
	if lt.Category == CategoryHours {
		return r.Hours[lt.Code]
	}
	return r.Days[lt.Code]
}

// =============================================================================
// DEBIT
// =============================================================================

// Debit consumes quantity against the bucket containing eventDate.
// It validates fully before mutating: a returned error means the record
// is unchanged.
func (r *AvailabilityRecord) Debit(lt LicenseType, qty Quantity, eventDate, now time.Time) error {
	if !qty.IsPositive() {
		return &InvalidRangeError{Reason: "quantity must be positive"}
	}
	switch lt.Category {
	case CategoryHours, CategoryDays:
		return r.debitLedger(lt, qty, eventDate, now)
	case CategoryOccasions:
		return r.debitOccasion(lt, qty, eventDate, now)
	}
	return ErrIneligible
}

func (r *AvailabilityRecord) debitLedger(lt LicenseType, qty Quantity, eventDate, now time.Time) error {
	e := r.ledgerEntry(lt)
	if e == nil {
		return ErrIneligible
	}

	switch lt.Control {
	case PeriodMonthly:
		if r.isCurrentMonth(eventDate) {
			return r.debitCurrentMonthly(lt, &e.AssignedMonthly, &e.UsedMonth, &e.AvailableMonth, qty)
		}
		bucket := seedBucket(&e.HistoryByMonth, MonthKey(eventDate), lt.QuantityCeiling)
		return r.debitBucket(lt, bucket, MonthKey(eventDate), qty)

	default: // annual and uncontrolled types share the annual fields
		if lt.Control == PeriodAnnual && eventDate.Year() < r.CurrentYear {
			bucket := seedBucket(&e.HistoryByYear, YearKey(eventDate), lt.QuantityCeiling)
			return r.debitBucket(lt, bucket, YearKey(eventDate), qty)
		}
		return r.debitCurrentAnnual(lt, e, qty, now)
	}
}

// debitCurrentAnnual checks against the carry-over-aware balance, then
// records usage in the current-period fields.
func (r *AvailabilityRecord) debitCurrentAnnual(lt LicenseType, e *LedgerEntry, qty Quantity, now time.Time) error {
	if !lt.Uncapped() && lt.Control == PeriodAnnual {
		bal := CalculateLicenseBalance(PeriodAnnual, e.AssignedAnnual, e.UsedAnnual, r.previousAnnualUsed(e, now), now)
		if qty.GreaterThan(bal.Available) {
			// Distinguish a shortage caused purely by expired carry-over.
			if bal.IsExpired {
				prevRemaining := e.AssignedAnnual.Sub(r.previousAnnualUsed(e, now)).ClampFloor()
				withExpired := bal.Available.Add(prevRemaining.Min(CarryOverCap))
				if !qty.GreaterThan(withExpired) {
					return &ExpiredCarryOverError{Code: lt.Code, ExpiredAt: bal.ExpiresAt, AsOf: DateOf(now)}
				}
			}
			return &InsufficientBalanceError{
				EmployeeID: r.EmployeeID, Code: lt.Code, Bucket: "current",
				Available: bal.Available, Requested: qty,
			}
		}
	} else if !lt.Uncapped() {
		available := e.AssignedAnnual.Sub(e.UsedAnnual).ClampFloor()
		if qty.GreaterThan(available) {
			return &InsufficientBalanceError{
				EmployeeID: r.EmployeeID, Code: lt.Code, Bucket: "current",
				Available: available, Requested: qty,
			}
		}
	}
	e.UsedAnnual = e.UsedAnnual.Add(qty)
	e.AvailableAnnual = e.AssignedAnnual.Sub(e.UsedAnnual).ClampFloor()
	return nil
}

func (r *AvailabilityRecord) debitCurrentMonthly(lt LicenseType, assigned, used, available *Quantity, qty Quantity) error {
	if !lt.Uncapped() && qty.GreaterThan(*available) {
		return &InsufficientBalanceError{
			EmployeeID: r.EmployeeID, Code: lt.Code, Bucket: "current",
			Available: *available, Requested: qty,
		}
	}
	*used = used.Add(qty)
	*available = assigned.Sub(*used).ClampFloor()
	return nil
}

func (r *AvailabilityRecord) debitBucket(lt LicenseType, bucket *PeriodUsage, key string, qty Quantity) error {
	if !lt.Uncapped() && qty.GreaterThan(bucket.Available) {
		return &InsufficientBalanceError{
			EmployeeID: r.EmployeeID, Code: lt.Code, Bucket: key,
			Available: bucket.Available, Requested: qty,
		}
	}
	bucket.Used = bucket.Used.Add(qty)
	bucket.Available = bucket.Assigned.Sub(bucket.Used).ClampFloor()
	return nil
}

func (r *AvailabilityRecord) debitOccasion(lt LicenseType, qty Quantity, eventDate, now time.Time) error {
	e := r.Occasions[lt.Code]
	if e == nil {
		return ErrIneligible
	}
	if !e.MaxPerRequest.IsZero() && qty.GreaterThan(e.MaxPerRequest) {
		return &InvalidRangeError{Reason: "quantity exceeds per-request cap for " + string(lt.Code)}
	}

	if lt.Control == PeriodMonthly {
		if r.isCurrentMonth(eventDate) {
			if err := r.debitCurrentMonthly(lt, &e.AssignedMonthly, &e.UsedMonth, &e.AvailableMonth, qty); err != nil {
				return err
			}
		} else {
			bucket := seedBucket(&e.HistoryByMonth, MonthKey(eventDate), lt.QuantityCeiling)
			if err := r.debitBucket(lt, bucket, MonthKey(eventDate), qty); err != nil {
				return err
			}
		}
		// Year counters track only the current year's events.
		if eventDate.Year() == r.CurrentYear {
			e.TotalDaysThisYear = e.TotalDaysThisYear.Add(qty)
			e.TotalRequestsThisYear++
		}
		return nil
	}

	// Year-scoped occasions keep no historical counters, so an event
	// outside the current year has nowhere to land.
	if eventDate.Year() != r.CurrentYear {
		return &InvalidRangeError{Reason: "occasion date outside the current year for " + string(lt.Code)}
	}
	if !lt.Uncapped() && e.TotalRequestsThisYear+1 > intCeiling(lt.QuantityCeiling) {
		return &InsufficientBalanceError{
			EmployeeID: r.EmployeeID, Code: lt.Code, Bucket: "current",
			Available: ZeroQuantity(), Requested: qty,
		}
	}
	e.TotalDaysThisYear = e.TotalDaysThisYear.Add(qty)
	e.TotalRequestsThisYear++
	return nil
}

// =============================================================================
// CREDIT
// =============================================================================

// Credit is the exact inverse of Debit, applied to the same bucket the
// original debit used. eventDate must be the original request's start
// date so year/month attribution matches.
func (r *AvailabilityRecord) Credit(lt LicenseType, qty Quantity, eventDate, now time.Time) error {
	if !qty.IsPositive() {
		return &InvalidRangeError{Reason: "quantity must be positive"}
	}
	switch lt.Category {
	case CategoryHours, CategoryDays:
		return r.creditLedger(lt, qty, eventDate)
	case CategoryOccasions:
		return r.creditOccasion(lt, qty, eventDate)
	}
	return ErrIneligible
}

func (r *AvailabilityRecord) creditLedger(lt LicenseType, qty Quantity, eventDate time.Time) error {
	e := r.ledgerEntry(lt)
	if e == nil {
		return ErrIneligible
	}

	switch lt.Control {
	case PeriodMonthly:
		if r.isCurrentMonth(eventDate) {
			e.UsedMonth = e.UsedMonth.Sub(qty).ClampFloor()
			e.AvailableMonth = e.AssignedMonthly.Sub(e.UsedMonth).ClampFloor()
			return nil
		}
		bucket, ok := e.HistoryByMonth[MonthKey(eventDate)]
		if !ok {
			return ErrNotFound
		}
		creditBucket(bucket, qty)
		return nil

	default:
		if lt.Control == PeriodAnnual && eventDate.Year() < r.CurrentYear {
			bucket, ok := e.HistoryByYear[YearKey(eventDate)]
			if !ok {
				return ErrNotFound
			}
			creditBucket(bucket, qty)
			return nil
		}
		e.UsedAnnual = e.UsedAnnual.Sub(qty).ClampFloor()
		e.AvailableAnnual = e.AssignedAnnual.Sub(e.UsedAnnual).ClampFloor()
		return nil
	}
}

func (r *AvailabilityRecord) creditOccasion(lt LicenseType, qty Quantity, eventDate time.Time) error {
	e := r.Occasions[lt.Code]
	if e == nil {
		return ErrIneligible
	}

	if lt.Control == PeriodMonthly {
		if r.isCurrentMonth(eventDate) {
			e.UsedMonth = e.UsedMonth.Sub(qty).ClampFloor()
			e.AvailableMonth = e.AssignedMonthly.Sub(e.UsedMonth).ClampFloor()
		} else if bucket, ok := e.HistoryByMonth[MonthKey(eventDate)]; ok {
			creditBucket(bucket, qty)
		} else {
			return ErrNotFound
		}
	}

	if eventDate.Year() == r.CurrentYear {
		e.TotalDaysThisYear = e.TotalDaysThisYear.Sub(qty).ClampFloor()
		if e.TotalRequestsThisYear > 0 {
			e.TotalRequestsThisYear--
		}
	}
	return nil
}

func creditBucket(bucket *PeriodUsage, qty Quantity) {
	bucket.Used = bucket.Used.Sub(qty).ClampFloor()
	bucket.Available = bucket.Assigned.Sub(bucket.Used).ClampFloor()
}

// =============================================================================
// RENEWAL
// =============================================================================

// RenewAnnual closes the annual cycle: every annual entry snapshots its
// closing year into history, re-pulls its assignment from the current
// catalog ceiling, and resets usage. Occasion year counters restart.
// Historical buckets are never cleared; they are the audit trail.
func (r *AvailabilityRecord) RenewAnnual(types map[LicenseCode]LicenseType, now time.Time) {
	closing := YearKey(time.Date(r.CurrentYear, time.January, 1, 0, 0, 0, 0, time.UTC))

	for code, e := range r.Hours {
		if e.Control != PeriodMonthly {
			renewAnnualEntry(e, closing, ceilingFor(types, code, e.AssignedAnnual))
		}
	}
	for code, e := range r.Days {
		if e.Control != PeriodMonthly {
			renewAnnualEntry(e, closing, ceilingFor(types, code, e.AssignedAnnual))
		}
	}
	for _, e := range r.Occasions {
		e.TotalDaysThisYear = ZeroQuantity()
		e.TotalRequestsThisYear = 0
	}

	r.CurrentYear = now.Year()
	r.LastAnnualRenewal = DateOf(now)
}

func renewAnnualEntry(e *LedgerEntry, closingKey string, ceiling Quantity) {
	if e.HistoryByYear == nil {
		e.HistoryByYear = make(map[string]*PeriodUsage)
	}
	if _, ok := e.HistoryByYear[closingKey]; !ok {
		e.HistoryByYear[closingKey] = &PeriodUsage{
			Assigned:  e.AssignedAnnual,
			Used:      e.UsedAnnual,
			Available: e.AvailableAnnual,
		}
	}
	e.AssignedAnnual = ceiling
	e.UsedAnnual = ZeroQuantity()
	e.AvailableAnnual = ceiling
}

// RenewMonthly closes the monthly cycle for month-controlled entries.
// Crossing a year boundary implies the annual cycle is stale too, so it
// rolls that first.
func (r *AvailabilityRecord) RenewMonthly(types map[LicenseCode]LicenseType, now time.Time) {
	// The closing key is anchored before the annual roll advances
	// CurrentYear: December usage files under the closing year, not the
	// new one. The anchor year comes from the last monthly renewal so an
	// annual roll that already ran in a separate commit cannot shift it.
	anchorYear := r.CurrentYear
	if !r.LastMonthlyRenewal.IsZero() {
		anchorYear = r.LastMonthlyRenewal.Year()
	}
	closing := MonthKey(time.Date(anchorYear, r.CurrentMonth, 1, 0, 0, 0, 0, time.UTC))

	if now.Year() > r.CurrentYear {
		r.RenewAnnual(types, now)
	}

	for code, e := range r.Hours {
		if e.Control == PeriodMonthly {
			renewMonthlyEntry(&e.HistoryByMonth, closing, &e.AssignedMonthly, &e.UsedMonth, &e.AvailableMonth, ceilingFor(types, code, e.AssignedMonthly))
		}
	}
	for code, e := range r.Days {
		if e.Control == PeriodMonthly {
			renewMonthlyEntry(&e.HistoryByMonth, closing, &e.AssignedMonthly, &e.UsedMonth, &e.AvailableMonth, ceilingFor(types, code, e.AssignedMonthly))
		}
	}
	for code, e := range r.Occasions {
		if e.Control == PeriodMonthly {
			renewMonthlyEntry(&e.HistoryByMonth, closing, &e.AssignedMonthly, &e.UsedMonth, &e.AvailableMonth, ceilingFor(types, code, e.AssignedMonthly))
		}
	}

	r.CurrentMonth = now.Month()
	r.LastMonthlyRenewal = DateOf(now)
}

func renewMonthlyEntry(history *map[string]*PeriodUsage, closingKey string, assigned, used, available *Quantity, ceiling Quantity) {
	if *history == nil {
		*history = make(map[string]*PeriodUsage)
	}
	if _, ok := (*history)[closingKey]; !ok {
		(*history)[closingKey] = &PeriodUsage{Assigned: *assigned, Used: *used, Available: *available}
	}
	*assigned = ceiling
	*used = ZeroQuantity()
	*available = ceiling
}

// ceilingFor re-pulls the assignment from the catalog; a code no longer
// in the catalog keeps its last assignment.
func ceilingFor(types map[LicenseCode]LicenseType, code LicenseCode, fallback Quantity) Quantity {
	if lt, ok := types[code]; ok {
		return lt.QuantityCeiling
	}
	return fallback
}

// =============================================================================
// HELPERS
// =============================================================================

func (r *AvailabilityRecord) isCurrentMonth(eventDate time.Time) bool {
	return eventDate.Year() == r.CurrentYear && eventDate.Month() == r.CurrentMonth
}

func seedBucket(history *map[string]*PeriodUsage, key string, ceiling Quantity) *PeriodUsage {
	if *history == nil {
		*history = make(map[string]*PeriodUsage)
	}
	if bucket, ok := (*history)[key]; ok {
		return bucket
	}
	// Seeded from the current catalog ceiling; ceilings are treated as
	// always-current (see DESIGN.md).
	bucket := &PeriodUsage{Assigned: ceiling, Available: ceiling}
	(*history)[key] = bucket
	return bucket
}

func intCeiling(q Quantity) int {
	return int(q.Value.IntPart())
}

// Clone returns a deep copy. The manager mutates clones and swaps them in
// with a compare-and-swap so readers never see a partial commit.
func (r *AvailabilityRecord) Clone() *AvailabilityRecord {
	c := *r
	c.Hours = cloneLedger(r.Hours)
	c.Days = cloneLedger(r.Days)
	c.Occasions = make(map[LicenseCode]*OccasionEntry, len(r.Occasions))
	for code, e := range r.Occasions {
		ce := *e
		ce.HistoryByMonth = cloneHistory(e.HistoryByMonth)
		c.Occasions[code] = &ce
	}
	return &c
}

func cloneLedger(m map[LicenseCode]*LedgerEntry) map[LicenseCode]*LedgerEntry {
	out := make(map[LicenseCode]*LedgerEntry, len(m))
	for code, e := range m {
		ce := *e
		ce.HistoryByYear = cloneHistory(e.HistoryByYear)
		ce.HistoryByMonth = cloneHistory(e.HistoryByMonth)
		out[code] = &ce
	}
	return out
}

func cloneHistory(m map[string]*PeriodUsage) map[string]*PeriodUsage {
	if m == nil {
		return nil
	}
	out := make(map[string]*PeriodUsage, len(m))
	for k, v := range m {
		cv := *v
		out[k] = &cv
	}
	return out
}
