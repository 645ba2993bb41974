package license

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/talenthub/license-engine/catalog"
	"github.com/talenthub/license-engine/engine"
)

// =============================================================================
// AVAILABILITY MANAGER - Serialized ledger mutation per employee
// =============================================================================

// maxCASRetries bounds optimistic-concurrency retries before the
// conflict surfaces to the caller.
const maxCASRetries = 3

// AvailabilityManager is the only component allowed to mutate an
// employee's availability record. It serializes mutations per employee
// with a keyed mutex, applies them to a deep copy, and commits with a
// version compare-and-swap. Each committed mutation carries its
// movement rows into the same store transaction.
type AvailabilityManager struct {
	store   EmployeeStore
	catalog catalog.Reader
	clock   engine.Clock
	logger  zerolog.Logger

	mu    sync.Mutex
	locks map[engine.EmployeeID]*sync.Mutex
}

func NewAvailabilityManager(store EmployeeStore, cat catalog.Reader, clock engine.Clock, logger zerolog.Logger) *AvailabilityManager {
	return &AvailabilityManager{
		store:   store,
		catalog: cat,
		clock:   clock,
		logger:  logger.With().Str("component", "availability_manager").Logger(),
		locks:   make(map[engine.EmployeeID]*sync.Mutex),
	}
}

func (m *AvailabilityManager) lockFor(id engine.EmployeeID) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	return l
}

// mutate loads the employee, applies fn to a clone of the availability
// record, and commits with CAS. On a version conflict it reloads and
// retries up to maxCASRetries times. fn receives the catalog keyed by
// code and returns the movements describing its effect; returning
// (nil, nil) movements still commits the record. fn may signal a no-op
// by returning errSkipCommit.
func (m *AvailabilityManager) mutate(ctx context.Context, id engine.EmployeeID, fn func(rec *engine.AvailabilityRecord, types map[engine.LicenseCode]engine.LicenseType) ([]Movement, error)) error {
	l := m.lockFor(id)
	l.Lock()
	defer l.Unlock()

	types, err := m.catalog.ByCode(ctx)
	if err != nil {
		return err
	}

	for attempt := 0; attempt < maxCASRetries; attempt++ {
		emp, err := m.store.GetEmployee(ctx, id)
		if err != nil {
			return err
		}
		if emp.Availability == nil {
			return engine.ErrNotFound
		}

		rec := emp.Availability.Clone()
		movements, err := fn(rec, types)
		if errors.Is(err, errSkipCommit) {
			return nil
		}
		if err != nil {
			return err
		}
		rec.Version = emp.Availability.Version + 1

		err = m.store.UpdateAvailability(ctx, id, rec, emp.Availability.Version, movements)
		if err == nil {
			return nil
		}
		if !errors.Is(err, engine.ErrConcurrentModification) {
			return err
		}
		m.logger.Warn().
			Str("employee_id", string(id)).
			Int("attempt", attempt+1).
			Msg("availability version conflict, retrying")
	}
	return engine.ErrConcurrentModification
}

// errSkipCommit is returned by mutate callbacks that found nothing to do.
var errSkipCommit = errors.New("skip commit")

// Initialize builds the employee's availability record from the active
// catalog. Already-initialized entries are left untouched, so the call
// is safe to repeat when new license types are introduced.
func (m *AvailabilityManager) Initialize(ctx context.Context, id engine.EmployeeID) error {
	l := m.lockFor(id)
	l.Lock()
	defer l.Unlock()

	emp, err := m.store.GetEmployee(ctx, id)
	if err != nil {
		return err
	}
	types, err := m.catalog.ListActive(ctx)
	if err != nil {
		return err
	}

	now := m.clock.Now()
	var rec *engine.AvailabilityRecord
	var expected int64
	if emp.Availability == nil {
		rec = engine.NewAvailabilityRecord(id, now)
		expected = 0
	} else {
		rec = emp.Availability.Clone()
		expected = emp.Availability.Version
		rec.Version = expected + 1
	}
	rec.Initialize(types, emp.Gender)

	if err := m.store.UpdateAvailability(ctx, id, rec, expected, nil); err != nil {
		return err
	}
	m.logger.Info().
		Str("employee_id", string(id)).
		Int("license_types", len(types)).
		Msg("availability record initialized")
	return nil
}

// Leg is one ledger effect of a lifecycle transition. EventDate locates
// the accounting bucket the quantity is attributed to.
type Leg struct {
	Code      engine.LicenseCode
	Quantity  engine.Quantity
	EventDate time.Time
	RequestID engine.RequestID
	Reason    string
}

// Debit consumes quantity from the bucket the event date falls in.
func (m *AvailabilityManager) Debit(ctx context.Context, id engine.EmployeeID, leg Leg) error {
	return m.mutate(ctx, id, func(rec *engine.AvailabilityRecord, types map[engine.LicenseCode]engine.LicenseType) ([]Movement, error) {
		lt, ok := types[leg.Code]
		if !ok {
			return nil, engine.ErrNotFound
		}
		if err := rec.Debit(lt, leg.Quantity, leg.EventDate, m.clock.Now()); err != nil {
			return nil, err
		}
		return []Movement{m.movement(id, MovementDebit, leg)}, nil
	})
}

// Credit reverses a previous debit against the same bucket.
func (m *AvailabilityManager) Credit(ctx context.Context, id engine.EmployeeID, leg Leg) error {
	return m.mutate(ctx, id, func(rec *engine.AvailabilityRecord, types map[engine.LicenseCode]engine.LicenseType) ([]Movement, error) {
		lt, ok := types[leg.Code]
		if !ok {
			return nil, engine.ErrNotFound
		}
		if err := rec.Credit(lt, leg.Quantity, leg.EventDate, m.clock.Now()); err != nil {
			return nil, err
		}
		return []Movement{m.movement(id, MovementCredit, leg)}, nil
	})
}

// Transfer applies a credit leg and a debit leg to the same record
// revision, committing both or neither. This is how edits move a
// request's consumption without a window where the old debit is
// released and the new one not yet taken.
func (m *AvailabilityManager) Transfer(ctx context.Context, id engine.EmployeeID, credit, debit Leg) error {
	return m.mutate(ctx, id, func(rec *engine.AvailabilityRecord, types map[engine.LicenseCode]engine.LicenseType) ([]Movement, error) {
		creditType, ok := types[credit.Code]
		if !ok {
			return nil, engine.ErrNotFound
		}
		debitType, ok := types[debit.Code]
		if !ok {
			return nil, engine.ErrNotFound
		}
		now := m.clock.Now()
		if err := rec.Credit(creditType, credit.Quantity, credit.EventDate, now); err != nil {
			return nil, err
		}
		if err := rec.Debit(debitType, debit.Quantity, debit.EventDate, now); err != nil {
			return nil, err
		}
		return []Movement{
			m.movement(id, MovementCredit, credit),
			m.movement(id, MovementDebit, debit),
		}, nil
	})
}

// RenewAnnual rolls the record into the current year, snapshotting the
// closing year's usage into history. A record already in the current
// year is left untouched.
func (m *AvailabilityManager) RenewAnnual(ctx context.Context, id engine.EmployeeID) error {
	renewed := false
	err := m.mutate(ctx, id, func(rec *engine.AvailabilityRecord, types map[engine.LicenseCode]engine.LicenseType) ([]Movement, error) {
		now := m.clock.Now()
		if rec.CurrentYear >= now.Year() {
			return nil, errSkipCommit
		}
		rec.RenewAnnual(types, now)
		renewed = true
		return []Movement{{
			ID:         uuid.NewString(),
			EmployeeID: id,
			Type:       MovementRenewAnnual,
			Quantity:   engine.ZeroQuantity(),
			EventDate:  engine.DateOf(now),
			CreatedAt:  now,
		}}, nil
	})
	if err == nil && renewed {
		m.logger.Info().Str("employee_id", string(id)).Msg("annual renewal applied")
	}
	return err
}

// RenewMonthly rolls the record into the current month. A pending year
// rollover is applied first so the record never skips the annual
// snapshot.
func (m *AvailabilityManager) RenewMonthly(ctx context.Context, id engine.EmployeeID) error {
	renewed := false
	err := m.mutate(ctx, id, func(rec *engine.AvailabilityRecord, types map[engine.LicenseCode]engine.LicenseType) ([]Movement, error) {
		now := m.clock.Now()
		// An annual roll can leave CurrentYear/CurrentMonth looking
		// current while the monthly cycle still belongs to last year;
		// LastMonthlyRenewal is the authoritative monthly anchor.
		if rec.CurrentYear == now.Year() && rec.CurrentMonth == now.Month() &&
			rec.LastMonthlyRenewal.Year() == now.Year() {
			return nil, errSkipCommit
		}
		rec.RenewMonthly(types, now)
		renewed = true
		return []Movement{{
			ID:         uuid.NewString(),
			EmployeeID: id,
			Type:       MovementRenewMonthly,
			Quantity:   engine.ZeroQuantity(),
			EventDate:  engine.DateOf(now),
			CreatedAt:  now,
		}}, nil
	})
	if err == nil && renewed {
		m.logger.Info().Str("employee_id", string(id)).Msg("monthly renewal applied")
	}
	return err
}

func (m *AvailabilityManager) movement(id engine.EmployeeID, typ MovementType, leg Leg) Movement {
	return Movement{
		ID:         uuid.NewString(),
		EmployeeID: id,
		Code:       leg.Code,
		Type:       typ,
		Quantity:   leg.Quantity,
		EventDate:  engine.DateOf(leg.EventDate),
		RequestID:  leg.RequestID,
		Reason:     leg.Reason,
		CreatedAt:  m.clock.Now(),
	}
}
