package license_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talenthub/license-engine/catalog"
	"github.com/talenthub/license-engine/engine"
	"github.com/talenthub/license-engine/license"
	"github.com/talenthub/license-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func qty(v float64) engine.Quantity {
	return engine.NewQuantity(v)
}

type fixture struct {
	store   *memory.Store
	service *license.Service
	manager *license.AvailabilityManager
	clock   engine.FixedClock
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()

	store := memory.New()
	cat := catalog.NewStatic(catalog.Seed()...)
	clock := engine.FixedClock{At: now}
	logger := zerolog.Nop()

	manager := license.NewAvailabilityManager(store, cat, clock, logger)
	service := license.NewService(store, cat, manager, clock, logger)

	return &fixture{store: store, service: service, manager: manager, clock: clock}
}

func (f *fixture) addEmployee(t *testing.T, id engine.EmployeeID, gender engine.Gender) {
	t.Helper()
	ctx := context.Background()

	err := f.store.CreateEmployee(ctx, &license.Employee{
		ID:        id,
		Name:      "Test Employee",
		Gender:    gender,
		HireDate:  date(2020, time.March, 1),
		CreatedAt: f.clock.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, f.manager.Initialize(ctx, id))
}

func (f *fixture) vacationAvailable(t *testing.T, id engine.EmployeeID) engine.Quantity {
	t.Helper()
	view, err := f.service.Availability(context.Background(), id)
	require.NoError(t, err)
	for _, e := range view.Entries {
		if e.Code == "VAC" {
			return e.Available
		}
	}
	t.Fatal("no VAC entry")
	return engine.ZeroQuantity()
}

// =============================================================================
// LIFECYCLE TESTS
// =============================================================================

func TestService_Create_DebitsAndPersists(t *testing.T) {
	// GIVEN: An initialized employee with 15 vacation days
	// WHEN: Creating a 3-day request
	// THEN: The request is active and availability drops to 12

	now := date(2025, time.June, 2)
	f := newFixture(t, now)
	f.addEmployee(t, "emp-1", engine.GenderFemale)
	ctx := context.Background()

	req, err := f.service.Create(ctx, license.CreateInput{
		EmployeeID: "emp-1",
		Code:       "VAC",
		StartDate:  date(2025, time.June, 10),
		EndDate:    date(2025, time.June, 12),
		Quantity:   qty(3),
	})
	require.NoError(t, err)
	assert.Equal(t, license.StatusActive, req.Status)
	assert.NotEmpty(t, req.ID)

	assert.True(t, f.vacationAvailable(t, "emp-1").Equal(qty(12)))
}

func TestService_Create_InsufficientBalance_NoTrace(t *testing.T) {
	// GIVEN: An employee with 15 vacation days
	// WHEN: Requesting 16
	// THEN: Rejected, and neither a request nor a ledger effect exists

	now := date(2025, time.June, 2)
	f := newFixture(t, now)
	f.addEmployee(t, "emp-1", engine.GenderFemale)
	ctx := context.Background()

	_, err := f.service.Create(ctx, license.CreateInput{
		EmployeeID: "emp-1",
		Code:       "VAC",
		StartDate:  now,
		EndDate:    now,
		Quantity:   qty(16),
	})
	require.ErrorIs(t, err, engine.ErrInsufficientBalance)

	requests, err := f.service.Requests(ctx, "emp-1")
	require.NoError(t, err)
	assert.Empty(t, requests)

	movements, err := f.service.Movements(ctx, "emp-1")
	require.NoError(t, err)
	assert.Empty(t, movements)
	assert.True(t, f.vacationAvailable(t, "emp-1").Equal(qty(15)))
}

func TestService_Create_InvalidRange(t *testing.T) {
	now := date(2025, time.June, 2)
	f := newFixture(t, now)
	f.addEmployee(t, "emp-1", engine.GenderFemale)
	ctx := context.Background()

	// End before start.
	_, err := f.service.Create(ctx, license.CreateInput{
		EmployeeID: "emp-1",
		Code:       "VAC",
		StartDate:  date(2025, time.June, 12),
		EndDate:    date(2025, time.June, 10),
		Quantity:   qty(1),
	})
	require.ErrorIs(t, err, engine.ErrInvalidRange)

	// Over the per-request cap (SICK caps at 3 per request).
	_, err = f.service.Create(ctx, license.CreateInput{
		EmployeeID: "emp-1",
		Code:       "SICK",
		StartDate:  now,
		EndDate:    now,
		Quantity:   qty(4),
	})
	require.ErrorIs(t, err, engine.ErrInvalidRange)
}

func TestService_Create_UnknownLicenseType(t *testing.T) {
	now := date(2025, time.June, 2)
	f := newFixture(t, now)
	f.addEmployee(t, "emp-1", engine.GenderFemale)

	_, err := f.service.Create(context.Background(), license.CreateInput{
		EmployeeID: "emp-1",
		Code:       "NOPE",
		StartDate:  now,
		EndDate:    now,
		Quantity:   qty(1),
	})
	require.ErrorIs(t, err, engine.ErrNotFound)
}

func TestService_Create_Backdated(t *testing.T) {
	// GIVEN: An employee whose record lives in 2025
	// WHEN: Creating a request dated November 2024
	// THEN: The debit lands in the 2024 bucket; this year's balance is intact

	now := date(2025, time.June, 2)
	f := newFixture(t, now)
	f.addEmployee(t, "emp-1", engine.GenderFemale)
	ctx := context.Background()

	_, err := f.service.Create(ctx, license.CreateInput{
		EmployeeID: "emp-1",
		Code:       "VAC",
		StartDate:  date(2024, time.November, 4),
		EndDate:    date(2024, time.November, 6),
		Quantity:   qty(3),
	})
	require.NoError(t, err)

	assert.True(t, f.vacationAvailable(t, "emp-1").Equal(qty(15)))

	emp, err := f.store.GetEmployee(ctx, "emp-1")
	require.NoError(t, err)
	bucket := emp.Availability.Days["VAC"].HistoryByYear["2024"]
	require.NotNil(t, bucket)
	assert.True(t, bucket.Used.Equal(qty(3)))
}

func TestService_Create_BackdatedOccasion_PriorYearRejected(t *testing.T) {
	// GIVEN: An employee whose record lives in 2025
	// WHEN: Creating a year-scoped occasion request dated 2024
	// THEN: Rejected, and no request is left without a ledger effect

	now := date(2025, time.June, 2)
	f := newFixture(t, now)
	f.addEmployee(t, "emp-1", engine.GenderFemale)
	ctx := context.Background()

	_, err := f.service.Create(ctx, license.CreateInput{
		EmployeeID: "emp-1",
		Code:       "BRV",
		StartDate:  date(2024, time.November, 4),
		EndDate:    date(2024, time.November, 6),
		Quantity:   qty(1),
	})
	require.ErrorIs(t, err, engine.ErrInvalidRange)

	requests, err := f.store.ListRequestsByEmployee(ctx, "emp-1")
	require.NoError(t, err)
	assert.Empty(t, requests)
}

func TestService_Edit_TransfersConsumption(t *testing.T) {
	// GIVEN: An active 3-day request
	// WHEN: Editing it to 5 days
	// THEN: Availability reflects exactly the new figure, not both

	now := date(2025, time.June, 2)
	f := newFixture(t, now)
	f.addEmployee(t, "emp-1", engine.GenderFemale)
	ctx := context.Background()

	req, err := f.service.Create(ctx, license.CreateInput{
		EmployeeID: "emp-1",
		Code:       "VAC",
		StartDate:  date(2025, time.June, 10),
		EndDate:    date(2025, time.June, 12),
		Quantity:   qty(3),
	})
	require.NoError(t, err)

	newQty := qty(5)
	edited, err := f.service.Edit(ctx, req.ID, license.EditInput{Quantity: &newQty})
	require.NoError(t, err)
	assert.True(t, edited.Quantity.Equal(qty(5)))

	assert.True(t, f.vacationAvailable(t, "emp-1").Equal(qty(10)))
}

func TestService_Edit_MoveAcrossPeriods(t *testing.T) {
	// GIVEN: An active request dated this year
	// WHEN: Editing its start date into last year
	// THEN: This year's balance is restored and the 2024 bucket is debited

	now := date(2025, time.June, 2)
	f := newFixture(t, now)
	f.addEmployee(t, "emp-1", engine.GenderFemale)
	ctx := context.Background()

	req, err := f.service.Create(ctx, license.CreateInput{
		EmployeeID: "emp-1",
		Code:       "VAC",
		StartDate:  date(2025, time.June, 10),
		EndDate:    date(2025, time.June, 12),
		Quantity:   qty(3),
	})
	require.NoError(t, err)

	newStart := date(2024, time.August, 5)
	newEnd := date(2024, time.August, 7)
	_, err = f.service.Edit(ctx, req.ID, license.EditInput{StartDate: &newStart, EndDate: &newEnd})
	require.NoError(t, err)

	assert.True(t, f.vacationAvailable(t, "emp-1").Equal(qty(15)))

	emp, err := f.store.GetEmployee(ctx, "emp-1")
	require.NoError(t, err)
	assert.True(t, emp.Availability.Days["VAC"].HistoryByYear["2024"].Used.Equal(qty(3)))
}

func TestService_Edit_RejectedEditLeavesLedgerUntouched(t *testing.T) {
	now := date(2025, time.June, 2)
	f := newFixture(t, now)
	f.addEmployee(t, "emp-1", engine.GenderFemale)
	ctx := context.Background()

	req, err := f.service.Create(ctx, license.CreateInput{
		EmployeeID: "emp-1",
		Code:       "VAC",
		StartDate:  date(2025, time.June, 10),
		EndDate:    date(2025, time.June, 12),
		Quantity:   qty(3),
	})
	require.NoError(t, err)

	tooMuch := qty(20)
	_, err = f.service.Edit(ctx, req.ID, license.EditInput{Quantity: &tooMuch})
	require.ErrorIs(t, err, engine.ErrInsufficientBalance)

	// Original request and its debit survive.
	assert.True(t, f.vacationAvailable(t, "emp-1").Equal(qty(12)))
	current, err := f.store.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.True(t, current.Quantity.Equal(qty(3)))
}

func TestService_Delete_CreditsAndRemoves(t *testing.T) {
	now := date(2025, time.June, 2)
	f := newFixture(t, now)
	f.addEmployee(t, "emp-1", engine.GenderFemale)
	ctx := context.Background()

	req, err := f.service.Create(ctx, license.CreateInput{
		EmployeeID: "emp-1",
		Code:       "VAC",
		StartDate:  date(2025, time.June, 10),
		EndDate:    date(2025, time.June, 12),
		Quantity:   qty(3),
	})
	require.NoError(t, err)

	require.NoError(t, f.service.Delete(ctx, req.ID))

	assert.True(t, f.vacationAvailable(t, "emp-1").Equal(qty(15)))
	_, err = f.store.GetRequest(ctx, req.ID)
	require.ErrorIs(t, err, engine.ErrNotFound)
}

func TestService_Cancel_CreditsButKeepsRecord(t *testing.T) {
	now := date(2025, time.June, 2)
	f := newFixture(t, now)
	f.addEmployee(t, "emp-1", engine.GenderFemale)
	ctx := context.Background()

	req, err := f.service.Create(ctx, license.CreateInput{
		EmployeeID: "emp-1",
		Code:       "VAC",
		StartDate:  date(2025, time.June, 10),
		EndDate:    date(2025, time.June, 12),
		Quantity:   qty(3),
	})
	require.NoError(t, err)

	cancelled, err := f.service.Cancel(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, license.StatusCancelled, cancelled.Status)

	assert.True(t, f.vacationAvailable(t, "emp-1").Equal(qty(15)))

	// A cancelled request is frozen.
	_, err = f.service.Cancel(ctx, req.ID)
	require.ErrorIs(t, err, engine.ErrRequestNotActive)
}

func TestService_Complete_FreezesRequest(t *testing.T) {
	// GIVEN: An active request
	// WHEN: Completing it
	// THEN: The debit stays and the request can no longer be edited

	now := date(2025, time.June, 2)
	f := newFixture(t, now)
	f.addEmployee(t, "emp-1", engine.GenderFemale)
	ctx := context.Background()

	req, err := f.service.Create(ctx, license.CreateInput{
		EmployeeID: "emp-1",
		Code:       "VAC",
		StartDate:  date(2025, time.June, 10),
		EndDate:    date(2025, time.June, 12),
		Quantity:   qty(3),
	})
	require.NoError(t, err)

	completed, err := f.service.Complete(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, license.StatusCompleted, completed.Status)
	assert.True(t, f.vacationAvailable(t, "emp-1").Equal(qty(12)))

	newQty := qty(1)
	_, err = f.service.Edit(ctx, req.ID, license.EditInput{Quantity: &newQty})
	require.ErrorIs(t, err, engine.ErrRequestNotActive)
	err = f.service.Delete(ctx, req.ID)
	require.ErrorIs(t, err, engine.ErrRequestNotActive)
}

func TestService_GenderRestrictedType(t *testing.T) {
	// PAT is restricted to male employees; a female employee has no entry.
	now := date(2025, time.June, 2)
	f := newFixture(t, now)
	f.addEmployee(t, "emp-1", engine.GenderFemale)

	_, err := f.service.Create(context.Background(), license.CreateInput{
		EmployeeID: "emp-1",
		Code:       "PAT",
		StartDate:  now,
		EndDate:    now,
		Quantity:   qty(5),
	})
	require.ErrorIs(t, err, engine.ErrIneligible)
}

// =============================================================================
// MOVEMENT PAIRING TESTS
// =============================================================================

func TestService_Movements_PairedWithLifecycle(t *testing.T) {
	// Every lifecycle transition leaves its movement: create = debit,
	// edit = credit + debit, cancel = credit.
	now := date(2025, time.June, 2)
	f := newFixture(t, now)
	f.addEmployee(t, "emp-1", engine.GenderFemale)
	ctx := context.Background()

	req, err := f.service.Create(ctx, license.CreateInput{
		EmployeeID: "emp-1",
		Code:       "VAC",
		StartDate:  date(2025, time.June, 10),
		EndDate:    date(2025, time.June, 12),
		Quantity:   qty(3),
	})
	require.NoError(t, err)

	newQty := qty(5)
	_, err = f.service.Edit(ctx, req.ID, license.EditInput{Quantity: &newQty})
	require.NoError(t, err)

	_, err = f.service.Cancel(ctx, req.ID)
	require.NoError(t, err)

	movements, err := f.service.Movements(ctx, "emp-1")
	require.NoError(t, err)
	require.Len(t, movements, 4)

	types := make([]license.MovementType, len(movements))
	for i, m := range movements {
		types[i] = m.Type
		assert.Equal(t, req.ID, m.RequestID)
	}
	assert.Equal(t, []license.MovementType{
		license.MovementDebit,
		license.MovementCredit,
		license.MovementDebit,
		license.MovementCredit,
	}, types)
}

// =============================================================================
// CONSERVATION INVARIANT
// =============================================================================

func TestService_LiveRequestsMatchLedgerUsage(t *testing.T) {
	// GIVEN: A mixed sequence of creates, edits, deletes and cancels
	//        across current and past periods
	// THEN: The summed quantity of active and completed VAC requests
	//       equals the used figures across all VAC buckets

	now := date(2025, time.June, 2)
	f := newFixture(t, now)
	f.addEmployee(t, "emp-1", engine.GenderFemale)
	ctx := context.Background()

	mk := func(start time.Time, q float64) *license.Request {
		req, err := f.service.Create(ctx, license.CreateInput{
			EmployeeID: "emp-1",
			Code:       "VAC",
			StartDate:  start,
			EndDate:    start,
			Quantity:   qty(q),
		})
		require.NoError(t, err)
		return req
	}

	r1 := mk(date(2025, time.June, 10), 2)
	r2 := mk(date(2025, time.July, 1), 3)
	r3 := mk(date(2024, time.November, 4), 4)
	r4 := mk(date(2025, time.August, 20), 1)

	require.NoError(t, f.service.Delete(ctx, r2.ID))
	_, err := f.service.Cancel(ctx, r4.ID)
	require.NoError(t, err)
	_, err = f.service.Complete(ctx, r1.ID)
	require.NoError(t, err)
	smaller := qty(2)
	_, err = f.service.Edit(ctx, r3.ID, license.EditInput{Quantity: &smaller})
	require.NoError(t, err)

	var liveTotal engine.Quantity
	requests, err := f.service.Requests(ctx, "emp-1")
	require.NoError(t, err)
	liveTotal = engine.ZeroQuantity()
	for _, r := range requests {
		if r.Status == license.StatusActive || r.Status == license.StatusCompleted {
			liveTotal = liveTotal.Add(r.Quantity)
		}
	}

	emp, err := f.store.GetEmployee(ctx, "emp-1")
	require.NoError(t, err)
	e := emp.Availability.Days["VAC"]
	ledgerTotal := e.UsedAnnual
	for _, bucket := range e.HistoryByYear {
		ledgerTotal = ledgerTotal.Add(bucket.Used)
	}

	assert.True(t, liveTotal.Equal(ledgerTotal), "live %s vs ledger %s", liveTotal, ledgerTotal)
}

// =============================================================================
// RENEWAL TESTS (through the manager)
// =============================================================================

func TestManager_RenewAnnual_Idempotent(t *testing.T) {
	now := date(2025, time.January, 3)
	f := newFixture(t, now)
	f.addEmployee(t, "emp-1", engine.GenderFemale)
	ctx := context.Background()

	// Already in 2025; nothing to roll.
	require.NoError(t, f.manager.RenewAnnual(ctx, "emp-1"))

	movements, err := f.service.Movements(ctx, "emp-1")
	require.NoError(t, err)
	assert.Empty(t, movements)
}

func TestManager_RenewMonthly_AfterSeparateAnnualRoll(t *testing.T) {
	// GIVEN: A record anchored to January 2024 with monthly hours used
	// WHEN: A year later the annual renewal runs, then the monthly one
	// THEN: The monthly cycle rolls too, filing January 2024 under its
	//       own year instead of being skipped

	ctx := context.Background()
	store := memory.New()
	cat := catalog.NewStatic(catalog.Seed()...)
	logger := zerolog.Nop()

	past := engine.FixedClock{At: date(2024, time.January, 10)}
	mgrPast := license.NewAvailabilityManager(store, cat, past, logger)
	require.NoError(t, store.CreateEmployee(ctx, &license.Employee{
		ID: "emp-1", Name: "Test", Gender: engine.GenderFemale,
		HireDate: date(2020, time.March, 1), CreatedAt: past.Now(),
	}))
	require.NoError(t, mgrPast.Initialize(ctx, "emp-1"))
	require.NoError(t, mgrPast.Debit(ctx, "emp-1", license.Leg{
		Code: "LG08", Quantity: qty(3), EventDate: date(2024, time.January, 10),
	}))

	mgr := license.NewAvailabilityManager(store, cat, engine.FixedClock{At: date(2025, time.January, 2)}, logger)
	require.NoError(t, mgr.RenewAnnual(ctx, "emp-1"))
	require.NoError(t, mgr.RenewMonthly(ctx, "emp-1"))

	emp, err := store.GetEmployee(ctx, "emp-1")
	require.NoError(t, err)
	e := emp.Availability.Hours["LG08"]
	require.Contains(t, e.HistoryByMonth, "2024-01")
	assert.True(t, e.HistoryByMonth["2024-01"].Used.Equal(qty(3)))
	assert.True(t, e.AvailableMonth.Equal(qty(8)))

	movements, err := store.ListMovements(ctx, "emp-1")
	require.NoError(t, err)
	var types []license.MovementType
	for _, m := range movements {
		types = append(types, m.Type)
	}
	assert.Contains(t, types, license.MovementRenewAnnual)
	assert.Contains(t, types, license.MovementRenewMonthly)
}

func TestManager_Initialize_PicksUpNewTypes(t *testing.T) {
	// GIVEN: An employee initialized against the seed catalog
	// WHEN: A new license type is added and Initialize re-runs
	// THEN: The new entry appears; existing usage is preserved

	now := date(2025, time.June, 2)
	store := memory.New()
	cat := catalog.NewStatic(catalog.Seed()...)
	clock := engine.FixedClock{At: now}
	manager := license.NewAvailabilityManager(store, cat, clock, zerolog.Nop())
	service := license.NewService(store, cat, manager, clock, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, store.CreateEmployee(ctx, &license.Employee{
		ID: "emp-1", Name: "Test", Gender: engine.GenderFemale,
		HireDate: date(2020, time.March, 1), CreatedAt: now,
	}))
	require.NoError(t, manager.Initialize(ctx, "emp-1"))

	_, err := service.Create(ctx, license.CreateInput{
		EmployeeID: "emp-1", Code: "VAC",
		StartDate: now, EndDate: now, Quantity: qty(3),
	})
	require.NoError(t, err)

	cat.Put(engine.LicenseType{
		Code: "STU", Name: "Study leave",
		Category: engine.CategoryDays, Control: engine.PeriodAnnual,
		QuantityCeiling: qty(6), Active: true,
	})
	require.NoError(t, manager.Initialize(ctx, "emp-1"))

	emp, err := store.GetEmployee(ctx, "emp-1")
	require.NoError(t, err)
	require.Contains(t, emp.Availability.Days, engine.LicenseCode("STU"))
	assert.True(t, emp.Availability.Days["STU"].AvailableAnnual.Equal(qty(6)))
	assert.True(t, emp.Availability.Days["VAC"].UsedAnnual.Equal(qty(3)))
}
