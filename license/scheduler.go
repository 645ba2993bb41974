/*
scheduler.go - Automated renewal scheduler

PURPOSE:
  Periodically scans employees whose availability records lag behind the
  wall clock and rolls them forward: annual renewal at the year boundary,
  monthly renewal at the month boundary.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Detects records where CurrentYear/CurrentMonth is behind the clock
  - Renewal is idempotent, so a crash between employees is harmless;
    the next pass picks up whoever was missed

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)
*/
package license

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/talenthub/license-engine/engine"
)

// RenewalScheduler handles automated period rollovers.
type RenewalScheduler struct {
	Store         EmployeeStore
	Manager       *AvailabilityManager
	Clock         engine.Clock
	CheckInterval time.Duration
	Enabled       bool

	logger zerolog.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewRenewalScheduler(store EmployeeStore, manager *AvailabilityManager, clock engine.Clock, logger zerolog.Logger) *RenewalScheduler {
	return &RenewalScheduler{
		Store:         store,
		Manager:       manager,
		Clock:         clock,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		logger:        logger.With().Str("component", "renewal_scheduler").Logger(),
		stop:          make(chan struct{}),
	}
}

// Start begins the scheduler.
func (rs *RenewalScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.logger.Info().Msg("scheduler disabled, not starting")
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.wg.Add(1)

	go rs.run()

	rs.logger.Info().Dur("check_interval", rs.CheckInterval).Msg("scheduler started")
}

// Stop stops the scheduler.
func (rs *RenewalScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		rs.logger.Info().Msg("scheduler stopped")
	}
}

func (rs *RenewalScheduler) run() {
	defer rs.wg.Done()

	// Run immediately on start
	rs.checkAndRenew()

	for {
		select {
		case <-rs.ticker.C:
			rs.checkAndRenew()
		case <-rs.stop:
			return
		}
	}
}

func (rs *RenewalScheduler) checkAndRenew() {
	ctx := context.Background()
	now := rs.Clock.Now()

	employees, err := rs.Store.ListEmployees(ctx)
	if err != nil {
		rs.logger.Error().Err(err).Msg("listing employees failed")
		return
	}

	annual := 0
	monthly := 0
	for _, emp := range employees {
		rec := emp.Availability
		if rec == nil {
			continue
		}
		if rec.CurrentYear < now.Year() {
			if err := rs.Manager.RenewAnnual(ctx, emp.ID); err != nil {
				rs.logger.Error().Err(err).Str("employee_id", string(emp.ID)).Msg("annual renewal failed")
				continue
			}
			annual++
		}
		if rec.CurrentYear < now.Year() || rec.CurrentMonth != now.Month() {
			if err := rs.Manager.RenewMonthly(ctx, emp.ID); err != nil {
				rs.logger.Error().Err(err).Str("employee_id", string(emp.ID)).Msg("monthly renewal failed")
				continue
			}
			monthly++
		}
	}

	if annual > 0 || monthly > 0 {
		rs.logger.Info().
			Int("annual", annual).
			Int("monthly", monthly).
			Msg("renewal pass completed")
	}
}

// RunNow triggers an immediate check (for testing/admin).
func (rs *RenewalScheduler) RunNow() {
	rs.checkAndRenew()
}
