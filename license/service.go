package license

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/talenthub/license-engine/catalog"
	"github.com/talenthub/license-engine/engine"
)

// =============================================================================
// SERVICE - Request lifecycle coordination
// =============================================================================

// Service pairs every request transition with its ledger effect:
// create debits, delete and cancel credit, edit credits the original
// figures and debits the new ones in one commit. When the request
// store fails after the ledger already moved, the service compensates
// by applying the inverse movement before returning the error.
type Service struct {
	store   Store
	catalog catalog.Reader
	manager *AvailabilityManager
	clock   engine.Clock
	logger  zerolog.Logger
}

func NewService(store Store, cat catalog.Reader, manager *AvailabilityManager, clock engine.Clock, logger zerolog.Logger) *Service {
	return &Service{
		store:   store,
		catalog: cat,
		manager: manager,
		clock:   clock,
		logger:  logger.With().Str("component", "license_service").Logger(),
	}
}

// -----------------------------------------------------------------------------
// Create
// -----------------------------------------------------------------------------

type CreateInput struct {
	EmployeeID engine.EmployeeID
	Code       engine.LicenseCode
	StartDate  time.Time
	EndDate    time.Time
	Quantity   engine.Quantity
	Reason     string
}

// Create validates the request, debits the bucket its start date falls
// in, and persists it as active. A rejected debit leaves no trace.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Request, error) {
	lt, err := s.catalog.Get(ctx, in.Code)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	req := &Request{
		ID:         engine.RequestID(uuid.NewString()),
		EmployeeID: in.EmployeeID,
		Code:       in.Code,
		StartDate:  engine.DateOf(in.StartDate),
		EndDate:    engine.DateOf(in.EndDate),
		Quantity:   in.Quantity,
		Reason:     in.Reason,
		Status:     StatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := req.Validate(lt); err != nil {
		return nil, err
	}

	debit := s.leg(req)
	if err := s.manager.Debit(ctx, req.EmployeeID, debit); err != nil {
		return nil, err
	}

	if err := s.store.CreateRequest(ctx, req); err != nil {
		s.compensate(ctx, req.EmployeeID, debit, MovementDebit)
		return nil, err
	}

	s.logger.Info().
		Str("request_id", string(req.ID)).
		Str("employee_id", string(req.EmployeeID)).
		Str("license_code", string(req.Code)).
		Str("quantity", req.Quantity.String()).
		Msg("request created")
	return req, nil
}

// -----------------------------------------------------------------------------
// Edit
// -----------------------------------------------------------------------------

type EditInput struct {
	StartDate *time.Time
	EndDate   *time.Time
	Quantity  *engine.Quantity
	Reason    *string
}

// Edit replaces an active request's figures. The ledger sees one commit
// containing the credit of the original leg and the debit of the new
// one, so availability never passes through an intermediate state where
// the original debit is released but the new one not yet taken.
func (s *Service) Edit(ctx context.Context, id engine.RequestID, in EditInput) (*Request, error) {
	req, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != StatusActive {
		return nil, &engine.RequestNotActiveError{Action: "edit", Status: string(req.Status)}
	}
	lt, err := s.catalog.Get(ctx, req.Code)
	if err != nil {
		return nil, err
	}

	original := *req
	updated := *req
	if in.StartDate != nil {
		updated.StartDate = engine.DateOf(*in.StartDate)
	}
	if in.EndDate != nil {
		updated.EndDate = engine.DateOf(*in.EndDate)
	}
	if in.Quantity != nil {
		updated.Quantity = *in.Quantity
	}
	if in.Reason != nil {
		updated.Reason = *in.Reason
	}
	updated.UpdatedAt = s.clock.Now()
	if err := updated.Validate(lt); err != nil {
		return nil, err
	}

	creditLeg := s.leg(&original)
	debitLeg := s.leg(&updated)
	if err := s.manager.Transfer(ctx, req.EmployeeID, creditLeg, debitLeg); err != nil {
		return nil, err
	}

	if err := s.store.UpdateRequest(ctx, &updated); err != nil {
		// Reverse: credit the new leg, restore the original debit.
		if rerr := s.manager.Transfer(ctx, req.EmployeeID, debitLeg, creditLeg); rerr != nil {
			s.logger.Error().Err(rerr).
				Str("request_id", string(id)).
				Msg("edit compensation failed, ledger and request store diverged")
		}
		return nil, err
	}

	s.logger.Info().
		Str("request_id", string(id)).
		Str("quantity", updated.Quantity.String()).
		Msg("request edited")
	return &updated, nil
}

// -----------------------------------------------------------------------------
// Delete / Cancel / Complete
// -----------------------------------------------------------------------------

// Delete credits the request's consumption back and removes the record.
// Only active requests can be deleted.
func (s *Service) Delete(ctx context.Context, id engine.RequestID) error {
	req, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return err
	}
	if req.Status != StatusActive {
		return &engine.RequestNotActiveError{Action: "delete", Status: string(req.Status)}
	}

	credit := s.leg(req)
	if err := s.manager.Credit(ctx, req.EmployeeID, credit); err != nil {
		return err
	}
	if err := s.store.DeleteRequest(ctx, id); err != nil {
		s.compensate(ctx, req.EmployeeID, credit, MovementCredit)
		return err
	}

	s.logger.Info().Str("request_id", string(id)).Msg("request deleted")
	return nil
}

// Cancel credits the consumption back but keeps the request as an
// audit record in cancelled state.
func (s *Service) Cancel(ctx context.Context, id engine.RequestID) (*Request, error) {
	req, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != StatusActive {
		return nil, &engine.RequestNotActiveError{Action: "cancel", Status: string(req.Status)}
	}

	credit := s.leg(req)
	if err := s.manager.Credit(ctx, req.EmployeeID, credit); err != nil {
		return nil, err
	}

	req.Status = StatusCancelled
	req.UpdatedAt = s.clock.Now()
	if err := s.store.UpdateRequest(ctx, req); err != nil {
		s.compensate(ctx, req.EmployeeID, credit, MovementCredit)
		return nil, err
	}

	s.logger.Info().Str("request_id", string(id)).Msg("request cancelled")
	return req, nil
}

// Complete marks an active request as taken. The debit stays; completed
// requests are frozen and no longer editable.
func (s *Service) Complete(ctx context.Context, id engine.RequestID) (*Request, error) {
	req, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != StatusActive {
		return nil, &engine.RequestNotActiveError{Action: "complete", Status: string(req.Status)}
	}

	req.Status = StatusCompleted
	req.UpdatedAt = s.clock.Now()
	if err := s.store.UpdateRequest(ctx, req); err != nil {
		return nil, err
	}

	s.logger.Info().Str("request_id", string(id)).Msg("request completed")
	return req, nil
}

// -----------------------------------------------------------------------------
// Read side
// -----------------------------------------------------------------------------

// EntryView is one license type's live availability for an employee.
type EntryView struct {
	Code           engine.LicenseCode   `json:"code"`
	Name           string               `json:"name"`
	Category       engine.Category      `json:"category"`
	Control        engine.PeriodControl `json:"period_control"`
	TotalAvailable engine.Quantity      `json:"total_available"`
	Used           engine.Quantity      `json:"used"`
	Available      engine.Quantity      `json:"available"`
	CarriedOver    engine.Quantity      `json:"carried_over"`
	ExpiresAt      *time.Time           `json:"carry_over_expires_at,omitempty"`
}

// AvailabilityView is the full availability report for one employee.
type AvailabilityView struct {
	EmployeeID   engine.EmployeeID `json:"employee_id"`
	AsOf         time.Time         `json:"as_of"`
	CurrentYear  int               `json:"current_year"`
	CurrentMonth time.Month        `json:"current_month"`
	Entries      []EntryView       `json:"entries"`
}

// Availability computes the live balance for every license type the
// employee holds an entry for, as of now.
func (s *Service) Availability(ctx context.Context, id engine.EmployeeID) (*AvailabilityView, error) {
	emp, err := s.store.GetEmployee(ctx, id)
	if err != nil {
		return nil, err
	}
	if emp.Availability == nil {
		return nil, engine.ErrNotFound
	}
	types, err := s.catalog.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	view := &AvailabilityView{
		EmployeeID:   id,
		AsOf:         now,
		CurrentYear:  emp.Availability.CurrentYear,
		CurrentMonth: emp.Availability.CurrentMonth,
	}
	for _, lt := range types {
		bal, err := emp.Availability.EntryBalance(lt, now)
		if err != nil {
			// No entry means the employee is not eligible for this type.
			continue
		}
		ev := EntryView{
			Code:           lt.Code,
			Name:           lt.Name,
			Category:       lt.Category,
			Control:        lt.Control,
			TotalAvailable: bal.TotalAvailable,
			Used:           bal.Used,
			Available:      bal.Available,
			CarriedOver:    bal.CarriedOver,
		}
		if !bal.CarriedOver.IsZero() && !bal.ExpiresAt.IsZero() {
			expires := bal.ExpiresAt
			ev.ExpiresAt = &expires
		}
		view.Entries = append(view.Entries, ev)
	}
	return view, nil
}

// Requests lists an employee's requests, newest first per store order.
func (s *Service) Requests(ctx context.Context, id engine.EmployeeID) ([]*Request, error) {
	return s.store.ListRequestsByEmployee(ctx, id)
}

// Movements returns the employee's audit trail.
func (s *Service) Movements(ctx context.Context, id engine.EmployeeID) ([]Movement, error) {
	return s.store.ListMovements(ctx, id)
}

// -----------------------------------------------------------------------------
// Internals
// -----------------------------------------------------------------------------

func (s *Service) leg(req *Request) Leg {
	return Leg{
		Code:      req.Code,
		Quantity:  req.Quantity,
		EventDate: req.StartDate,
		RequestID: req.ID,
		Reason:    req.Reason,
	}
}

// compensate reverses a ledger leg after a request-store failure. A
// failed compensation is logged at error level; the movement trail
// still records both sides of the attempt.
func (s *Service) compensate(ctx context.Context, id engine.EmployeeID, leg Leg, applied MovementType) {
	var err error
	if applied == MovementDebit {
		err = s.manager.Credit(ctx, id, leg)
	} else {
		err = s.manager.Debit(ctx, id, leg)
	}
	if err != nil {
		s.logger.Error().Err(err).
			Str("employee_id", string(id)).
			Str("request_id", string(leg.RequestID)).
			Msg("ledger compensation failed")
	}
}
