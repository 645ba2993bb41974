// Package memory provides an in-memory license.Store for testing/dev.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/talenthub/license-engine/engine"
	"github.com/talenthub/license-engine/license"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Store struct {
	mu        sync.RWMutex
	employees map[engine.EmployeeID]*license.Employee
	requests  map[engine.RequestID]*license.Request
	movements map[engine.EmployeeID][]license.Movement
}

func New() *Store {
	return &Store{
		employees: make(map[engine.EmployeeID]*license.Employee),
		requests:  make(map[engine.RequestID]*license.Request),
		movements: make(map[engine.EmployeeID][]license.Movement),
	}
}

// -----------------------------------------------------------------------------
// EmployeeStore
// -----------------------------------------------------------------------------

func (s *Store) CreateEmployee(_ context.Context, e *license.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *e
	if e.Availability != nil {
		cp.Availability = e.Availability.Clone()
	}
	s.employees[e.ID] = &cp
	return nil
}

func (s *Store) GetEmployee(_ context.Context, id engine.EmployeeID) (*license.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.employees[id]
	if !ok {
		return nil, engine.ErrNotFound
	}
	cp := *e
	if e.Availability != nil {
		cp.Availability = e.Availability.Clone()
	}
	return &cp, nil
}

func (s *Store) ListEmployees(_ context.Context) ([]*license.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*license.Employee, 0, len(s.employees))
	for _, e := range s.employees {
		cp := *e
		if e.Availability != nil {
			cp.Availability = e.Availability.Clone()
		}
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdateAvailability(_ context.Context, id engine.EmployeeID, record *engine.AvailabilityRecord, expectedVersion int64, movements []license.Movement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.employees[id]
	if !ok {
		return engine.ErrNotFound
	}
	var current int64
	if e.Availability != nil {
		current = e.Availability.Version
	}
	if current != expectedVersion {
		return engine.ErrConcurrentModification
	}

	e.Availability = record.Clone()
	s.movements[id] = append(s.movements[id], movements...)
	return nil
}

// -----------------------------------------------------------------------------
// RequestStore
// -----------------------------------------------------------------------------

func (s *Store) CreateRequest(_ context.Context, r *license.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *r
	s.requests[r.ID] = &cp
	return nil
}

func (s *Store) GetRequest(_ context.Context, id engine.RequestID) (*license.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.requests[id]
	if !ok {
		return nil, engine.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *Store) UpdateRequest(_ context.Context, r *license.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.requests[r.ID]; !ok {
		return engine.ErrNotFound
	}
	cp := *r
	s.requests[r.ID] = &cp
	return nil
}

func (s *Store) DeleteRequest(_ context.Context, id engine.RequestID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.requests[id]; !ok {
		return engine.ErrNotFound
	}
	delete(s.requests, id)
	return nil
}

func (s *Store) ListRequestsByEmployee(_ context.Context, id engine.EmployeeID) ([]*license.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*license.Request
	for _, r := range s.requests {
		if r.EmployeeID == id {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// -----------------------------------------------------------------------------
// MovementLog
// -----------------------------------------------------------------------------

func (s *Store) ListMovements(_ context.Context, id engine.EmployeeID) ([]license.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]license.Movement, len(s.movements[id]))
	copy(out, s.movements[id])
	return out, nil
}
