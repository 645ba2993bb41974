package license

import (
	"context"

	"github.com/talenthub/license-engine/engine"
)

// =============================================================================
// STORE INTERFACES
// =============================================================================

// EmployeeStore persists employees and their embedded availability
// records. UpdateAvailability is the single mutation path for the
// ledger: it compares expectedVersion against the stored record's
// version, and on mismatch returns engine.ErrConcurrentModification
// without writing anything. On success the stored version becomes
// record.Version and the supplied movements are appended in the same
// transaction.
type EmployeeStore interface {
	CreateEmployee(ctx context.Context, e *Employee) error
	GetEmployee(ctx context.Context, id engine.EmployeeID) (*Employee, error)
	ListEmployees(ctx context.Context) ([]*Employee, error)
	UpdateAvailability(ctx context.Context, id engine.EmployeeID, record *engine.AvailabilityRecord, expectedVersion int64, movements []Movement) error
}

// RequestStore persists license requests.
type RequestStore interface {
	CreateRequest(ctx context.Context, r *Request) error
	GetRequest(ctx context.Context, id engine.RequestID) (*Request, error)
	UpdateRequest(ctx context.Context, r *Request) error
	DeleteRequest(ctx context.Context, id engine.RequestID) error
	ListRequestsByEmployee(ctx context.Context, id engine.EmployeeID) ([]*Request, error)
}

// MovementLog reads the append-only movement trail. Appends happen only
// through EmployeeStore.UpdateAvailability so that ledger state and
// audit trail can never disagree.
type MovementLog interface {
	ListMovements(ctx context.Context, id engine.EmployeeID) ([]Movement, error)
}

// Store is the full persistence surface the service needs.
type Store interface {
	EmployeeStore
	RequestStore
	MovementLog
}
