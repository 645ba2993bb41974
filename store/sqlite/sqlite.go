/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements license.Store using SQLite. In production, the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

AVAILABILITY DOCUMENT:
  The per-employee availability record is stored as a JSON document on
  the employee row, alongside a version column. UpdateAvailability is a
  conditional UPDATE on that version: zero rows affected means another
  writer got there first and the caller sees
  engine.ErrConcurrentModification. Movements ride in the same SQL
  transaction, so the ledger and its audit trail commit together.

KEY TABLES:
  employees: Employee records with the availability JSON + version
  requests:  License requests (full lifecycle state)
  movements: Append-only audit of committed ledger effects
  catalog_overrides: License type definitions that replace the seed

APPEND-ONLY ENFORCEMENT:
  No UPDATE or DELETE statements touch the movements table.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better
  concurrency: multiple readers don't block, single writer at a time,
  better crash recovery.

USAGE:
  store, err := sqlite.New("./data/licenses.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - license/store.go: Interface definitions
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/talenthub/license-engine/catalog"
	"github.com/talenthub/license-engine/engine"
	"github.com/talenthub/license-engine/license"
)

// Store implements license.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Employees (availability record stored as a versioned JSON document)
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		gender TEXT NOT NULL,
		hire_date TEXT NOT NULL,
		availability_json TEXT,
		version INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	-- License Requests
	CREATE TABLE IF NOT EXISTS requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		license_code TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		quantity TEXT NOT NULL,
		reason TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_requests_employee
		ON requests(employee_id);
	CREATE INDEX IF NOT EXISTS idx_requests_status
		ON requests(status);

	-- Movements (append-only audit of ledger effects)
	CREATE TABLE IF NOT EXISTS movements (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		license_code TEXT,
		movement_type TEXT NOT NULL,
		quantity TEXT NOT NULL,
		event_date TEXT NOT NULL,
		request_id TEXT,
		reason TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_movements_employee
		ON movements(employee_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_movements_request
		ON movements(request_id) WHERE request_id IS NOT NULL;

	-- Catalog overrides (license type definitions that replace the built-in seed)
	CREATE TABLE IF NOT EXISTS catalog_overrides (
		code TEXT PRIMARY KEY,
		definition_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// EMPLOYEE STORE (license.EmployeeStore interface)
// =============================================================================

// CreateEmployee inserts a new employee. The availability document
// starts empty; initialization happens through UpdateAvailability.
func (s *Store) CreateEmployee(ctx context.Context, e *license.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var availJSON sql.NullString
	var version int64
	if e.Availability != nil {
		data, err := json.Marshal(e.Availability)
		if err != nil {
			return fmt.Errorf("failed to marshal availability: %w", err)
		}
		availJSON = sql.NullString{String: string(data), Valid: true}
		version = e.Availability.Version
	}

	query := `
		INSERT INTO employees (id, name, email, gender, hire_date, availability_json, version, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		string(e.ID),
		e.Name,
		e.Email,
		string(e.Gender),
		e.HireDate.UTC().Format(time.RFC3339),
		availJSON,
		version,
		e.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert employee: %w", err)
	}
	return nil
}

// GetEmployee loads an employee and its availability document.
func (s *Store) GetEmployee(ctx context.Context, id engine.EmployeeID) (*license.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, name, email, gender, hire_date, availability_json, version, created_at
		FROM employees WHERE id = ?
	`
	row := s.db.QueryRowContext(ctx, query, string(id))
	emp, err := scanEmployee(row)
	if err == sql.ErrNoRows {
		return nil, engine.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load employee: %w", err)
	}
	return emp, nil
}

// ListEmployees returns all employees ordered by id.
func (s *Store) ListEmployees(ctx context.Context) ([]*license.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, name, email, gender, hire_date, availability_json, version, created_at
		FROM employees ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	var employees []*license.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		employees = append(employees, emp)
	}
	return employees, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row rowScanner) (*license.Employee, error) {
	var (
		id, name, gender, hireDate, createdAt string
		email, availJSON                      sql.NullString
		version                               int64
	)
	if err := row.Scan(&id, &name, &email, &gender, &hireDate, &availJSON, &version, &createdAt); err != nil {
		return nil, err
	}

	emp := &license.Employee{
		ID:     engine.EmployeeID(id),
		Name:   name,
		Email:  email.String,
		Gender: engine.Gender(gender),
	}
	emp.HireDate, _ = time.Parse(time.RFC3339, hireDate)
	emp.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	if availJSON.Valid && availJSON.String != "" {
		var rec engine.AvailabilityRecord
		if err := json.Unmarshal([]byte(availJSON.String), &rec); err != nil {
			return nil, fmt.Errorf("corrupt availability document for %s: %w", id, err)
		}
		rec.Version = version
		emp.Availability = &rec
	}
	return emp, nil
}

// UpdateAvailability commits a new availability revision with a version
// compare-and-swap and appends the movements in the same transaction.
func (s *Store) UpdateAvailability(ctx context.Context, id engine.EmployeeID, record *engine.AvailabilityRecord, expectedVersion int64, movements []license.Movement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal availability: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE employees SET availability_json = ?, version = ? WHERE id = ? AND version = ?`,
		string(data), record.Version, string(id), expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update availability: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM employees WHERE id = ?`, string(id)).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check employee: %w", err)
		}
		if exists == 0 {
			return engine.ErrNotFound
		}
		return engine.ErrConcurrentModification
	}

	for _, m := range movements {
		if err := appendMovement(ctx, tx, m); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit availability update: %w", err)
	}
	return nil
}

// =============================================================================
// REQUEST STORE (license.RequestStore interface)
// =============================================================================

// CreateRequest inserts a new request.
func (s *Store) CreateRequest(ctx context.Context, r *license.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO requests (id, employee_id, license_code, start_date, end_date, quantity, reason, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		string(r.ID),
		string(r.EmployeeID),
		string(r.Code),
		r.StartDate.UTC().Format(time.RFC3339),
		r.EndDate.UTC().Format(time.RFC3339),
		r.Quantity.String(),
		r.Reason,
		string(r.Status),
		r.CreatedAt.UTC().Format(time.RFC3339),
		r.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert request: %w", err)
	}
	return nil
}

// GetRequest loads a request by id.
func (s *Store) GetRequest(ctx context.Context, id engine.RequestID) (*license.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, employee_id, license_code, start_date, end_date, quantity, reason, status, created_at, updated_at
		FROM requests WHERE id = ?
	`
	row := s.db.QueryRowContext(ctx, query, string(id))
	req, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, engine.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load request: %w", err)
	}
	return req, nil
}

// UpdateRequest persists a request's current state.
func (s *Store) UpdateRequest(ctx context.Context, r *license.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		UPDATE requests
		SET start_date = ?, end_date = ?, quantity = ?, reason = ?, status = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := s.db.ExecContext(ctx, query,
		r.StartDate.UTC().Format(time.RFC3339),
		r.EndDate.UTC().Format(time.RFC3339),
		r.Quantity.String(),
		r.Reason,
		string(r.Status),
		r.UpdatedAt.UTC().Format(time.RFC3339),
		string(r.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to update request: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return engine.ErrNotFound
	}
	return nil
}

// DeleteRequest removes a request.
func (s *Store) DeleteRequest(ctx context.Context, id engine.RequestID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM requests WHERE id = ?`, string(id))
	if err != nil {
		return fmt.Errorf("failed to delete request: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return engine.ErrNotFound
	}
	return nil
}

// ListRequestsByEmployee returns an employee's requests, newest first.
func (s *Store) ListRequestsByEmployee(ctx context.Context, id engine.EmployeeID) ([]*license.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, employee_id, license_code, start_date, end_date, quantity, reason, status, created_at, updated_at
		FROM requests WHERE employee_id = ? ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, string(id))
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	var requests []*license.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

func scanRequest(row rowScanner) (*license.Request, error) {
	var (
		id, employeeID, code, startDate, endDate, quantity, status, createdAt, updatedAt string
		reason                                                                          sql.NullString
	)
	if err := row.Scan(&id, &employeeID, &code, &startDate, &endDate, &quantity, &reason, &status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	req := &license.Request{
		ID:         engine.RequestID(id),
		EmployeeID: engine.EmployeeID(employeeID),
		Code:       engine.LicenseCode(code),
		Quantity:   engine.ParseQuantity(quantity),
		Reason:     reason.String,
		Status:     license.Status(status),
	}
	req.StartDate, _ = time.Parse(time.RFC3339, startDate)
	req.EndDate, _ = time.Parse(time.RFC3339, endDate)
	req.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	req.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return req, nil
}

// =============================================================================
// MOVEMENT LOG (license.MovementLog interface)
// =============================================================================

func appendMovement(ctx context.Context, tx *sql.Tx, m license.Movement) error {
	query := `
		INSERT INTO movements (id, employee_id, license_code, movement_type, quantity, event_date, request_id, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := tx.ExecContext(ctx, query,
		m.ID,
		string(m.EmployeeID),
		nullString(string(m.Code)),
		string(m.Type),
		m.Quantity.String(),
		m.EventDate.UTC().Format(time.RFC3339),
		nullString(string(m.RequestID)),
		nullString(m.Reason),
		m.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to append movement: %w", err)
	}
	return nil
}

// ListMovements returns the employee's audit trail, oldest first.
func (s *Store) ListMovements(ctx context.Context, id engine.EmployeeID) ([]license.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, employee_id, license_code, movement_type, quantity, event_date, request_id, reason, created_at
		FROM movements WHERE employee_id = ? ORDER BY created_at, rowid
	`
	rows, err := s.db.QueryContext(ctx, query, string(id))
	if err != nil {
		return nil, fmt.Errorf("failed to list movements: %w", err)
	}
	defer rows.Close()

	var movements []license.Movement
	for rows.Next() {
		var (
			mid, employeeID, typ, quantity, eventDate, createdAt string
			code, requestID, reason                              sql.NullString
		)
		if err := rows.Scan(&mid, &employeeID, &code, &typ, &quantity, &eventDate, &requestID, &reason, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan movement: %w", err)
		}
		m := license.Movement{
			ID:         mid,
			EmployeeID: engine.EmployeeID(employeeID),
			Code:       engine.LicenseCode(code.String),
			Type:       license.MovementType(typ),
			Quantity:   engine.ParseQuantity(quantity),
			RequestID:  engine.RequestID(requestID.String),
			Reason:     reason.String,
		}
		m.EventDate, _ = time.Parse(time.RFC3339, eventDate)
		m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// =============================================================================
// CATALOG OVERRIDES
// =============================================================================

// SaveLicenseType persists a license type definition, replacing any
// previous override for the same code.
func (s *Store) SaveLicenseType(ctx context.Context, lt engine.LicenseType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(catalog.ToJSON(lt))
	if err != nil {
		return fmt.Errorf("failed to marshal license type: %w", err)
	}

	query := `
		INSERT INTO catalog_overrides (code, definition_json, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET definition_json = excluded.definition_json, updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, string(lt.Code), string(data), time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("failed to save license type override: %w", err)
	}
	return nil
}

// ListLicenseTypeOverrides returns every persisted license type
// definition, for replaying into the catalog at startup.
func (s *Store) ListLicenseTypeOverrides(ctx context.Context) ([]engine.LicenseType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT definition_json FROM catalog_overrides ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("failed to list license type overrides: %w", err)
	}
	defer rows.Close()

	var types []engine.LicenseType
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan license type override: %w", err)
		}
		lt, err := catalog.ParseLicenseType([]byte(data))
		if err != nil {
			return nil, err
		}
		types = append(types, lt)
	}
	return types, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
