/*
handlers_test.go - HTTP-level tests for the license API

Tests drive the full stack (router, handlers, service, manager, sqlite
store) through httptest, asserting on status codes and JSON bodies.
*/
package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talenthub/license-engine/api"
	"github.com/talenthub/license-engine/catalog"
	"github.com/talenthub/license-engine/engine"
	"github.com/talenthub/license-engine/license"
	"github.com/talenthub/license-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T, now time.Time) http.Handler {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cat := catalog.NewStatic(catalog.Seed()...)
	clock := engine.FixedClock{At: now}
	logger := zerolog.Nop()

	manager := license.NewAvailabilityManager(store, cat, clock, logger)
	service := license.NewService(store, cat, manager, clock, logger)
	handler := api.NewHandler(store, cat, service, manager, clock, logger)

	return api.NewRouter(handler)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func createEmployee(t *testing.T, h http.Handler, id string) {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/api/employees", map[string]any{
		"id":        id,
		"name":      "Test Employee",
		"email":     "test@example.com",
		"gender":    "F",
		"hire_date": "2020-03-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func submitRequest(t *testing.T, h http.Handler, employeeID, code, start, end string, quantity float64) api.RequestDTO {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/api/requests", map[string]any{
		"employee_id":  employeeID,
		"license_code": code,
		"start_date":   start,
		"end_date":     end,
		"quantity":     quantity,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[api.RequestDTO](t, rec)
}

func availabilityEntry(t *testing.T, h http.Handler, employeeID, code string) map[string]any {
	t.Helper()
	rec := doJSON(t, h, http.MethodGet, "/api/employees/"+employeeID+"/availability", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	view := decode[map[string]any](t, rec)
	entries, ok := view["entries"].([]any)
	require.True(t, ok, "availability has no entries")
	for _, raw := range entries {
		entry := raw.(map[string]any)
		if entry["code"] == code {
			return entry
		}
	}
	t.Fatalf("no %s entry in availability", code)
	return nil
}

// =============================================================================
// EMPLOYEE ENDPOINT TESTS
// =============================================================================

func TestAPI_CreateEmployee_InitializesAvailability(t *testing.T) {
	// GIVEN: A fresh server
	// WHEN: Creating an employee
	// THEN: The availability report immediately shows the seeded catalog

	h := newTestServer(t, time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC))
	createEmployee(t, h, "emp-1")

	entry := availabilityEntry(t, h, "emp-1", "VAC")
	assert.Equal(t, "15", entry["available"])
	assert.Equal(t, "0", entry["used"])
}

func TestAPI_CreateEmployee_Validation(t *testing.T) {
	h := newTestServer(t, time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC))

	rec := doJSON(t, h, http.MethodPost, "/api/employees", map[string]any{
		"id": "emp-1", "name": "X", "gender": "Q", "hire_date": "2020-03-01",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/employees", map[string]any{
		"name": "X", "gender": "F", "hire_date": "2020-03-01",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_GetEmployee_NotFound(t *testing.T) {
	h := newTestServer(t, time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC))

	rec := doJSON(t, h, http.MethodGet, "/api/employees/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// REQUEST LIFECYCLE TESTS
// =============================================================================

func TestAPI_RequestLifecycle(t *testing.T) {
	// Create, edit, cancel: the availability report tracks each step.
	h := newTestServer(t, time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC))
	createEmployee(t, h, "emp-1")

	req := submitRequest(t, h, "emp-1", "VAC", "2025-06-10", "2025-06-12", 3)
	assert.Equal(t, "active", req.Status)
	assert.Equal(t, "12", availabilityEntry(t, h, "emp-1", "VAC")["available"])

	rec := doJSON(t, h, http.MethodPatch, "/api/requests/"+req.ID, map[string]any{
		"quantity": 5,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "10", availabilityEntry(t, h, "emp-1", "VAC")["available"])

	rec = doJSON(t, h, http.MethodPost, "/api/requests/"+req.ID+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cancelled := decode[api.RequestDTO](t, rec)
	assert.Equal(t, "cancelled", cancelled.Status)
	assert.Equal(t, "15", availabilityEntry(t, h, "emp-1", "VAC")["available"])
}

func TestAPI_DeleteRequest(t *testing.T) {
	h := newTestServer(t, time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC))
	createEmployee(t, h, "emp-1")

	req := submitRequest(t, h, "emp-1", "VAC", "2025-06-10", "2025-06-12", 3)

	rec := doJSON(t, h, http.MethodDelete, "/api/requests/"+req.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "15", availabilityEntry(t, h, "emp-1", "VAC")["available"])

	rec = doJSON(t, h, http.MethodDelete, "/api/requests/"+req.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_CompleteRequest_Freezes(t *testing.T) {
	h := newTestServer(t, time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC))
	createEmployee(t, h, "emp-1")

	req := submitRequest(t, h, "emp-1", "VAC", "2025-06-10", "2025-06-12", 3)

	rec := doJSON(t, h, http.MethodPost, "/api/requests/"+req.ID+"/complete", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodPatch, "/api/requests/"+req.ID, map[string]any{"quantity": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_SubmitRequest_InsufficientBalance(t *testing.T) {
	// GIVEN: An employee with 15 vacation days
	// WHEN: Submitting a 16-day request
	// THEN: 400 with the shortage in the error details

	h := newTestServer(t, time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC))
	createEmployee(t, h, "emp-1")

	rec := doJSON(t, h, http.MethodPost, "/api/requests", map[string]any{
		"employee_id":  "emp-1",
		"license_code": "VAC",
		"start_date":   "2025-06-10",
		"end_date":     "2025-06-25",
		"quantity":     16,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[api.ErrorResponse](t, rec)
	assert.Contains(t, body.Details, "insufficient balance")
}

func TestAPI_SubmitRequest_Backdated(t *testing.T) {
	h := newTestServer(t, time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC))
	createEmployee(t, h, "emp-1")

	submitRequest(t, h, "emp-1", "VAC", "2024-11-04", "2024-11-06", 3)

	// Current year untouched.
	assert.Equal(t, "15", availabilityEntry(t, h, "emp-1", "VAC")["available"])
}

func TestAPI_Movements(t *testing.T) {
	h := newTestServer(t, time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC))
	createEmployee(t, h, "emp-1")

	req := submitRequest(t, h, "emp-1", "VAC", "2025-06-10", "2025-06-12", 3)
	rec := doJSON(t, h, http.MethodPost, "/api/requests/"+req.ID+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/employees/emp-1/movements", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	movements := decode[[]api.MovementDTO](t, rec)
	require.Len(t, movements, 2)
	assert.Equal(t, "debit", movements[0].Type)
	assert.Equal(t, "credit", movements[1].Type)
	assert.Equal(t, req.ID, movements[0].RequestID)
}

// =============================================================================
// CATALOG TESTS
// =============================================================================

func TestAPI_ListLicenseTypes(t *testing.T) {
	h := newTestServer(t, time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC))

	rec := doJSON(t, h, http.MethodGet, "/api/license-types", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	types := decode[[]api.LicenseTypeDTO](t, rec)
	codes := make([]string, len(types))
	for i, lt := range types {
		codes[i] = lt.Code
	}
	assert.Contains(t, codes, "VAC")
	assert.Contains(t, codes, "OM14")
	assert.Contains(t, codes, "MAT")
}

// =============================================================================
// ADMIN RENEWAL TESTS
// =============================================================================

func TestAPI_AdminRenew(t *testing.T) {
	h := newTestServer(t, time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC))
	for i := 1; i <= 3; i++ {
		createEmployee(t, h, fmt.Sprintf("emp-%d", i))
	}

	rec := doJSON(t, h, http.MethodPost, "/api/admin/renew/monthly", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	result := decode[map[string]int](t, rec)
	assert.Equal(t, 3, result["processed"])
}
