/*
handlers.go - HTTP API handlers for the license balance engine

PURPOSE:
  Exposes the license engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Employees:
    GET    /api/employees                    List all employees
    POST   /api/employees                    Create employee (initializes availability)
    GET    /api/employees/{id}               Get employee details
    GET    /api/employees/{id}/availability  Live balance report
    GET    /api/employees/{id}/requests      Request history
    GET    /api/employees/{id}/movements     Ledger audit trail

  Requests:
    POST   /api/requests                     Submit license request
    PATCH  /api/requests/{id}                Edit active request
    DELETE /api/requests/{id}                Delete active request
    POST   /api/requests/{id}/cancel         Cancel (keeps audit record)
    POST   /api/requests/{id}/complete       Mark as taken

  Catalog:
    GET    /api/license-types                List active license types

  Admin:
    POST   /api/admin/renew/annual           Force annual renewal pass
    POST   /api/admin/renew/monthly          Force monthly renewal pass

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, insufficient balance, expired carry-over
  - 404: Resource not found
  - 409: Concurrent modification
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/talenthub/license-engine/catalog"
	"github.com/talenthub/license-engine/engine"
	"github.com/talenthub/license-engine/license"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   license.Store
	Catalog catalog.Reader
	Service *license.Service
	Manager *license.AvailabilityManager
	Clock   engine.Clock
	Logger  zerolog.Logger
}

// NewHandler creates a new handler.
func NewHandler(store license.Store, cat catalog.Reader, svc *license.Service, mgr *license.AvailabilityManager, clock engine.Clock, logger zerolog.Logger) *Handler {
	return &Handler{
		Store:   store,
		Catalog: cat,
		Service: svc,
		Manager: mgr,
		Clock:   clock,
		Logger:  logger.With().Str("component", "api").Logger(),
	}
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	id := engine.EmployeeID(chi.URLParam(r, "id"))

	emp, err := h.Store.GetEmployee(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get employee", err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(emp))
}

// CreateEmployee creates a new employee and initializes its
// availability record from the active catalog.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}
	gender := engine.Gender(req.Gender)
	if gender != engine.GenderFemale && gender != engine.GenderMale {
		writeError(w, http.StatusBadRequest, "gender must be F or M", nil)
		return
	}
	hireDate, err := parseDate(req.HireDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "hire_date must be YYYY-MM-DD", err)
		return
	}

	emp := &license.Employee{
		ID:        engine.EmployeeID(req.ID),
		Name:      req.Name,
		Email:     req.Email,
		Gender:    gender,
		HireDate:  hireDate,
		CreatedAt: h.Clock.Now(),
	}
	if err := h.Store.CreateEmployee(r.Context(), emp); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create employee", err)
		return
	}
	if err := h.Manager.Initialize(r.Context(), emp.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to initialize availability", err)
		return
	}

	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

// GetAvailability returns the employee's live balance report.
func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	id := engine.EmployeeID(chi.URLParam(r, "id"))

	view, err := h.Service.Availability(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to compute availability", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// GetRequests returns the employee's request history.
func (h *Handler) GetRequests(w http.ResponseWriter, r *http.Request) {
	id := engine.EmployeeID(chi.URLParam(r, "id"))

	requests, err := h.Service.Requests(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to list requests", err)
		return
	}
	dtos := make([]RequestDTO, len(requests))
	for i, req := range requests {
		dtos[i] = toRequestDTO(req)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetMovements returns the employee's ledger audit trail.
func (h *Handler) GetMovements(w http.ResponseWriter, r *http.Request) {
	id := engine.EmployeeID(chi.URLParam(r, "id"))

	movements, err := h.Service.Movements(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to list movements", err)
		return
	}
	dtos := make([]MovementDTO, len(movements))
	for i, m := range movements {
		dtos[i] = MovementDTO{
			ID:          m.ID,
			LicenseCode: string(m.Code),
			Type:        string(m.Type),
			Quantity:    m.Quantity.String(),
			EventDate:   m.EventDate.Format("2006-01-02"),
			RequestID:   string(m.RequestID),
			Reason:      m.Reason,
			CreatedAt:   m.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// REQUEST LIFECYCLE HANDLERS
// =============================================================================

// SubmitRequest creates a license request and debits the balance.
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	var dto SubmitRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	startDate, err := parseDate(dto.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD", err)
		return
	}
	endDate, err := parseDate(dto.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "end_date must be YYYY-MM-DD", err)
		return
	}

	req, err := h.Service.Create(r.Context(), license.CreateInput{
		EmployeeID: engine.EmployeeID(dto.EmployeeID),
		Code:       engine.LicenseCode(dto.LicenseCode),
		StartDate:  startDate,
		EndDate:    endDate,
		Quantity:   engine.NewQuantity(dto.Quantity),
		Reason:     dto.Reason,
	})
	if err != nil {
		writeDomainError(w, "Failed to create request", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestDTO(req))
}

// EditRequest updates an active request's figures.
func (h *Handler) EditRequest(w http.ResponseWriter, r *http.Request) {
	id := engine.RequestID(chi.URLParam(r, "id"))

	var dto EditRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var input license.EditInput
	if dto.StartDate != nil {
		d, err := parseDate(*dto.StartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD", err)
			return
		}
		input.StartDate = &d
	}
	if dto.EndDate != nil {
		d, err := parseDate(*dto.EndDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "end_date must be YYYY-MM-DD", err)
			return
		}
		input.EndDate = &d
	}
	if dto.Quantity != nil {
		q := engine.NewQuantity(*dto.Quantity)
		input.Quantity = &q
	}
	input.Reason = dto.Reason

	req, err := h.Service.Edit(r.Context(), id, input)
	if err != nil {
		writeDomainError(w, "Failed to edit request", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// DeleteRequest removes an active request and credits its consumption.
func (h *Handler) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	id := engine.RequestID(chi.URLParam(r, "id"))

	if err := h.Service.Delete(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to delete request", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CancelRequest cancels an active request, keeping the audit record.
func (h *Handler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	id := engine.RequestID(chi.URLParam(r, "id"))

	req, err := h.Service.Cancel(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to cancel request", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// CompleteRequest marks an active request as taken.
func (h *Handler) CompleteRequest(w http.ResponseWriter, r *http.Request) {
	id := engine.RequestID(chi.URLParam(r, "id"))

	req, err := h.Service.Complete(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to complete request", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// =============================================================================
// CATALOG HANDLERS
// =============================================================================

// ListLicenseTypes returns the active catalog.
func (h *Handler) ListLicenseTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.Catalog.ListActive(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list license types", err)
		return
	}

	dtos := make([]LicenseTypeDTO, len(types))
	for i, lt := range types {
		dto := LicenseTypeDTO{
			Code:            string(lt.Code),
			Name:            lt.Name,
			Category:        string(lt.Category),
			PeriodControl:   string(lt.Control),
			QuantityCeiling: lt.QuantityCeiling.String(),
			Active:          lt.Active,
		}
		if lt.MaxPerRequest != nil {
			s := lt.MaxPerRequest.String()
			dto.MaxPerRequest = &s
		}
		if lt.GenderRestriction != nil {
			s := string(*lt.GenderRestriction)
			dto.GenderRestriction = &s
		}
		dtos[i] = dto
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// RenewAnnual forces an annual renewal pass over all employees.
func (h *Handler) RenewAnnual(w http.ResponseWriter, r *http.Request) {
	h.renewAll(w, r, h.Manager.RenewAnnual)
}

// RenewMonthly forces a monthly renewal pass over all employees.
func (h *Handler) RenewMonthly(w http.ResponseWriter, r *http.Request) {
	h.renewAll(w, r, h.Manager.RenewMonthly)
}

func (h *Handler) renewAll(w http.ResponseWriter, r *http.Request, renew func(ctx context.Context, id engine.EmployeeID) error) {
	employees, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}

	processed := 0
	for _, emp := range employees {
		if emp.Availability == nil {
			continue
		}
		if err := renew(r.Context(), emp.ID); err != nil {
			h.Logger.Error().Err(err).Str("employee_id", string(emp.ID)).Msg("renewal failed")
			continue
		}
		processed++
	}
	writeJSON(w, http.StatusOK, map[string]int{"processed": processed})
}

// =============================================================================
// HELPERS
// =============================================================================

func toEmployeeDTO(e *license.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:        string(e.ID),
		Name:      e.Name,
		Email:     e.Email,
		Gender:    string(e.Gender),
		HireDate:  e.HireDate.Format("2006-01-02"),
		CreatedAt: e.CreatedAt.Format(time.RFC3339),
	}
}

func toRequestDTO(r *license.Request) RequestDTO {
	return RequestDTO{
		ID:          string(r.ID),
		EmployeeID:  string(r.EmployeeID),
		LicenseCode: string(r.Code),
		StartDate:   r.StartDate.Format("2006-01-02"),
		EndDate:     r.EndDate.Format("2006-01-02"),
		Quantity:    r.Quantity.String(),
		Reason:      r.Reason,
		Status:      string(r.Status),
		CreatedAt:   r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   r.UpdatedAt.Format(time.RFC3339),
	}
}

func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

// writeDomainError maps domain errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case engine.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case engine.IsRetryable(err):
		writeError(w, http.StatusConflict, message, err)
	case engine.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
