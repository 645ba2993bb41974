/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Gender    string `json:"gender"`
	HireDate  string `json:"hire_date"`
	CreatedAt string `json:"created_at"`
}

// CreateEmployeeRequest is the body for POST /api/employees.
type CreateEmployeeRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Gender   string `json:"gender"`
	HireDate string `json:"hire_date"` // YYYY-MM-DD
}

// LicenseTypeDTO represents a catalog entry in API responses.
type LicenseTypeDTO struct {
	Code              string   `json:"code"`
	Name              string   `json:"name"`
	Category          string   `json:"category"`
	PeriodControl     string   `json:"period_control"`
	QuantityCeiling   string   `json:"quantity_ceiling"`
	MaxPerRequest     *string  `json:"max_per_request,omitempty"`
	GenderRestriction *string  `json:"gender_restriction,omitempty"`
	Active            bool     `json:"active"`
}

// SubmitRequestDTO is the body for POST /api/requests.
type SubmitRequestDTO struct {
	EmployeeID  string  `json:"employee_id"`
	LicenseCode string  `json:"license_code"`
	StartDate   string  `json:"start_date"` // YYYY-MM-DD
	EndDate     string  `json:"end_date"`   // YYYY-MM-DD
	Quantity    float64 `json:"quantity"`
	Reason      string  `json:"reason,omitempty"`
}

// EditRequestDTO is the body for PATCH /api/requests/{id}. Omitted
// fields keep their current value.
type EditRequestDTO struct {
	StartDate *string  `json:"start_date,omitempty"`
	EndDate   *string  `json:"end_date,omitempty"`
	Quantity  *float64 `json:"quantity,omitempty"`
	Reason    *string  `json:"reason,omitempty"`
}

// RequestDTO represents a license request in API responses.
type RequestDTO struct {
	ID          string `json:"id"`
	EmployeeID  string `json:"employee_id"`
	LicenseCode string `json:"license_code"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Quantity    string `json:"quantity"`
	Reason      string `json:"reason,omitempty"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// MovementDTO represents one audit trail entry.
type MovementDTO struct {
	ID          string `json:"id"`
	LicenseCode string `json:"license_code,omitempty"`
	Type        string `json:"type"`
	Quantity    string `json:"quantity"`
	EventDate   string `json:"event_date"`
	RequestID   string `json:"request_id,omitempty"`
	Reason      string `json:"reason,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
