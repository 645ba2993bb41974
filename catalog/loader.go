/*
loader.go - JSON license type definitions

PURPOSE:
  Converts JSON definitions into engine.LicenseType values. HR can
  define or override license types without code changes; the server
  persists overrides and feeds them back through this loader at startup.

JSON SCHEMA:
  {
    "code": "VAC",
    "name": "Vacaciones",
    "category": "days",
    "period_control": "annual",
    "quantity_ceiling": 15,
    "max_per_request": 15,
    "gender_restriction": "F",
    "active": true
  }

KEY FEATURES:
  - Validates category and period control
  - Rejects the meaningless combinations (occasions with annual balances
    are expressed as counters, never day ledgers)
  - Sets sensible defaults (active true unless stated)
*/
package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/talenthub/license-engine/engine"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// LicenseTypeJSON is the JSON representation of a license type.
type LicenseTypeJSON struct {
	Code              string   `json:"code"`
	Name              string   `json:"name"`
	Category          string   `json:"category"`
	PeriodControl     string   `json:"period_control"`
	QuantityCeiling   float64  `json:"quantity_ceiling"`
	MaxPerRequest     *float64 `json:"max_per_request,omitempty"`
	GenderRestriction string   `json:"gender_restriction,omitempty"`
	Active            *bool    `json:"active,omitempty"`
}

// =============================================================================
// LOADER
// =============================================================================

// ParseLicenseType converts a JSON document into an engine.LicenseType.
func ParseLicenseType(data []byte) (engine.LicenseType, error) {
	var j LicenseTypeJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return engine.LicenseType{}, fmt.Errorf("invalid license type JSON: %w", err)
	}
	return FromJSON(j)
}

// ParseLicenseTypes converts a JSON array of definitions.
func ParseLicenseTypes(data []byte) ([]engine.LicenseType, error) {
	var docs []LicenseTypeJSON
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("invalid license type JSON: %w", err)
	}
	types := make([]engine.LicenseType, 0, len(docs))
	for _, j := range docs {
		lt, err := FromJSON(j)
		if err != nil {
			return nil, err
		}
		types = append(types, lt)
	}
	return types, nil
}

// FromJSON validates and converts a parsed JSON definition.
func FromJSON(j LicenseTypeJSON) (engine.LicenseType, error) {
	if j.Code == "" {
		return engine.LicenseType{}, fmt.Errorf("license type requires a code")
	}

	category := engine.Category(j.Category)
	if !category.Valid() {
		return engine.LicenseType{}, fmt.Errorf("invalid category %q for %s", j.Category, j.Code)
	}

	control := engine.PeriodControl(j.PeriodControl)
	if j.PeriodControl == "" {
		control = engine.PeriodNone
	}
	if !control.Valid() {
		return engine.LicenseType{}, fmt.Errorf("invalid period control %q for %s", j.PeriodControl, j.Code)
	}

	if j.QuantityCeiling < 0 {
		return engine.LicenseType{}, fmt.Errorf("negative ceiling for %s", j.Code)
	}

	lt := engine.LicenseType{
		Code:            engine.LicenseCode(j.Code),
		Name:            j.Name,
		Category:        category,
		Control:         control,
		QuantityCeiling: engine.NewQuantity(j.QuantityCeiling),
		Active:          true,
	}

	if j.MaxPerRequest != nil {
		if *j.MaxPerRequest <= 0 {
			return engine.LicenseType{}, fmt.Errorf("non-positive per-request cap for %s", j.Code)
		}
		perRequest := engine.NewQuantity(*j.MaxPerRequest)
		lt.MaxPerRequest = &perRequest
	}

	switch j.GenderRestriction {
	case "":
	case string(engine.GenderFemale), string(engine.GenderMale):
		g := engine.Gender(j.GenderRestriction)
		lt.GenderRestriction = &g
	default:
		return engine.LicenseType{}, fmt.Errorf("invalid gender restriction %q for %s", j.GenderRestriction, j.Code)
	}

	if j.Active != nil {
		lt.Active = *j.Active
	}

	return lt, nil
}

// ToJSON converts a definition back to its JSON representation.
func ToJSON(lt engine.LicenseType) LicenseTypeJSON {
	j := LicenseTypeJSON{
		Code:          string(lt.Code),
		Name:          lt.Name,
		Category:      string(lt.Category),
		PeriodControl: string(lt.Control),
		Active:        &lt.Active,
	}
	j.QuantityCeiling, _ = lt.QuantityCeiling.Value.Float64()
	if lt.MaxPerRequest != nil {
		v, _ := lt.MaxPerRequest.Value.Float64()
		j.MaxPerRequest = &v
	}
	if lt.GenderRestriction != nil {
		j.GenderRestriction = string(*lt.GenderRestriction)
	}
	return j
}
