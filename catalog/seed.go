/*
seed.go - The delivered license catalog

PURPOSE:
  The catalog entries shipped with the system. Codes follow the HR
  convention: short mnemonic codes for common licenses, LG/OM-prefixed
  codes for statutory and administrative ones.
*/
package catalog

import "github.com/talenthub/license-engine/engine"

func quantity(v float64) engine.Quantity { return engine.NewQuantity(v) }

func quantityPtr(v float64) *engine.Quantity {
	q := engine.NewQuantity(v)
	return &q
}

func genderPtr(g engine.Gender) *engine.Gender { return &g }

// Seed returns the delivered catalog.
func Seed() []engine.LicenseType {
	return []engine.LicenseType{
		{
			Code:            "VAC",
			Name:            "Annual vacation",
			Category:        engine.CategoryDays,
			Control:         engine.PeriodAnnual,
			QuantityCeiling: quantity(15),
			Active:          true,
		},
		{
			Code:            "SICK",
			Name:            "Paid sick leave",
			Category:        engine.CategoryDays,
			Control:         engine.PeriodAnnual,
			QuantityCeiling: quantity(12),
			MaxPerRequest:   quantityPtr(3),
			Active:          true,
		},
		{
			Code:            "LG08",
			Name:            "Personal errand hours",
			Category:        engine.CategoryHours,
			Control:         engine.PeriodMonthly,
			QuantityCeiling: quantity(8),
			MaxPerRequest:   quantityPtr(4),
			Active:          true,
		},
		{
			Code:            "LG20",
			Name:            "Study hours",
			Category:        engine.CategoryHours,
			Control:         engine.PeriodAnnual,
			QuantityCeiling: quantity(40),
			Active:          true,
		},
		{
			Code:            "OM14",
			Name:            "Missed clock-in waiver",
			Category:        engine.CategoryOccasions,
			Control:         engine.PeriodMonthly,
			QuantityCeiling: quantity(2),
			MaxPerRequest:   quantityPtr(1),
			Active:          true,
		},
		{
			Code:            "BRV",
			Name:            "Bereavement leave",
			Category:        engine.CategoryOccasions,
			Control:         engine.PeriodNone,
			QuantityCeiling: quantity(0), // registration-only
			MaxPerRequest:   quantityPtr(5),
			Active:          true,
		},
		{
			Code:              "MAT",
			Name:              "Maternity leave",
			Category:          engine.CategoryOccasions,
			Control:           engine.PeriodNone,
			QuantityCeiling:   quantity(0), // registration-only
			GenderRestriction: genderPtr(engine.GenderFemale),
			Active:            true,
		},
		{
			Code:              "PAT",
			Name:              "Paternity leave",
			Category:          engine.CategoryOccasions,
			Control:           engine.PeriodNone,
			QuantityCeiling:   quantity(0), // registration-only
			MaxPerRequest:     quantityPtr(10),
			GenderRestriction: genderPtr(engine.GenderMale),
			Active:            true,
		},
	}
}
