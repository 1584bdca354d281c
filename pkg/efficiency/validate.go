package efficiency

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// MaxPeriods is the largest number of periods accepted in one request.
const MaxPeriods = 10

// buildingIDPattern matches the 24 hex character document identifiers used for buildings.
var buildingIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

// ValidateBuildingID checks the building identifier format.
func ValidateBuildingID(id string) error {
	if !buildingIDPattern.MatchString(id) {
		return fmt.Errorf("%w: building_id %q must be 24 hexadecimal characters", ErrMalformedIdentifier, id)
	}
	return nil
}

// Validate checks a whole calculation request. Every period is checked before
// anything is computed; the first failure is returned.
func Validate(req Request) error {
	if err := ValidateBuildingID(req.BuildingID); err != nil {
		return err
	}
	if strings.TrimSpace(req.MeasureName) == "" {
		return fmt.Errorf("%w: measure_name is required", ErrInvalidRequest)
	}
	if len(req.Periods) == 0 {
		return ErrEmptyPeriodSet
	}
	if len(req.Periods) > MaxPeriods {
		return fmt.Errorf("%w: at most %d periods allowed, got %d", ErrInvalidRequest, MaxPeriods, len(req.Periods))
	}
	for i, p := range req.Periods {
		if err := checkPeriod(i, p); err != nil {
			return err
		}
	}
	return nil
}

// checkPeriod enforces the PeriodInput invariants. index is -1 for a lone period.
func checkPeriod(index int, p PeriodInput) error {
	fail := func(field, reason string) error {
		pe := &PeriodError{Index: index, Field: field, Reason: reason}
		if p.Period.Valid() {
			pe.Period = p.Period.String()
		}
		return pe
	}

	if !p.Period.Valid() {
		return fail("period", "must be business_hours, after_hours or weekend")
	}
	if len(p.Days) == 0 {
		return fail("days", "must list at least one day")
	}
	seen := make(map[string]bool, len(p.Days))
	for _, d := range p.Days {
		if !weekdays[d] {
			return fail("days", fmt.Sprintf("contains invalid day %q", d))
		}
		if seen[d] {
			return fail("days", fmt.Sprintf("lists %q more than once", d))
		}
		seen[d] = true
	}

	positive := []struct {
		name string
		v    float64
	}{
		{"baseline_electric_kwh", p.BaselineElectricKWh},
		{"baseline_gas_therms", p.BaselineGasTherms},
	}
	for _, f := range positive {
		if !finite(f.v) {
			return fail(f.name, "must be a finite number")
		}
		if f.v <= 0 {
			return fail(f.name, "must be greater than 0")
		}
	}

	nonNegative := []struct {
		name string
		v    float64
	}{
		{"current_electric_kwh", p.CurrentElectricKWh},
		{"current_gas_therms", p.CurrentGasTherms},
		{"electric_rate", p.ElectricRate},
		{"gas_rate", p.GasRate},
	}
	for _, f := range nonNegative {
		if !finite(f.v) {
			return fail(f.name, "must be a finite number")
		}
		if f.v < 0 {
			return fail(f.name, "must not be negative")
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
