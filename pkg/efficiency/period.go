// Package efficiency calculates building energy-efficiency improvements.
// Raw baseline and current consumption per operational period are turned into
// savings, cost impact, improvement percentages and letter grades, and then
// rolled up into a building-level summary.
package efficiency

import (
	"fmt"
	"time"
)

// Period identifies an operational time window with its own baseline and rates.
// The zero value is not a valid period.
type Period uint8

// Operational periods.
const (
	BusinessHours Period = iota + 1
	AfterHours
	Weekend
)

var periodNames = [...]string{
	BusinessHours: "business_hours",
	AfterHours:    "after_hours",
	Weekend:       "weekend",
}

// Periods returns every defined period in display order.
func Periods() []Period {
	return []Period{BusinessHours, AfterHours, Weekend}
}

// ParsePeriod parses the wire name of a period.
func ParsePeriod(s string) (Period, error) {
	for _, p := range Periods() {
		if periodNames[p] == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown period %q (must be business_hours, after_hours or weekend)", s)
}

// Valid reports whether p is one of the defined periods.
func (p Period) Valid() bool {
	switch p {
	case BusinessHours, AfterHours, Weekend:
		return true
	default:
		return false
	}
}

func (p Period) String() string {
	if !p.Valid() {
		return fmt.Sprintf("Period(%d)", uint8(p))
	}
	return periodNames[p]
}

// MarshalText implements encoding.TextMarshaler.
func (p Period) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid period %d", uint8(p))
	}
	return []byte(periodNames[p]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Period) UnmarshalText(text []byte) error {
	parsed, err := ParsePeriod(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// weekdays holds the accepted day names ("Monday" ... "Sunday").
var weekdays = func() map[string]bool {
	m := make(map[string]bool, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		m[d.String()] = true
	}
	return m
}()

// PeriodInput holds one operational window's raw consumption and rates.
//
//nolint:govet // fieldalignment: API struct field order optimized for readability
type PeriodInput struct {
	Period              Period   `json:"period"`
	TimeRange           string   `json:"time_range"` // display only, e.g. "08:00-18:00"
	Days                []string `json:"days"`
	CurrentElectricKWh  float64  `json:"current_electric_kwh"`
	CurrentGasTherms    float64  `json:"current_gas_therms"`
	BaselineElectricKWh float64  `json:"baseline_electric_kwh"`
	BaselineGasTherms   float64  `json:"baseline_gas_therms"`
	ElectricRate        float64  `json:"electric_rate"` // currency per kWh
	GasRate             float64  `json:"gas_rate"`      // currency per therm
}

// PeriodResult is a PeriodInput plus every derived value.
// Savings and percentages are negative when consumption increased.
//
//nolint:govet // fieldalignment: API struct field order optimized for readability
type PeriodResult struct {
	PeriodInput

	ElectricSavingsKWh float64 `json:"electric_savings_kwh"`
	GasSavingsTherms   float64 `json:"gas_savings_therms"`

	ElectricCostSavings float64 `json:"electric_cost_savings"`
	GasCostSavings      float64 `json:"gas_cost_savings"`
	TotalCostSavings    float64 `json:"total_cost_savings"`

	ElectricImprovementPercent float64 `json:"electric_efficiency_improvement_percent"`
	GasImprovementPercent      float64 `json:"gas_efficiency_improvement_percent"`
	OverallImprovementPercent  float64 `json:"overall_efficiency_improvement_percent"`

	PerformanceGrade Grade `json:"performance_grade"`
}

// clone returns a copy that shares no slices with r.
func (r PeriodResult) clone() PeriodResult {
	r.Days = append([]string(nil), r.Days...)
	return r
}
