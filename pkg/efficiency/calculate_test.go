package efficiency

import (
	"errors"
	"math"
	"testing"
)

func approx(got, want float64) bool {
	return math.Abs(got-want) < 0.005
}

func officeBusinessHours() PeriodInput {
	return PeriodInput{
		Period:              BusinessHours,
		TimeRange:           "08:00-18:00",
		Days:                []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"},
		CurrentElectricKWh:  45000,
		BaselineElectricKWh: 52000,
		CurrentGasTherms:    3200,
		BaselineGasTherms:   4100,
		ElectricRate:        0.12,
		GasRate:             0.95,
	}
}

func TestCalculateOfficeExample(t *testing.T) {
	res, err := Calculate(officeBusinessHours())
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}

	if res.ElectricSavingsKWh != 7000 {
		t.Errorf("Expected 7000 kWh electric savings, got %.2f", res.ElectricSavingsKWh)
	}
	if res.GasSavingsTherms != 900 {
		t.Errorf("Expected 900 therms gas savings, got %.2f", res.GasSavingsTherms)
	}
	if !approx(res.ElectricCostSavings, 840) {
		t.Errorf("Expected $840 electric cost savings, got $%.4f", res.ElectricCostSavings)
	}
	if !approx(res.GasCostSavings, 855) {
		t.Errorf("Expected $855 gas cost savings, got $%.4f", res.GasCostSavings)
	}
	if !approx(res.TotalCostSavings, 1695) {
		t.Errorf("Expected $1695 total cost savings, got $%.4f", res.TotalCostSavings)
	}
	if !approx(res.ElectricImprovementPercent, 13.46) {
		t.Errorf("Expected 13.46%% electric improvement, got %.4f%%", res.ElectricImprovementPercent)
	}
	if !approx(res.GasImprovementPercent, 21.95) {
		t.Errorf("Expected 21.95%% gas improvement, got %.4f%%", res.GasImprovementPercent)
	}

	// 1695 / (6240 + 3895) * 100
	if !approx(res.OverallImprovementPercent, 16.72) {
		t.Errorf("Expected 16.72%% overall improvement, got %.4f%%", res.OverallImprovementPercent)
	}
	if res.PerformanceGrade != GradeA {
		t.Errorf("Expected grade A, got %s", res.PerformanceGrade)
	}
}

func TestCalculateZeroSavings(t *testing.T) {
	in := officeBusinessHours()
	in.CurrentElectricKWh = in.BaselineElectricKWh
	in.CurrentGasTherms = in.BaselineGasTherms

	res, err := Calculate(in)
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}
	if res.ElectricSavingsKWh != 0 || res.GasSavingsTherms != 0 || res.TotalCostSavings != 0 {
		t.Errorf("Expected zero savings, got %+v", res)
	}
	if res.OverallImprovementPercent != 0 {
		t.Errorf("Expected 0%% overall improvement, got %.4f%%", res.OverallImprovementPercent)
	}
	if res.PerformanceGrade != GradeC {
		t.Errorf("Expected grade C, got %s", res.PerformanceGrade)
	}
}

func TestCalculateIncreasedConsumption(t *testing.T) {
	in := officeBusinessHours()
	in.CurrentElectricKWh = 60000
	in.CurrentGasTherms = 4500

	res, err := Calculate(in)
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}
	if res.ElectricSavingsKWh != -8000 {
		t.Errorf("Expected -8000 kWh electric savings, got %.2f", res.ElectricSavingsKWh)
	}
	if res.GasSavingsTherms != -400 {
		t.Errorf("Expected -400 therms gas savings, got %.2f", res.GasSavingsTherms)
	}
	if res.TotalCostSavings >= 0 {
		t.Errorf("Expected negative cost savings, got %.2f", res.TotalCostSavings)
	}
	if res.OverallImprovementPercent >= 0 {
		t.Errorf("Expected negative overall improvement, got %.4f", res.OverallImprovementPercent)
	}
	if res.PerformanceGrade != GradeD {
		t.Errorf("Expected grade D, got %s", res.PerformanceGrade)
	}
}

func TestCalculateZeroRatesFallsBackToMean(t *testing.T) {
	in := officeBusinessHours()
	in.ElectricRate = 0
	in.GasRate = 0

	res, err := Calculate(in)
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}
	want := (res.ElectricImprovementPercent + res.GasImprovementPercent) / 2
	if res.OverallImprovementPercent != want {
		t.Errorf("Expected overall %.4f (mean of media), got %.4f", want, res.OverallImprovementPercent)
	}
	if math.IsNaN(res.OverallImprovementPercent) {
		t.Error("Overall improvement must not be NaN")
	}
}

func TestCalculateRejectsZeroBaseline(t *testing.T) {
	tests := []struct {
		name  string
		field string
		edit  func(*PeriodInput)
	}{
		{"zero electric baseline", "baseline_electric_kwh", func(p *PeriodInput) { p.BaselineElectricKWh = 0 }},
		{"zero gas baseline", "baseline_gas_therms", func(p *PeriodInput) { p.BaselineGasTherms = 0 }},
		{"negative electric baseline", "baseline_electric_kwh", func(p *PeriodInput) { p.BaselineElectricKWh = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := officeBusinessHours()
			tt.edit(&in)
			_, err := Calculate(in)
			if !errors.Is(err, ErrInvalidPeriodData) {
				t.Fatalf("Expected ErrInvalidPeriodData, got %v", err)
			}
			var pe *PeriodError
			if !errors.As(err, &pe) {
				t.Fatalf("Expected *PeriodError, got %T", err)
			}
			if pe.Field != tt.field {
				t.Errorf("Expected field %q, got %q", tt.field, pe.Field)
			}
		})
	}
}

func TestCalculateDoesNotAliasDays(t *testing.T) {
	in := officeBusinessHours()
	res, err := Calculate(in)
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}
	in.Days[0] = "Sunday"
	if res.Days[0] != "Monday" {
		t.Errorf("Result days changed with input: %v", res.Days)
	}
}
