package efficiency

import (
	"errors"
	"testing"
)

func resultWith(p Period, pct float64) PeriodResult {
	return PeriodResult{
		PeriodInput:               PeriodInput{Period: p},
		ElectricSavingsKWh:        100,
		GasSavingsTherms:          10,
		TotalCostSavings:          25,
		OverallImprovementPercent: pct,
		PerformanceGrade:          PerformanceGrade(pct),
	}
}

func TestAggregate(t *testing.T) {
	results := []PeriodResult{
		resultWith(BusinessHours, 10),
		resultWith(AfterHours, 20),
		resultWith(Weekend, 0),
	}

	s, err := Aggregate(results)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if s.AverageImprovementPercent != 10 {
		t.Errorf("Expected average 10, got %.4f", s.AverageImprovementPercent)
	}
	if s.BestPerformingPeriod != AfterHours {
		t.Errorf("Expected best after_hours, got %s", s.BestPerformingPeriod)
	}
	if s.WorstPerformingPeriod != Weekend {
		t.Errorf("Expected worst weekend, got %s", s.WorstPerformingPeriod)
	}
	if s.OverallPerformanceGrade != GradeBPlus {
		t.Errorf("Expected grade B+, got %s", s.OverallPerformanceGrade)
	}
	if s.TotalElectricSavingsKWh != 300 || s.TotalGasSavingsTherms != 30 || s.TotalCostSavings != 75 {
		t.Errorf("Unexpected totals: %+v", s)
	}
}

func TestAggregateTieBreak(t *testing.T) {
	results := []PeriodResult{
		resultWith(Weekend, 12),
		resultWith(BusinessHours, 18),
		resultWith(AfterHours, 18),
		resultWith(BusinessHours, 12),
	}
	for range 50 {
		s, err := Aggregate(results)
		if err != nil {
			t.Fatalf("Aggregate() error = %v", err)
		}
		if s.BestPerformingPeriod != BusinessHours {
			t.Fatalf("Expected first maximum (business_hours), got %s", s.BestPerformingPeriod)
		}
		if s.WorstPerformingPeriod != Weekend {
			t.Fatalf("Expected first minimum (weekend), got %s", s.WorstPerformingPeriod)
		}
	}
}

func TestAggregateSinglePeriod(t *testing.T) {
	s, err := Aggregate([]PeriodResult{resultWith(Weekend, -3)})
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if s.BestPerformingPeriod != Weekend || s.WorstPerformingPeriod != Weekend {
		t.Errorf("Single period must be both best and worst, got %+v", s)
	}
	if s.OverallPerformanceGrade != GradeD {
		t.Errorf("Expected grade D, got %s", s.OverallPerformanceGrade)
	}
}

func TestAggregateEmpty(t *testing.T) {
	if _, err := Aggregate(nil); !errors.Is(err, ErrEmptyPeriodSet) {
		t.Errorf("Expected ErrEmptyPeriodSet, got %v", err)
	}
}

func TestAggregateRecordsOldestFirst(t *testing.T) {
	newer := CalculationRecord{Periods: []PeriodResult{resultWith(BusinessHours, 30)}}
	older := CalculationRecord{Periods: []PeriodResult{resultWith(Weekend, 30), resultWith(AfterHours, 0)}}

	s, err := AggregateRecords([]CalculationRecord{newer, older})
	if err != nil {
		t.Fatalf("AggregateRecords() error = %v", err)
	}
	// Tie on 30%: the older record's weekend result comes first.
	if s.BestPerformingPeriod != Weekend {
		t.Errorf("Expected best weekend, got %s", s.BestPerformingPeriod)
	}
	if s.AverageImprovementPercent != 20 {
		t.Errorf("Expected average 20, got %.4f", s.AverageImprovementPercent)
	}
	if s.OverallPerformanceGrade != GradeAPlus {
		t.Errorf("Expected grade A+, got %s", s.OverallPerformanceGrade)
	}
}

func TestRound2(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{13.461538, 13.46},
		{21.951219, 21.95},
		{2.675, 2.68},
		{-2.675, -2.68},
		{0.005, 0.01},
		{-0.005, -0.01},
		{7000, 7000},
	}
	for _, tt := range tests {
		if got := round2(tt.in); got != tt.want {
			t.Errorf("round2(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
