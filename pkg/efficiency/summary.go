package efficiency

// BuildingSummary rolls a set of period results up to the building level.
//
//nolint:govet // fieldalignment: API struct field order optimized for readability
type BuildingSummary struct {
	TotalElectricSavingsKWh   float64 `json:"total_electric_savings_kwh"`
	TotalGasSavingsTherms     float64 `json:"total_gas_savings_therms"`
	TotalCostSavings          float64 `json:"total_cost_savings"`
	AverageImprovementPercent float64 `json:"average_efficiency_improvement_percent"`
	OverallPerformanceGrade   Grade   `json:"overall_performance_grade"`
	BestPerformingPeriod      Period  `json:"best_performing_period"`
	WorstPerformingPeriod     Period  `json:"worst_performing_period"`
}

// Aggregate combines period results into a BuildingSummary.
//
// Totals are plain sums. The average is the unweighted mean of each period's
// overall improvement: every period counts once regardless of its size.
// Best and worst are the periods with the highest and lowest overall
// improvement; on ties the earliest period in input order wins.
func Aggregate(results []PeriodResult) (BuildingSummary, error) {
	if len(results) == 0 {
		return BuildingSummary{}, ErrEmptyPeriodSet
	}

	var s BuildingSummary
	var sumPct float64
	best, worst := 0, 0
	for i := range results {
		r := &results[i]
		s.TotalElectricSavingsKWh += r.ElectricSavingsKWh
		s.TotalGasSavingsTherms += r.GasSavingsTherms
		s.TotalCostSavings += r.TotalCostSavings
		sumPct += r.OverallImprovementPercent

		// Strict comparisons keep the first extreme.
		if r.OverallImprovementPercent > results[best].OverallImprovementPercent {
			best = i
		}
		if r.OverallImprovementPercent < results[worst].OverallImprovementPercent {
			worst = i
		}
	}

	s.AverageImprovementPercent = sumPct / float64(len(results))
	s.OverallPerformanceGrade = PerformanceGrade(s.AverageImprovementPercent)
	s.BestPerformingPeriod = results[best].Period
	s.WorstPerformingPeriod = results[worst].Period
	return s, nil
}

// AggregateRecords aggregates every period result across records, oldest record first.
// Records are expected newest first, as stores return them.
func AggregateRecords(records []CalculationRecord) (BuildingSummary, error) {
	var all []PeriodResult
	for i := len(records) - 1; i >= 0; i-- {
		all = append(all, records[i].Periods...)
	}
	s, err := Aggregate(all)
	if err != nil {
		return BuildingSummary{}, err
	}
	return s.rounded(), nil
}
