package efficiency

// Calculate derives savings, costs, improvement percentages and the grade for
// one period. It is pure: the same input always yields the same result.
//
// The overall improvement is weighted by baseline cost:
//
//	overall = (electric_cost_savings + gas_cost_savings) /
//	          (baseline_kwh*electric_rate + baseline_therms*gas_rate) * 100
//
// When both rates are zero the blended baseline cost is zero, and the overall
// improvement falls back to the unweighted mean of the two media percentages.
func Calculate(in PeriodInput) (PeriodResult, error) {
	if err := checkPeriod(-1, in); err != nil {
		return PeriodResult{}, err
	}
	return calculate(in), nil
}

// calculate assumes in has already passed checkPeriod.
func calculate(in PeriodInput) PeriodResult {
	electricSavings := in.BaselineElectricKWh - in.CurrentElectricKWh
	gasSavings := in.BaselineGasTherms - in.CurrentGasTherms

	electricCostSavings := electricSavings * in.ElectricRate
	gasCostSavings := gasSavings * in.GasRate

	electricPct := (electricSavings / in.BaselineElectricKWh) * 100
	gasPct := (gasSavings / in.BaselineGasTherms) * 100

	baselineCost := in.BaselineElectricKWh*in.ElectricRate + in.BaselineGasTherms*in.GasRate
	var overallPct float64
	if baselineCost == 0 {
		overallPct = (electricPct + gasPct) / 2
	} else {
		overallPct = (electricCostSavings + gasCostSavings) / baselineCost * 100
	}

	in.Days = append([]string(nil), in.Days...)
	return PeriodResult{
		PeriodInput:                in,
		ElectricSavingsKWh:         electricSavings,
		GasSavingsTherms:           gasSavings,
		ElectricCostSavings:        electricCostSavings,
		GasCostSavings:             gasCostSavings,
		TotalCostSavings:           electricCostSavings + gasCostSavings,
		ElectricImprovementPercent: electricPct,
		GasImprovementPercent:      gasPct,
		OverallImprovementPercent:  overallPct,
		PerformanceGrade:           PerformanceGrade(overallPct),
	}
}
