package efficiency

import "github.com/shopspring/decimal"

// presentationPlaces is the number of decimals kept on derived values in records.
const presentationPlaces = 2

// round2 rounds half away from zero to two decimals. Non-finite values pass through.
func round2(v float64) float64 {
	if !finite(v) {
		return v
	}
	return decimal.NewFromFloat(v).Round(presentationPlaces).InexactFloat64()
}

// Rounded returns r with every derived value rounded for presentation.
// Inputs and the grade are left untouched; the grade was decided on the unrounded value.
func (r PeriodResult) Rounded() PeriodResult {
	r = r.clone()
	r.ElectricSavingsKWh = round2(r.ElectricSavingsKWh)
	r.GasSavingsTherms = round2(r.GasSavingsTherms)
	r.ElectricCostSavings = round2(r.ElectricCostSavings)
	r.GasCostSavings = round2(r.GasCostSavings)
	r.TotalCostSavings = round2(r.TotalCostSavings)
	r.ElectricImprovementPercent = round2(r.ElectricImprovementPercent)
	r.GasImprovementPercent = round2(r.GasImprovementPercent)
	r.OverallImprovementPercent = round2(r.OverallImprovementPercent)
	return r
}

func (s BuildingSummary) rounded() BuildingSummary {
	s.TotalElectricSavingsKWh = round2(s.TotalElectricSavingsKWh)
	s.TotalGasSavingsTherms = round2(s.TotalGasSavingsTherms)
	s.TotalCostSavings = round2(s.TotalCostSavings)
	s.AverageImprovementPercent = round2(s.AverageImprovementPercent)
	return s
}
