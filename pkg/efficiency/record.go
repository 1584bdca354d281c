package efficiency

import "time"

// CalculationRecord is one persisted evaluation of a measure. Records are
// values: once stored they are never modified, and every calculation creates
// a new one.
//
//nolint:govet // fieldalignment: API struct field order optimized for readability
type CalculationRecord struct {
	ID                   string          `json:"_id"`
	BuildingID           string          `json:"building_id"`
	MeasureName          string          `json:"measure_name"`
	CalculationTimestamp time.Time       `json:"calculation_timestamp"`
	Periods              []PeriodResult  `json:"periods"`
	Summary              BuildingSummary `json:"summary"`
	CreatedAt            time.Time       `json:"created_at"`
}

// NewRecord assembles a record from an evaluation. The timestamp is stored in UTC
// and doubles as the creation time.
func NewRecord(id string, req Request, ev Evaluation, at time.Time) CalculationRecord {
	at = at.UTC()
	rec := CalculationRecord{
		ID:                   id,
		BuildingID:           req.BuildingID,
		MeasureName:          req.MeasureName,
		CalculationTimestamp: at,
		Summary:              ev.Summary,
		CreatedAt:            at,
	}
	rec.Periods = make([]PeriodResult, len(ev.Periods))
	for i, p := range ev.Periods {
		rec.Periods[i] = p.clone()
	}
	return rec
}

// Clone returns a deep copy of r.
func (r CalculationRecord) Clone() CalculationRecord {
	periods := make([]PeriodResult, len(r.Periods))
	for i, p := range r.Periods {
		periods[i] = p.clone()
	}
	r.Periods = periods
	return r
}

// HasPeriod reports whether r contains a result for p.
func (r CalculationRecord) HasPeriod(p Period) bool {
	for i := range r.Periods {
		if r.Periods[i].Period == p {
			return true
		}
	}
	return false
}

// OnlyPeriod returns a copy of r whose Periods holds only the results for p.
// The summary is left as computed over the full record.
func (r CalculationRecord) OnlyPeriod(p Period) CalculationRecord {
	out := r
	out.Periods = nil
	for _, pr := range r.Periods {
		if pr.Period == p {
			out.Periods = append(out.Periods, pr.clone())
		}
	}
	return out
}
