package efficiency

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Request asks for one measure to be evaluated for a building.
//
//nolint:govet // fieldalignment: API struct field order optimized for readability
type Request struct {
	BuildingID  string        `json:"building_id"`
	MeasureName string        `json:"measure_name"`
	Periods     []PeriodInput `json:"periods"`
}

// periodPayload mirrors PeriodInput with pointers so absent fields can be told apart from zeros.
type periodPayload struct {
	Period              *string  `json:"period"`
	TimeRange           *string  `json:"time_range"`
	Days                []string `json:"days"`
	CurrentElectricKWh  *float64 `json:"current_electric_kwh"`
	CurrentGasTherms    *float64 `json:"current_gas_therms"`
	BaselineElectricKWh *float64 `json:"baseline_electric_kwh"`
	BaselineGasTherms   *float64 `json:"baseline_gas_therms"`
	ElectricRate        *float64 `json:"electric_rate"`
	GasRate             *float64 `json:"gas_rate"`
}

type requestPayload struct {
	BuildingID  string          `json:"building_id"`
	MeasureName string          `json:"measure_name"`
	Periods     []periodPayload `json:"periods"`
}

// DecodeRequest reads a JSON calculation request. Missing period fields are
// reported as a PeriodError naming the field; unknown fields are rejected.
// The result still needs Validate.
func DecodeRequest(r io.Reader) (Request, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var payload requestPayload
	if err := dec.Decode(&payload); err != nil {
		return Request{}, fmt.Errorf("%w: invalid JSON: %w", ErrInvalidRequest, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return Request{}, fmt.Errorf("%w: unexpected data after JSON body", ErrInvalidRequest)
	}

	req := Request{
		BuildingID:  payload.BuildingID,
		MeasureName: payload.MeasureName,
		Periods:     make([]PeriodInput, 0, len(payload.Periods)),
	}
	for i, p := range payload.Periods {
		in, err := p.input(i)
		if err != nil {
			return Request{}, err
		}
		req.Periods = append(req.Periods, in)
	}
	return req, nil
}

func (p periodPayload) input(index int) (PeriodInput, error) {
	var name string
	if p.Period != nil {
		name = *p.Period
	}
	missing := func(field string) error {
		return &PeriodError{Index: index, Period: name, Field: field, Reason: "is required"}
	}

	if p.Period == nil {
		return PeriodInput{}, missing("period")
	}
	period, err := ParsePeriod(*p.Period)
	if err != nil {
		return PeriodInput{}, &PeriodError{Index: index, Field: "period", Reason: err.Error()}
	}
	if p.TimeRange == nil {
		return PeriodInput{}, missing("time_range")
	}
	if p.Days == nil {
		return PeriodInput{}, missing("days")
	}

	numbers := []struct {
		name string
		v    *float64
	}{
		{"current_electric_kwh", p.CurrentElectricKWh},
		{"current_gas_therms", p.CurrentGasTherms},
		{"baseline_electric_kwh", p.BaselineElectricKWh},
		{"baseline_gas_therms", p.BaselineGasTherms},
		{"electric_rate", p.ElectricRate},
		{"gas_rate", p.GasRate},
	}
	for _, n := range numbers {
		if n.v == nil {
			return PeriodInput{}, missing(n.name)
		}
	}

	return PeriodInput{
		Period:              period,
		TimeRange:           *p.TimeRange,
		Days:                p.Days,
		CurrentElectricKWh:  *p.CurrentElectricKWh,
		CurrentGasTherms:    *p.CurrentGasTherms,
		BaselineElectricKWh: *p.BaselineElectricKWh,
		BaselineGasTherms:   *p.BaselineGasTherms,
		ElectricRate:        *p.ElectricRate,
		GasRate:             *p.GasRate,
	}, nil
}
