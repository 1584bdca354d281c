package efficiency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Evaluation is the result of running the calculation pipeline without persisting it.
type Evaluation struct {
	Periods []PeriodResult
	Summary BuildingSummary
}

// Evaluate validates req and computes every period and the building summary.
// Validation covers all periods before anything is computed. Period values are
// rounded for presentation and the summary is aggregated from the rounded values.
func Evaluate(req Request) (Evaluation, error) {
	if err := Validate(req); err != nil {
		return Evaluation{}, err
	}

	periods := make([]PeriodResult, len(req.Periods))
	for i, in := range req.Periods {
		periods[i] = calculate(in).Rounded()
	}

	summary, err := Aggregate(periods)
	if err != nil {
		return Evaluation{}, err
	}
	return Evaluation{Periods: periods, Summary: summary.rounded()}, nil
}

// Rollup is a building summary computed over the whole stored history.
type Rollup struct {
	BuildingID string          `json:"building_id"`
	Records    int             `json:"records"`
	Summary    BuildingSummary `json:"summary"`
}

// Service runs calculations and answers history queries against a Store.
// It holds no mutable state and is safe for concurrent use.
type Service struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// NewService creates a Service backed by store. A nil logger uses slog.Default().
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger.With("component", "efficiency"),
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
}

// Calculate evaluates req and persists the result as a new record.
// Nothing is stored when validation fails; a record is returned only after
// the insert succeeded.
func (s *Service) Calculate(ctx context.Context, req Request) (CalculationRecord, error) {
	ev, err := Evaluate(req)
	if err != nil {
		return CalculationRecord{}, err
	}
	if err := ctx.Err(); err != nil {
		return CalculationRecord{}, err
	}

	rec := NewRecord(s.newID(), req, ev, s.now())
	if err := s.store.Insert(ctx, rec.Clone()); err != nil {
		s.logger.ErrorContext(ctx, "[Calculate] Failed to store record",
			"record_id", rec.ID, "building_id", rec.BuildingID, "error", err)
		if errors.Is(err, ErrPersistenceFailure) {
			return CalculationRecord{}, err
		}
		return CalculationRecord{}, fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
	}

	s.logger.InfoContext(ctx, "[Calculate] Record stored",
		"record_id", rec.ID, "building_id", rec.BuildingID, "measure", rec.MeasureName,
		"periods", len(rec.Periods), "grade", rec.Summary.OverallPerformanceGrade)
	return rec, nil
}

// Calculations returns every record for a building, newest first.
// ErrNotFound is returned when the building has no history.
func (s *Service) Calculations(ctx context.Context, buildingID string) ([]CalculationRecord, error) {
	if err := ValidateBuildingID(buildingID); err != nil {
		return nil, err
	}
	recs, err := s.store.ByBuilding(ctx, buildingID)
	if err != nil {
		return nil, fmt.Errorf("load records for %s: %w", buildingID, err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: no calculations for building %s", ErrNotFound, buildingID)
	}
	return recs, nil
}

// PeriodCalculations returns, newest first, the records holding a result for
// period. Each returned record carries only that period's result.
func (s *Service) PeriodCalculations(ctx context.Context, buildingID string, period Period) ([]CalculationRecord, error) {
	if !period.Valid() {
		return nil, &PeriodError{Index: -1, Field: "period", Reason: "must be business_hours, after_hours or weekend"}
	}
	recs, err := s.periodCandidates(ctx, buildingID, period)
	if err != nil {
		return nil, err
	}
	var out []CalculationRecord
	for _, r := range recs {
		if r.HasPeriod(period) {
			out = append(out, r.OnlyPeriod(period))
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no %s calculations for building %s", ErrNotFound, period, buildingID)
	}
	return out, nil
}

func (s *Service) periodCandidates(ctx context.Context, buildingID string, period Period) ([]CalculationRecord, error) {
	ps, ok := s.store.(PeriodStore)
	if !ok {
		return s.Calculations(ctx, buildingID)
	}
	if err := ValidateBuildingID(buildingID); err != nil {
		return nil, err
	}
	recs, err := ps.ByBuildingPeriod(ctx, buildingID, period)
	if err != nil {
		return nil, fmt.Errorf("load %s records for %s: %w", period, buildingID, err)
	}
	return recs, nil
}

// Summary returns the most recent record for a building.
func (s *Service) Summary(ctx context.Context, buildingID string) (CalculationRecord, error) {
	recs, err := s.Calculations(ctx, buildingID)
	if err != nil {
		return CalculationRecord{}, err
	}
	return recs[0], nil
}

// BuildingRollup aggregates every period result of every stored record for a building.
func (s *Service) BuildingRollup(ctx context.Context, buildingID string) (Rollup, error) {
	recs, err := s.Calculations(ctx, buildingID)
	if err != nil {
		return Rollup{}, err
	}
	summary, err := AggregateRecords(recs)
	if err != nil {
		return Rollup{}, err
	}
	return Rollup{BuildingID: buildingID, Records: len(recs), Summary: summary}, nil
}

// Ping checks the backing store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
