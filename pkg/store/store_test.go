package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/codeGROOVE-dev/efftrack/pkg/efficiency"
)

const buildingA = "64f1a2b3c4d5e6f708192a3b"

func testRequest(periods ...efficiency.Period) efficiency.Request {
	req := efficiency.Request{BuildingID: buildingA, MeasureName: "Window film"}
	for _, p := range periods {
		req.Periods = append(req.Periods, efficiency.PeriodInput{
			Period:              p,
			TimeRange:           "00:00-23:59",
			Days:                []string{"Saturday"},
			CurrentElectricKWh:  900,
			BaselineElectricKWh: 1000,
			CurrentGasTherms:    45,
			BaselineGasTherms:   50,
			ElectricRate:        0.15,
			GasRate:             1.1,
		})
	}
	return req
}

func testRecord(t *testing.T, id string, at time.Time, periods ...efficiency.Period) efficiency.CalculationRecord {
	t.Helper()
	req := testRequest(periods...)
	ev, err := efficiency.Evaluate(req)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	return efficiency.NewRecord(id, req, ev, at)
}

// exerciseStore runs the behaviour every efficiency.Store must share.
func exerciseStore(t *testing.T, s efficiency.Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	older := testRecord(t, "11111111-1111-4111-8111-111111111111", base, efficiency.BusinessHours, efficiency.Weekend)
	newer := testRecord(t, "22222222-2222-4222-8222-222222222222", base.Add(time.Hour), efficiency.AfterHours)
	for _, rec := range []efficiency.CalculationRecord{older, newer} {
		if err := s.Insert(ctx, rec); err != nil {
			t.Fatalf("Insert(%s) error = %v", rec.ID, err)
		}
	}

	t.Run("newest first", func(t *testing.T) {
		recs, err := s.ByBuilding(ctx, buildingA)
		if err != nil {
			t.Fatalf("ByBuilding() error = %v", err)
		}
		if len(recs) != 2 {
			t.Fatalf("Expected 2 records, got %d", len(recs))
		}
		if recs[0].ID != newer.ID || recs[1].ID != older.ID {
			t.Errorf("Expected [%s %s], got [%s %s]", newer.ID, older.ID, recs[0].ID, recs[1].ID)
		}
		got := recs[1]
		if !got.CalculationTimestamp.Equal(older.CalculationTimestamp) || !got.CreatedAt.Equal(older.CreatedAt) {
			t.Errorf("Timestamps changed: %v / %v", got.CalculationTimestamp, got.CreatedAt)
		}
		if len(got.Periods) != 2 || got.Periods[1].Period != efficiency.Weekend {
			t.Errorf("Periods not preserved: %+v", got.Periods)
		}
		if got.Periods[0].PerformanceGrade != older.Periods[0].PerformanceGrade {
			t.Errorf("Grade changed: %s vs %s", got.Periods[0].PerformanceGrade, older.Periods[0].PerformanceGrade)
		}
		if got.Summary != older.Summary {
			t.Errorf("Summary changed: %+v vs %+v", got.Summary, older.Summary)
		}
	})

	t.Run("equal timestamps later insert first", func(t *testing.T) {
		const buildingB = "bbbbbbbbbbbbbbbbbbbbbbbb"
		at := base.Add(2 * time.Hour)
		first := testRecord(t, "ffffffff-ffff-4fff-8fff-ffffffffffff", at, efficiency.Weekend)
		second := testRecord(t, "00000000-0000-4000-8000-000000000000", at, efficiency.Weekend)
		third := testRecord(t, "88888888-8888-4888-8888-888888888888", at, efficiency.Weekend)
		for _, rec := range []efficiency.CalculationRecord{first, second, third} {
			rec.BuildingID = buildingB
			if err := s.Insert(ctx, rec); err != nil {
				t.Fatalf("Insert(%s) error = %v", rec.ID, err)
			}
		}

		recs, err := s.ByBuilding(ctx, buildingB)
		if err != nil {
			t.Fatalf("ByBuilding() error = %v", err)
		}
		want := []string{third.ID, second.ID, first.ID}
		if len(recs) != len(want) {
			t.Fatalf("Expected %d records, got %d", len(want), len(recs))
		}
		for i, id := range want {
			if recs[i].ID != id {
				t.Errorf("recs[%d] = %s, want %s", i, recs[i].ID, id)
			}
		}
	})

	t.Run("unknown building is empty", func(t *testing.T) {
		recs, err := s.ByBuilding(ctx, "ffffffffffffffffffffffff")
		if err != nil {
			t.Fatalf("ByBuilding() error = %v", err)
		}
		if len(recs) != 0 {
			t.Errorf("Expected no records, got %d", len(recs))
		}
	})

	t.Run("duplicate id rejected", func(t *testing.T) {
		err := s.Insert(ctx, older)
		if !errors.Is(err, ErrDuplicateID) {
			t.Errorf("Expected ErrDuplicateID, got %v", err)
		}
		if !errors.Is(err, efficiency.ErrPersistenceFailure) {
			t.Errorf("Expected ErrPersistenceFailure, got %v", err)
		}
	})

	t.Run("ping", func(t *testing.T) {
		if err := s.Ping(ctx); err != nil {
			t.Errorf("Ping() error = %v", err)
		}
	})
}

func TestMemory(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestMemoryIsolation(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	rec := testRecord(t, "a", time.Now(), efficiency.BusinessHours)
	if err := m.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	rec.Periods[0].Days[0] = "Monday"
	got, err := m.ByBuilding(ctx, buildingA)
	if err != nil {
		t.Fatalf("ByBuilding() error = %v", err)
	}
	if got[0].Periods[0].Days[0] != "Saturday" {
		t.Error("Store shares slices with the inserted record")
	}

	got[0].Periods[0].Days[0] = "Tuesday"
	again, err := m.ByBuilding(ctx, buildingA)
	if err != nil {
		t.Fatalf("ByBuilding() error = %v", err)
	}
	if again[0].Periods[0].Days[0] != "Saturday" {
		t.Error("Store shares slices with returned records")
	}
}

func TestMemoryConcurrentInserts(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Now()

	recs := make([]efficiency.CalculationRecord, 50)
	for i := range recs {
		recs[i] = testRecord(t, fmt.Sprintf("rec-%d", i), base.Add(time.Duration(i)*time.Second), efficiency.Weekend)
	}

	var wg sync.WaitGroup
	for _, rec := range recs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.Insert(ctx, rec); err != nil {
				t.Errorf("Insert() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if m.Len() != 50 {
		t.Errorf("Expected 50 records, got %d", m.Len())
	}
	got, err := m.ByBuilding(ctx, buildingA)
	if err != nil {
		t.Fatalf("ByBuilding() error = %v", err)
	}
	if got[0].ID != "rec-49" {
		t.Errorf("Expected newest rec-49 first, got %s", got[0].ID)
	}
}

func TestMemoryCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := NewMemory()
	if err := m.Insert(ctx, testRecord(t, "x", time.Now(), efficiency.Weekend)); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if m.Len() != 0 {
		t.Error("Cancelled insert left a record behind")
	}
}

func TestSQLite(t *testing.T) {
	s, err := OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	defer func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	}()
	exerciseStore(t, s)

	recs, err := s.ByBuildingPeriod(context.Background(), buildingA, efficiency.Weekend)
	if err != nil {
		t.Fatalf("ByBuildingPeriod() error = %v", err)
	}
	if len(recs) != 1 || recs[0].ID != "11111111-1111-4111-8111-111111111111" {
		t.Errorf("Expected only the weekend record, got %d records", len(recs))
	}
}

func TestSQLiteWithService(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLite(ctx, ":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	defer s.Close() //nolint:errcheck // test cleanup

	svc := efficiency.NewService(s, nil)
	for _, p := range []efficiency.Period{efficiency.BusinessHours, efficiency.AfterHours} {
		if _, err := svc.Calculate(ctx, testRequest(p)); err != nil {
			t.Fatalf("Calculate() error = %v", err)
		}
	}

	recs, err := svc.PeriodCalculations(ctx, buildingA, efficiency.AfterHours)
	if err != nil {
		t.Fatalf("PeriodCalculations() error = %v", err)
	}
	if len(recs) != 1 || recs[0].Periods[0].Period != efficiency.AfterHours {
		t.Errorf("Expected one after_hours record, got %+v", recs)
	}
	if _, err := svc.PeriodCalculations(ctx, buildingA, efficiency.Weekend); !errors.Is(err, efficiency.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for weekend, got %v", err)
	}
}

func TestDatastoreEntityOrder(t *testing.T) {
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	recs := []efficiency.CalculationRecord{
		testRecord(t, "ffffffff-ffff-4fff-8fff-ffffffffffff", at, efficiency.Weekend),
		testRecord(t, "00000000-0000-4000-8000-000000000000", at, efficiency.Weekend),
		testRecord(t, "11111111-1111-4111-8111-111111111111", at.Add(-time.Minute), efficiency.Weekend),
		testRecord(t, "88888888-8888-4888-8888-888888888888", at, efficiency.Weekend),
	}
	seqs := []int64{10, 20, 40, 30}

	ents := make([]calculationEntity, len(recs))
	for i, rec := range recs {
		payload, err := json.Marshal(rec)
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}
		ents[i] = calculationEntity{BuildingID: rec.BuildingID, Seq: seqs[i], Payload: string(payload)}
	}

	got, err := decodeEntities(ents)
	if err != nil {
		t.Fatalf("decodeEntities() error = %v", err)
	}
	want := []string{recs[3].ID, recs[1].ID, recs[0].ID, recs[2].ID}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("got[%d] = %s, want %s", i, got[i].ID, id)
		}
	}

	if _, err := decodeEntities([]calculationEntity{{Payload: "{"}}); err == nil {
		t.Error("Expected an error for a corrupt payload")
	}
}

func TestDatastoreNextSeq(t *testing.T) {
	var d Datastore
	d.seq.Store(time.Now().Add(time.Hour).UnixNano())

	prev := d.nextSeq()
	for range 1000 {
		next := d.nextSeq()
		if next <= prev {
			t.Fatalf("nextSeq() = %d after %d", next, prev)
		}
		prev = next
	}
}
