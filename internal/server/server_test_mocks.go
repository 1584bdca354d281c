package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/codeGROOVE-dev/efftrack/pkg/efficiency"
	"github.com/codeGROOVE-dev/efftrack/pkg/store"
)

const testBuildingID = "64f1a2b3c4d5e6f708192a3b"

// brokenStore fails every operation, as an unreachable database would.
type brokenStore struct{}

var errStoreDown = errors.New("connection refused")

func (brokenStore) Insert(context.Context, efficiency.CalculationRecord) error {
	return fmt.Errorf("%w: insert: %w", efficiency.ErrPersistenceFailure, errStoreDown)
}

func (brokenStore) ByBuilding(context.Context, string) ([]efficiency.CalculationRecord, error) {
	return nil, fmt.Errorf("%w: query: %w", efficiency.ErrPersistenceFailure, errStoreDown)
}

func (brokenStore) Ping(context.Context) error {
	return errStoreDown
}

// newTestServer returns a server over a fresh in-memory store.
func newTestServer() (*Server, *store.Memory) {
	mem := store.NewMemory()
	return newTestServerWithStore(mem), mem
}

func newTestServerWithStore(st efficiency.Store) *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(efficiency.NewService(st, logger))
}

// calculateBody builds a calculate request body for the given periods.
func calculateBody(buildingID string, periods ...string) string {
	body := fmt.Sprintf(`{"building_id": %q, "measure_name": "LED retrofit", "periods": [`, buildingID)
	for i, p := range periods {
		if i > 0 {
			body += ","
		}
		body += fmt.Sprintf(`{
			"period": %q,
			"time_range": "08:00-18:00",
			"days": ["Monday", "Tuesday", "Wednesday", "Thursday", "Friday"],
			"current_electric_kwh": 45000,
			"current_gas_therms": 3200,
			"baseline_electric_kwh": 52000,
			"baseline_gas_therms": 4100,
			"electric_rate": 0.12,
			"gas_rate": 0.95
		}`, p)
	}
	return body + "]}"
}

// panicStore panics on reads to exercise the recovery handler.
type panicStore struct{ brokenStore }

func (panicStore) ByBuilding(context.Context, string) ([]efficiency.CalculationRecord, error) {
	panic("store exploded")
}
