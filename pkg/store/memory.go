package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/codeGROOVE-dev/efftrack/pkg/efficiency"
)

// Memory keeps records in process memory. Values are deep-copied in both
// directions, so callers can never modify stored history.
type Memory struct {
	byBuilding map[string][]efficiency.CalculationRecord
	ids        map[string]bool
	mu         sync.RWMutex
}

var _ efficiency.Store = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		byBuilding: make(map[string][]efficiency.CalculationRecord),
		ids:        make(map[string]bool),
	}
}

// Insert appends rec to the building's history.
func (m *Memory) Insert(ctx context.Context, rec efficiency.CalculationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ids[rec.ID] {
		return persistenceError("insert", fmt.Errorf("%w: %s", ErrDuplicateID, rec.ID))
	}
	m.ids[rec.ID] = true
	m.byBuilding[rec.BuildingID] = append(m.byBuilding[rec.BuildingID], rec.Clone())
	return nil
}

// ByBuilding returns the building's records, newest first.
func (m *Memory) ByBuilding(ctx context.Context, buildingID string) ([]efficiency.CalculationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	stored := m.byBuilding[buildingID]
	out := make([]efficiency.CalculationRecord, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		out = append(out, stored[i].Clone())
	}
	m.mu.RUnlock()

	// Later inserts win ties.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CalculationTimestamp.After(out[j].CalculationTimestamp)
	})
	return out, nil
}

// Ping always succeeds.
func (*Memory) Ping(context.Context) error {
	return nil
}

// Len returns the number of stored records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids)
}
