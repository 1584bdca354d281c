package efficiency

import "context"

// Store persists calculation records. The history is append-only: there is
// no way to update or delete a record through this interface.
//
// Implementations must be safe for concurrent use, must never hand out
// values that alias their internal state, and must wrap write failures with
// ErrPersistenceFailure.
type Store interface {
	// Insert stores a new record. Inserting an id that already exists is an error.
	Insert(ctx context.Context, rec CalculationRecord) error
	// ByBuilding returns every record for a building, newest first by
	// CalculationTimestamp; records with equal timestamps come back in
	// reverse insertion order. An empty result is not an error.
	ByBuilding(ctx context.Context, buildingID string) ([]CalculationRecord, error)
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
}

// PeriodStore is implemented by stores that can select records holding a
// period without loading the full history.
type PeriodStore interface {
	// ByBuildingPeriod returns, newest first, the building's records that include a result for p.
	ByBuildingPeriod(ctx context.Context, buildingID string, p Period) ([]CalculationRecord, error)
}
