// Package store provides efficiency.Store implementations: an in-memory store
// for tests and offline use, a gorm-backed SQL store (Postgres or SQLite), and
// a Cloud Datastore store.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"github.com/codeGROOVE-dev/efftrack/pkg/efficiency"
)

// ErrDuplicateID is returned when a record id is inserted twice.
var ErrDuplicateID = errors.New("record id already exists")

const (
	connectAttempts = 3
	connectDelay    = 2 * time.Second
)

// persistenceError classifies a backend failure as efficiency.ErrPersistenceFailure.
func persistenceError(op string, err error) error {
	if errors.Is(err, efficiency.ErrPersistenceFailure) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", efficiency.ErrPersistenceFailure, op, err)
}

// connect runs open until it succeeds, giving up after connectAttempts tries.
func connect(ctx context.Context, backend string, open func() error) error {
	logger := slog.Default().With("component", "store", "backend", backend)
	err := retry.Do(
		open,
		retry.Context(ctx),
		retry.Attempts(connectAttempts),
		retry.Delay(connectDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.WarnContext(ctx, "Connection attempt failed, retrying",
				"attempt", n+1, "max_attempts", connectAttempts, "error", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("connect to %s after %d attempts: %w", backend, connectAttempts, err)
	}
	logger.InfoContext(ctx, "Connected")
	return nil
}
