// Package repository persists decoded matches and the ratings leaderboard.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/replaymeta/internal/domain/model"
	"github.com/okian/replaymeta/pkg/metrics"
)

// Drivers accepted by Open.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// MatchStore archives decoded matches by match id.
type MatchStore interface {
	// Save stores m. ErrDuplicate is returned when the id is already stored.
	Save(ctx context.Context, m model.MatchMetadata) error

	// Get returns the stored match or ErrNotFound.
	Get(ctx context.Context, matchID string) (model.MatchMetadata, error)

	// List returns up to limit summaries, newest first.
	List(ctx context.Context, limit int) ([]model.MatchSummary, error)

	// Count returns the number of stored matches.
	Count(ctx context.Context) (int, error)

	Close() error
}

// Open builds the MatchStore for driver. dsn is ignored by the memory driver.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (MatchStore, error) {
	o := newOptions(opts)
	switch driver {
	case "", DriverMemory:
		return newMemoryStore(o), nil
	case DriverSQLite:
		return openSQLite(ctx, dsn, o)
	case DriverPostgres:
		return openPostgres(ctx, dsn, o)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

// observe records latency and failures of one store operation.
func observe(op string, start time.Time, err error) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
	if err != nil {
		metrics.RecordStoreError(op)
	}
}
