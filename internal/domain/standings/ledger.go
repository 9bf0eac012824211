package standings

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/replaymeta/internal/domain/model"
)

// Store reads and persists ratings.
type Store interface {
	Ratings
	Apply(ctx context.Context, changes []Change) error
}

// Ledger serializes rating updates so concurrent matches sharing a player
// read each other's results.
type Ledger struct {
	mu    sync.Mutex
	calc  *Calculator
	store Store
}

// NewLedger binds a calculator to a store.
func NewLedger(calc *Calculator, store Store) *Ledger {
	return &Ledger{calc: calc, store: store}
}

// Record rates m and persists the changes.
func (l *Ledger) Record(ctx context.Context, m model.MatchMetadata) ([]Change, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	changes := l.calc.Apply(ctx, m, l.store)
	if len(changes) == 0 {
		return nil, nil
	}
	if err := l.store.Apply(ctx, changes); err != nil {
		return nil, fmt.Errorf("apply ratings for %s: %w", m.MatchID, err)
	}
	return changes, nil
}
