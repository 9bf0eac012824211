package repository

import (
	"context"
	"sync"
	"time"

	"github.com/okian/replaymeta/internal/domain/model"
	"github.com/okian/replaymeta/internal/domain/standings"
)

type memoryEntry struct {
	match   model.MatchMetadata
	summary model.MatchSummary
}

// memoryStore keeps matches in insertion order.
type memoryStore struct {
	mu    sync.RWMutex
	byID  map[string]memoryEntry
	order []string
	opts  options
}

func newMemoryStore(o options) *memoryStore {
	return &memoryStore{byID: make(map[string]memoryEntry), opts: o}
}

func (s *memoryStore) Save(ctx context.Context, m model.MatchMetadata) (err error) {
	start := time.Now()
	defer func() { observe("save", start, err) }()
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[m.MatchID]; ok {
		return ErrDuplicate
	}
	s.byID[m.MatchID] = memoryEntry{match: m, summary: standings.Summarize(m, s.opts.now())}
	s.order = append(s.order, m.MatchID)
	return nil
}

func (s *memoryStore) Get(_ context.Context, matchID string) (model.MatchMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[matchID]
	if !ok {
		return model.MatchMetadata{}, ErrNotFound
	}
	return e.match, nil
}

func (s *memoryStore) List(_ context.Context, limit int) ([]model.MatchSummary, error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.MatchSummary, 0, min(limit, len(s.order)))
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.byID[s.order[i]].summary)
	}
	return out, nil
}

func (s *memoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID), nil
}

func (s *memoryStore) Close() error { return nil }
