package repository

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/okian/replaymeta/internal/domain/standings"
	"github.com/okian/replaymeta/internal/domain/types"
	"github.com/okian/replaymeta/pkg/metrics"
)

// Ratings are kept in hundredths so equal displayed ratings compare equal.
const ratingScale = 100

type centi int64

func toCenti(r float64) centi { return centi(math.Round(r * ratingScale)) }

func (c centi) float() float64 { return float64(c) / ratingScale }

// playerRecord is the per-player state next to its treap key.
type playerRecord struct {
	rating centi
	games  int
	wins   int
	losses int
	draws  int
}

// node is a treap node ordered by rating DESC, then player ASC. Priorities are
// random; size supports rank queries.
type node struct {
	player string
	rating centi
	prio   uint64
	left   *node
	right  *node
	size   int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// before reports whether (ar, ap) is listed ahead of (br, bp).
func before(ar centi, ap string, br centi, bp string) bool {
	if ar != br {
		return ar > br
	}
	return ap < bp
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, player string, rating centi) *node {
	if n == nil {
		return &node{player: player, rating: rating, prio: rand.Uint64(), size: 1}
	}
	if before(rating, player, n.rating, n.player) {
		n.left = insert(n.left, player, rating)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, player, rating)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func remove(n *node, player string, rating centi) *node {
	if n == nil {
		return nil
	}
	switch {
	case n.player == player && n.rating == rating:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = remove(n.right, player, rating)
		} else {
			n = rotateLeft(n)
			n.left = remove(n.left, player, rating)
		}
	case before(rating, player, n.rating, n.player):
		n.left = remove(n.left, player, rating)
	default:
		n.right = remove(n.right, player, rating)
	}
	fix(n)
	return n
}

// countAbove returns how many players are rated strictly higher than r.
func countAbove(n *node, r centi) int {
	count := 0
	for n != nil {
		if n.rating > r {
			count += 1 + nsize(n.left)
			n = n.right
		} else {
			n = n.left
		}
	}
	return count
}

// walk visits nodes in leaderboard order until visit returns false.
func walk(n *node, visit func(*node) bool) bool {
	if n == nil {
		return true
	}
	return walk(n.left, visit) && visit(n) && walk(n.right, visit)
}

// RatingStore is the in-memory ratings leaderboard. Players with equal
// ratings share a rank; the next distinct rating skips the tied positions.
type RatingStore struct {
	mu      sync.RWMutex
	root    *node
	players map[string]playerRecord
}

// NewRatingStore returns an empty leaderboard.
func NewRatingStore() *RatingStore {
	return &RatingStore{players: make(map[string]playerRecord)}
}

// Rating implements standings.Ratings.
func (s *RatingStore) Rating(_ context.Context, player string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.players[player]
	return rec.rating.float(), ok
}

// Apply stores the post-match ratings and tallies in one critical section.
func (s *RatingStore) Apply(ctx context.Context, changes []standings.Change) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	defer func() { metrics.RecordStoreLatency("ratings_apply", float64(time.Since(start).Microseconds())/1000) }()

	s.mu.Lock()
	for _, c := range changes {
		rec, ok := s.players[c.Player]
		if ok {
			s.root = remove(s.root, c.Player, rec.rating)
		}
		rec.rating = toCenti(c.After)
		rec.games++
		switch c.Outcome {
		case standings.OutcomeWin:
			rec.wins++
		case standings.OutcomeLoss:
			rec.losses++
		case standings.OutcomeDraw:
			rec.draws++
		}
		s.players[c.Player] = rec
		s.root = insert(s.root, c.Player, rec.rating)
	}
	count := len(s.players)
	s.mu.Unlock()

	metrics.UpdatePlayersRated(count)
	return nil
}

func (s *RatingStore) entry(player string, rec playerRecord, rank int) types.Entry {
	return types.Entry{
		Rank:   rank,
		Player: player,
		Rating: rec.rating.float(),
		Games:  rec.games,
		Wins:   rec.wins,
		Losses: rec.losses,
		Draws:  rec.draws,
	}
}

// Rank returns the leaderboard row of player in O(log n).
func (s *RatingStore) Rank(_ context.Context, player string) (types.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.players[player]
	if !ok {
		return types.Entry{}, ErrNotFound
	}
	return s.entry(player, rec, countAbove(s.root, rec.rating)+1), nil
}

// TopN returns the first n rows of the leaderboard.
func (s *RatingStore) TopN(_ context.Context, n int) ([]types.Entry, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Entry, 0, min(n, len(s.players)))
	walk(s.root, func(nd *node) bool {
		rank := len(out) + 1
		if last := len(out) - 1; last >= 0 && toCenti(out[last].Rating) == nd.rating {
			rank = out[last].Rank
		}
		out = append(out, s.entry(nd.player, s.players[nd.player], rank))
		return len(out) < n
	})
	return out, nil
}

// Count returns the number of rated players.
func (s *RatingStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.players)
}
