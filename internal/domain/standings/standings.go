// Package standings folds decoded matches into ELO ratings.
package standings

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/okian/replaymeta/internal/domain/model"
)

// Default rating parameters.
const (
	DefaultKFactor        = 32
	DefaultStartingRating = 1000
	eloScale              = 400
	roundFactor           = 100
)

// Outcome is a normalized match result.
type Outcome int

const (
	OutcomeUnknown Outcome = iota
	OutcomeWin
	OutcomeLoss
	OutcomeDraw
)

// ParseOutcome maps the free-form result tag of a player line.
func ParseOutcome(result string) Outcome {
	switch strings.ToLower(strings.TrimSpace(result)) {
	case "win", "winner", "won":
		return OutcomeWin
	case "lose", "loss", "loser", "lost":
		return OutcomeLoss
	case "draw", "drawer", "tie":
		return OutcomeDraw
	default:
		return OutcomeUnknown
	}
}

func (o Outcome) actualScore() float64 {
	switch o {
	case OutcomeWin:
		return 1
	case OutcomeLoss:
		return 0
	default:
		return 0.5
	}
}

// Ratings reads current ratings. Missing players start at the starting rating.
type Ratings interface {
	Rating(ctx context.Context, player string) (float64, bool)
}

// Change is the rating movement of one player for one match.
type Change struct {
	Player  string
	Outcome Outcome
	Before  float64
	Delta   float64
	After   float64
}

// Calculator applies ELO updates.
type Calculator struct {
	kFactor  float64
	starting float64
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithKFactor overrides the K-factor.
func WithKFactor(k float64) Option {
	return func(c *Calculator) {
		if k > 0 {
			c.kFactor = k
		}
	}
}

// WithStartingRating overrides the rating assigned to unseen players.
func WithStartingRating(r float64) Option {
	return func(c *Calculator) {
		if r > 0 {
			c.starting = r
		}
	}
}

// NewCalculator builds a Calculator with defaults applied first.
func NewCalculator(opts ...Option) *Calculator {
	c := &Calculator{kFactor: DefaultKFactor, starting: DefaultStartingRating}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NormalizeName is the identity used for rating lookups.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ExpectedScore is the ELO win expectancy of self against opp.
func ExpectedScore(self, opp float64) float64 {
	return 1 / (1 + math.Pow(10, (opp-self)/eloScale))
}

// Delta returns the rounded rating change for one result.
func (c *Calculator) Delta(self, opp float64, o Outcome) float64 {
	change := c.kFactor * (o.actualScore() - ExpectedScore(self, opp))
	return round2(change)
}

// TeamRating averages ratings; an empty team rates at the starting rating.
func (c *Calculator) TeamRating(ratings []float64) float64 {
	if len(ratings) == 0 {
		return c.starting
	}
	sum := 0.0
	for _, r := range ratings {
		sum += r
	}
	return round2(sum / float64(len(ratings)))
}

// Apply computes rating changes for every rated player of m. Winners face the
// losers' mean rating and vice versa; drawers face the winners when any exist,
// otherwise the losers. Players with an unrecognized result are skipped.
// Matches with fewer than two players are not rated.
func (c *Calculator) Apply(ctx context.Context, m model.MatchMetadata, ratings Ratings) []Change {
	if len(m.Players) < 2 {
		return nil
	}
	current := make(map[string]float64, len(m.Players))
	groups := make(map[Outcome][]string)
	for _, p := range m.Players {
		o := ParseOutcome(p.Result)
		if o == OutcomeUnknown {
			continue
		}
		name := NormalizeName(p.Name)
		if name == "" {
			continue
		}
		if _, dup := current[name]; dup {
			continue
		}
		r, ok := ratings.Rating(ctx, name)
		if !ok {
			r = c.starting
		}
		current[name] = r
		groups[o] = append(groups[o], name)
	}

	teamOf := func(o Outcome) float64 {
		rs := make([]float64, 0, len(groups[o]))
		for _, n := range groups[o] {
			rs = append(rs, current[n])
		}
		return c.TeamRating(rs)
	}
	winners, losers, drawers := groups[OutcomeWin], groups[OutcomeLoss], groups[OutcomeDraw]
	winTeam, loseTeam := teamOf(OutcomeWin), teamOf(OutcomeLoss)

	var changes []Change
	add := func(name string, o Outcome, opp float64) {
		before := current[name]
		d := c.Delta(before, opp, o)
		changes = append(changes, Change{Player: name, Outcome: o, Before: before, Delta: d, After: round2(before + d)})
	}

	if len(winners) > 0 && len(losers) > 0 {
		for _, n := range winners {
			add(n, OutcomeWin, loseTeam)
		}
		for _, n := range losers {
			add(n, OutcomeLoss, winTeam)
		}
	}
	if len(drawers) > 0 {
		opp := loseTeam
		if len(winners) > 0 {
			opp = winTeam
		}
		for _, n := range drawers {
			add(n, OutcomeDraw, opp)
		}
	}
	return changes
}

// Summarize builds the compact view of m. Winners keep their payload
// spelling and order.
func Summarize(m model.MatchMetadata, at time.Time) model.MatchSummary {
	winners := []string{}
	for _, p := range m.Players {
		if ParseOutcome(p.Result) == OutcomeWin {
			winners = append(winners, p.Name)
		}
	}
	return model.MatchSummary{
		MatchID:         m.MatchID,
		MapName:         m.MapName,
		MapVersion:      m.MapVersion,
		DurationSeconds: m.DurationSeconds,
		PlayerCount:     m.PlayerCount,
		Winners:         winners,
		StoredAt:        at,
	}
}

func round2(v float64) float64 {
	return math.Round(v*roundFactor) / roundFactor
}
