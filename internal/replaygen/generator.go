// Package replaygen produces synthetic matches and drives them against a
// running server.
package replaygen

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"

	"github.com/google/uuid"

	"github.com/okian/replaymeta/internal/domain/model"
	"github.com/okian/replaymeta/internal/domain/payload"
)

const (
	defaultPlayers  = 6
	defaultRoster   = 40
	defaultSchema   = 4
	maxSlots        = 12
	itemsPerPlayer  = 6
	minDurationSecs = 300
	maxDurationSecs = 3600
)

var (
	races     = []string{"troll", "gnoll", "ogre", "murloc"}
	classes   = []string{"hunter", "mage", "priest", "thief", "scout", "gatherer", "beastmaster"}
	mapNames  = []string{"Island Troll Tribes"}
	mapBuilds = []string{"3.28", "3.29b", "3.30a"}
)

// ErrInvalidConfig is returned for unusable generator settings.
var ErrInvalidConfig = errors.New("invalid generator config")

// Config controls the shape of generated matches.
type Config struct {
	Matches       int
	Players       int     // per match, 2..12
	Roster        int     // distinct player names to draw from
	SchemaVersion int     // 1..4
	DrawRate      float64 // share of matches that end in a draw
	Seed          uint64
}

func (c *Config) withDefaults() {
	if c.Players == 0 {
		c.Players = defaultPlayers
	}
	if c.Roster == 0 {
		c.Roster = defaultRoster
	}
	if c.SchemaVersion == 0 {
		c.SchemaVersion = defaultSchema
	}
}

// Validate reports whether the config can produce decodable matches.
func (c Config) Validate() error {
	switch {
	case c.Matches < 0:
		return fmt.Errorf("%w: matches must not be negative", ErrInvalidConfig)
	case c.Players < 2 || c.Players > maxSlots:
		return fmt.Errorf("%w: players must be between 2 and %d", ErrInvalidConfig, maxSlots)
	case c.Roster < c.Players:
		return fmt.Errorf("%w: roster smaller than players per match", ErrInvalidConfig)
	case c.SchemaVersion < 1 || c.SchemaVersion > 4:
		return fmt.Errorf("%w: schema version must be between 1 and 4", ErrInvalidConfig)
	case c.DrawRate < 0 || c.DrawRate > 1:
		return fmt.Errorf("%w: draw rate must be within [0,1]", ErrInvalidConfig)
	}
	return nil
}

// Generator produces matches from a seeded source. Equal configs yield equal
// sequences.
type Generator struct {
	cfg    Config
	rng    *rand.Rand
	roster []string
}

// NewGenerator validates cfg and returns a generator.
func NewGenerator(cfg Config) (*Generator, error) {
	cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	g := &Generator{cfg: cfg, rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))}
	g.roster = make([]string, cfg.Roster)
	for i := range g.roster {
		g.roster[i] = "Player" + strconv.Itoa(i+1)
	}
	return g, nil
}

// rngReader feeds uuid generation from the seeded source.
type rngReader struct{ rng *rand.Rand }

func (r rngReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(r.rng.UintN(256))
	}
	return len(p), nil
}

// Next returns one synthetic match.
func (g *Generator) Next() model.MatchMetadata {
	id, err := uuid.NewRandomFromReader(rngReader{g.rng})
	if err != nil {
		// rngReader never fails.
		panic(err)
	}
	duration := float64(minDurationSecs + g.rng.IntN(maxDurationSecs-minDurationSecs))
	start := float64(g.rng.IntN(60))
	m := model.MatchMetadata{
		SchemaVersion:   g.cfg.SchemaVersion,
		MapName:         mapNames[g.rng.IntN(len(mapNames))],
		MapVersion:      mapBuilds[g.rng.IntN(len(mapBuilds))],
		MatchID:         id.String(),
		StartTimeGame:   start,
		EndTimeGame:     start + duration,
		DurationSeconds: duration,
		PlayerCount:     g.cfg.Players,
	}

	draw := g.rng.Float64() < g.cfg.DrawRate
	winningTeam := g.rng.IntN(2)
	for slot, idx := range g.rng.Perm(len(g.roster))[:g.cfg.Players] {
		team := slot % 2
		p := model.MatchPlayerMetadata{
			SlotIndex: slot,
			Name:      g.roster[idx],
			Race:      races[g.rng.IntN(len(races))],
			Team:      team,
			Result:    result(draw, team == winningTeam),
		}
		if g.cfg.SchemaVersion >= 3 {
			p.Class = classes[g.rng.IntN(len(classes))]
		}
		if g.cfg.SchemaVersion >= 2 {
			p.Stats = g.stats()
		}
		if g.cfg.SchemaVersion >= 4 {
			p.Items = make([]int, itemsPerPlayer)
			for i := range p.Items {
				p.Items[i] = 1000 + g.rng.IntN(500)
			}
		}
		m.Players = append(m.Players, p)
	}
	return m
}

func result(draw, won bool) string {
	switch {
	case draw:
		return "DRAW"
	case won:
		return "WIN"
	default:
		return "LOSE"
	}
}

func (g *Generator) stats() *model.PlayerStats {
	n := func(limit int) float64 { return float64(g.rng.IntN(limit)) }
	return &model.PlayerStats{
		DamageTroll:  n(20_000),
		SelfHealing:  n(5_000),
		AllyHealing:  n(5_000),
		GoldAcquired: n(3_000),
		MeatEaten:    n(200),
		Kills: model.KillCounts{
			Elk: n(60), Hawk: n(20), Snake: n(20), Wolf: n(15), Bear: n(8), Panther: n(8),
		},
	}
}

// Generate returns cfg.Matches matches.
func (g *Generator) Generate(ctx context.Context) ([]model.MatchMetadata, error) {
	out := make([]model.MatchMetadata, 0, g.cfg.Matches)
	for range g.cfg.Matches {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("generate matches: %w", err)
		}
		out = append(out, g.Next())
	}
	return out, nil
}

// Payloads encodes every match under spec.
func Payloads(matches []model.MatchMetadata, spec model.MatchMetadataSpec) ([]string, error) {
	out := make([]string, len(matches))
	for i, m := range matches {
		text, err := payload.Encode(m, spec)
		if err != nil {
			return nil, fmt.Errorf("encode match %s: %w", m.MatchID, err)
		}
		out[i] = text
	}
	return out, nil
}
