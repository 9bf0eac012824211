package standings_test

import (
	"context"
	"testing"
	"time"

	"github.com/okian/replaymeta/internal/domain/model"
	"github.com/okian/replaymeta/internal/domain/standings"
	. "github.com/smartystreets/goconvey/convey"
)

type fixedRatings map[string]float64

func (f fixedRatings) Rating(_ context.Context, player string) (float64, bool) {
	r, ok := f[player]
	return r, ok
}

func match(players ...model.MatchPlayerMetadata) model.MatchMetadata {
	return model.MatchMetadata{MatchID: "m", Players: players, PlayerCount: len(players)}
}

func player(name, result string) model.MatchPlayerMetadata {
	return model.MatchPlayerMetadata{Name: name, Result: result}
}

func byPlayer(changes []standings.Change) map[string]standings.Change {
	out := make(map[string]standings.Change, len(changes))
	for _, c := range changes {
		out[c.Player] = c
	}
	return out
}

func TestParseOutcome(t *testing.T) {
	Convey("Result tags normalize to outcomes", t, func() {
		So(standings.ParseOutcome("WIN"), ShouldEqual, standings.OutcomeWin)
		So(standings.ParseOutcome(" winner "), ShouldEqual, standings.OutcomeWin)
		So(standings.ParseOutcome("loss"), ShouldEqual, standings.OutcomeLoss)
		So(standings.ParseOutcome("loser"), ShouldEqual, standings.OutcomeLoss)
		So(standings.ParseOutcome("drawer"), ShouldEqual, standings.OutcomeDraw)
		So(standings.ParseOutcome("tie"), ShouldEqual, standings.OutcomeDraw)
		So(standings.ParseOutcome("left"), ShouldEqual, standings.OutcomeUnknown)
	})
}

func TestCalculator(t *testing.T) {
	ctx := context.Background()

	Convey("Given a default calculator", t, func() {
		c := standings.NewCalculator()

		Convey("Expected score is symmetric around equal ratings", func() {
			So(standings.ExpectedScore(1000, 1000), ShouldEqual, 0.5)
			So(standings.ExpectedScore(1200, 1000)+standings.ExpectedScore(1000, 1200), ShouldAlmostEqual, 1.0, 1e-9)
		})

		Convey("Team rating is a rounded mean and empty teams use the starting rating", func() {
			So(c.TeamRating(nil), ShouldEqual, 1000)
			So(c.TeamRating([]float64{1000, 1001, 1001}), ShouldEqual, 1000.67)
		})

		Convey("When two new players meet", func() {
			changes := byPlayer(c.Apply(ctx, match(player("Alice", "win"), player("bob ", "loss")), fixedRatings{}))

			Convey("Then the winner gains half the K-factor and the loser drops the same", func() {
				So(changes, ShouldHaveLength, 2)
				So(changes["alice"].Delta, ShouldEqual, 16)
				So(changes["alice"].After, ShouldEqual, 1016)
				So(changes["bob"].Delta, ShouldEqual, -16)
				So(changes["bob"].Before, ShouldEqual, 1000)
			})
		})

		Convey("When the favorite wins", func() {
			ratings := fixedRatings{"alice": 1200, "bob": 1000}
			changes := byPlayer(c.Apply(ctx, match(player("alice", "winner"), player("bob", "loser")), ratings))

			Convey("Then the movement is small and rounded to two decimals", func() {
				So(changes["alice"].Delta, ShouldEqual, 7.69)
				So(changes["bob"].Delta, ShouldEqual, -7.69)
				So(changes["alice"].After, ShouldEqual, 1207.69)
			})
		})

		Convey("When drawers share a match with winners", func() {
			ratings := fixedRatings{"alice": 1200, "bob": 1000, "carol": 1200}
			changes := byPlayer(c.Apply(ctx, match(player("alice", "win"), player("bob", "loss"), player("carol", "draw")), ratings))

			Convey("Then drawers are rated against the winners' team", func() {
				So(changes["carol"].Delta, ShouldEqual, 0)
				So(changes["carol"].Outcome, ShouldEqual, standings.OutcomeDraw)
			})
		})

		Convey("When everyone draws", func() {
			changes := c.Apply(ctx, match(player("a", "draw"), player("b", "draw")), fixedRatings{})

			Convey("Then ratings do not move", func() {
				So(changes, ShouldHaveLength, 2)
				So(changes[0].Delta, ShouldEqual, 0)
				So(changes[1].Delta, ShouldEqual, 0)
			})
		})

		Convey("Unknown results and single-player matches are not rated", func() {
			So(c.Apply(ctx, match(player("a", "win")), fixedRatings{}), ShouldBeEmpty)
			changes := byPlayer(c.Apply(ctx, match(player("a", "win"), player("b", "loss"), player("c", "left")), fixedRatings{}))
			So(changes, ShouldHaveLength, 2)
			So(changes, ShouldNotContainKey, "c")
		})
	})

	Convey("Given a calculator with a custom K-factor and starting rating", t, func() {
		c := standings.NewCalculator(standings.WithKFactor(16), standings.WithStartingRating(1500))
		changes := byPlayer(c.Apply(ctx, match(player("a", "win"), player("b", "loss")), fixedRatings{}))

		So(changes["a"].Before, ShouldEqual, 1500)
		So(changes["a"].Delta, ShouldEqual, 8)
		So(changes["b"].After, ShouldEqual, 1492)
	})
}

func TestSummarize(t *testing.T) {
	Convey("Given a decoded match", t, func() {
		m := match(player("Alice", "win"), player("Bob", "loss"), player("Carol", "winner"))
		m.MapName = "Island Troll Tribes"
		at := time.Unix(1700000000, 0).UTC()

		s := standings.Summarize(m, at)

		So(s.MatchID, ShouldEqual, "m")
		So(s.MapName, ShouldEqual, "Island Troll Tribes")
		So(s.PlayerCount, ShouldEqual, 3)
		So(s.Winners, ShouldResemble, []string{"Alice", "Carol"})
		So(s.StoredAt, ShouldEqual, at)
	})
}

type mapStore struct {
	fixedRatings
	applied int
}

func (m *mapStore) Apply(_ context.Context, changes []standings.Change) error {
	m.applied++
	for _, c := range changes {
		m.fixedRatings[c.Player] = c.After
	}
	return nil
}

func TestLedger(t *testing.T) {
	ctx := context.Background()

	Convey("Given a ledger over a map store", t, func() {
		store := &mapStore{fixedRatings: fixedRatings{}}
		ledger := standings.NewLedger(standings.NewCalculator(), store)

		Convey("When two matches are recorded in sequence", func() {
			_, err := ledger.Record(ctx, match(player("a", "win"), player("b", "loss")))
			So(err, ShouldBeNil)
			changes, err := ledger.Record(ctx, match(player("a", "win"), player("c", "loss")))
			So(err, ShouldBeNil)

			Convey("Then the second match starts from the first match's ratings", func() {
				So(byPlayer(changes)["a"].Before, ShouldEqual, 1016)
				So(store.fixedRatings["c"], ShouldBeLessThan, 1000)
				So(store.applied, ShouldEqual, 2)
			})
		})

		Convey("When a match yields no changes", func() {
			changes, err := ledger.Record(ctx, match(player("a", "left"), player("b", "left")))

			Convey("Then the store is not touched", func() {
				So(err, ShouldBeNil)
				So(changes, ShouldBeEmpty)
				So(store.applied, ShouldEqual, 0)
			})
		})
	})
}
