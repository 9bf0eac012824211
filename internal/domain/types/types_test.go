package types_test

import (
	"testing"

	types "github.com/okian/replaymeta/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEntryWinRate(t *testing.T) {
	Convey("Given leaderboard entries", t, func() {
		Convey("When no games were decided", func() {
			e := types.Entry{Player: "alice", Rating: 1000, Games: 2, Draws: 2}

			Convey("Then the win rate is zero", func() {
				So(e.WinRate(), ShouldEqual, 0)
			})
		})

		Convey("When draws are mixed with decided games", func() {
			e := types.Entry{Player: "bob", Games: 5, Wins: 3, Losses: 1, Draws: 1}

			Convey("Then draws are left out of the ratio", func() {
				So(e.WinRate(), ShouldEqual, 0.75)
			})
		})

		Convey("When a zero-value entry is used", func() {
			var e types.Entry

			Convey("Then it is safe to query", func() {
				So(e.WinRate(), ShouldEqual, 0)
				So(e.Player, ShouldBeEmpty)
			})
		})
	})
}
