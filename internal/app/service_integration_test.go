package service_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/replaymeta/internal/adapters/http/api"
	"github.com/okian/replaymeta/internal/adapters/http/live"
	"github.com/okian/replaymeta/internal/adapters/repository"
	service "github.com/okian/replaymeta/internal/app"
	"github.com/okian/replaymeta/internal/domain/model"
	"github.com/okian/replaymeta/internal/domain/types"
)

func postReplay(t *testing.T, url, text string) int {
	t.Helper()
	body, err := json.Marshal(map[string]string{"payload": text})
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url+"/replays", "application/json", strings.NewReader(string(body)))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	return resp.StatusCode
}

func TestServiceIntegration(t *testing.T) {
	Convey("Given the service behind the HTTP API", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithWorkerCount(2), service.WithChecksumSpec(testSpec))
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		srv := httptest.NewServer(api.NewServer(svc, svc, api.WithLiveHandler(svc.LiveHandler())).Handler())
		defer srv.Close()

		Convey("A live subscriber sees accepted matches", func() {
			conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/live", nil)
			So(err, ShouldBeNil)
			defer conn.Close()
			hub := svc.LiveHandler().(*live.Hub)
			So(eventually(func() bool { return hub.Subscribers() == 1 }), ShouldBeTrue)

			So(postReplay(t, srv.URL, match("m-live", player(0, "Ann", "DRAW"), player(1, "Bob", "DRAW"))), ShouldEqual, http.StatusAccepted)

			_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			_, data, err := conn.ReadMessage()
			So(err, ShouldBeNil)
			var msg live.Message
			So(json.Unmarshal(data, &msg), ShouldBeNil)
			So(msg.Match.MatchID, ShouldEqual, "m-live")
			So(msg.Match.Winners, ShouldBeEmpty)
		})

		Convey("Submitted matches show up on the leaderboard", func() {
			So(postReplay(t, srv.URL, match("m-1", player(0, "Ann", "WIN"), player(1, "Bob", "LOSE"))), ShouldEqual, http.StatusAccepted)
			So(postReplay(t, srv.URL, "v1\nEND\n"), ShouldEqual, http.StatusAccepted)
			So(eventually(func() bool {
				s := svc.GetStats(ctx)
				return s.Decoded == 1 && s.Failed == 1
			}), ShouldBeTrue)

			resp, err := http.Get(srv.URL + "/leaderboard?limit=1")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			var entries []types.Entry
			So(json.NewDecoder(resp.Body).Decode(&entries), ShouldBeNil)
			So(entries, ShouldHaveLength, 1)
			So(entries[0].Player, ShouldEqual, "ann")
		})
	})
}

func TestServiceRestart(t *testing.T) {
	Convey("Given a service archiving to sqlite", t, func() {
		ctx := context.Background()
		dsn := filepath.Join(t.TempDir(), "replays.db")
		newService := func() *service.Service {
			return service.New(
				service.WithWorkerCount(1),
				service.WithChecksumSpec(testSpec),
				service.WithStore(repository.DriverSQLite, dsn),
			)
		}

		first := newService()
		So(first.Start(ctx), ShouldBeNil)
		for _, text := range []string{
			match("m-1", player(0, "Ann", "WIN"), player(1, "Bob", "LOSE")),
			match("m-2", player(0, "Ann", "WIN"), player(1, "Cid", "LOSE")),
		} {
			_, err := first.Submit(ctx, model.Submission{Payload: text})
			So(err, ShouldBeNil)
		}
		So(eventually(func() bool { return first.GetStats(ctx).Decoded == 2 }), ShouldBeTrue)
		before, err := first.Rank(ctx, "ann")
		So(err, ShouldBeNil)
		So(first.Stop(ctx), ShouldBeNil)

		Convey("When a new service opens the same archive", func() {
			second := newService()
			So(second.Start(ctx), ShouldBeNil)
			defer func() { _ = second.Stop(ctx) }()

			Convey("Then ratings are rebuilt", func() {
				after, err := second.Rank(ctx, "ann")
				So(err, ShouldBeNil)
				So(after, ShouldResemble, before)
				So(second.GetStats(ctx).Players, ShouldEqual, 3)
			})

			Convey("Then archived matches are not rated again", func() {
				_, err := second.Submit(ctx, model.Submission{
					Payload: match("m-1", player(0, "Ann", "WIN"), player(1, "Bob", "LOSE")),
				})
				So(err, ShouldBeNil)
				So(eventually(func() bool { return second.GetStats(ctx).Duplicates == 1 }), ShouldBeTrue)
				after, err := second.Rank(ctx, "ann")
				So(err, ShouldBeNil)
				So(after.Games, ShouldEqual, 2)
			})
		})
	})
}
