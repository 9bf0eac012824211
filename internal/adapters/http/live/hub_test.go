package live

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/replaymeta/internal/domain/model"
	"github.com/okian/replaymeta/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
	m.Run()
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestHub(t *testing.T) {
	Convey("Given a hub behind an HTTP server", t, func() {
		hub := NewHub()
		srv := httptest.NewServer(hub)
		defer srv.Close()

		Convey("Publish reaches every subscriber", func() {
			a, b := dial(t, srv), dial(t, srv)
			defer a.Close()
			defer b.Close()
			So(waitFor(func() bool { return hub.Subscribers() == 2 }), ShouldBeTrue)

			hub.Publish(context.Background(), model.MatchSummary{MatchID: "m-1", Winners: []string{"Alice"}})

			for _, c := range []*websocket.Conn{a, b} {
				_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
				_, data, err := c.ReadMessage()
				So(err, ShouldBeNil)
				var msg Message
				So(json.Unmarshal(data, &msg), ShouldBeNil)
				So(msg.Type, ShouldEqual, "match")
				So(msg.Match.MatchID, ShouldEqual, "m-1")
				So(msg.Match.Winners, ShouldResemble, []string{"Alice"})
			}
		})

		Convey("A disconnected client is removed", func() {
			c := dial(t, srv)
			So(waitFor(func() bool { return hub.Subscribers() == 1 }), ShouldBeTrue)
			_ = c.Close()
			So(waitFor(func() bool { return hub.Subscribers() == 0 }), ShouldBeTrue)
		})

		Convey("Close disconnects subscribers", func() {
			c := dial(t, srv)
			defer c.Close()
			So(waitFor(func() bool { return hub.Subscribers() == 1 }), ShouldBeTrue)
			hub.Close()
			So(hub.Subscribers(), ShouldEqual, 0)
			_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
			_, _, err := c.ReadMessage()
			So(err, ShouldNotBeNil)
		})
	})
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	Convey("A subscriber with a full buffer is dropped", t, func() {
		hub := NewHub(WithBuffer(1))
		sub := &subscriber{send: make(chan []byte, 1)}
		So(hub.add(sub), ShouldBeTrue)

		hub.Publish(context.Background(), model.MatchSummary{MatchID: "a"})
		So(hub.Subscribers(), ShouldEqual, 1)
		hub.Publish(context.Background(), model.MatchSummary{MatchID: "b"})
		So(hub.Subscribers(), ShouldEqual, 0)

		_, ok := <-sub.send
		So(ok, ShouldBeTrue)
		_, ok = <-sub.send
		So(ok, ShouldBeFalse)
	})
}
