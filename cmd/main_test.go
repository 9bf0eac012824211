package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	app "github.com/okian/replaymeta/internal/app"
	"github.com/okian/replaymeta/internal/config"
	"github.com/okian/replaymeta/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func TestHandler(t *testing.T) {
	convey.Convey("Given a started service behind the server handler", t, func() {
		ctx := context.Background()
		cfg := config.New()
		cfg.WorkerCount = 1
		cfg.MaxListLimit = 5
		svc := app.New(app.FromConfig(cfg)...)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		srv := httptest.NewServer(newHandler(svc, cfg))
		defer srv.Close()

		convey.Convey("Then the business routes are served", func() {
			resp, err := http.Get(srv.URL + "/stats")
			convey.So(err, convey.ShouldBeNil)
			_ = resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("Then the OpenAPI document is served", func() {
			resp, err := http.Get(srv.URL + "/openapi.yaml")
			convey.So(err, convey.ShouldBeNil)
			_ = resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("Then the configured list limit is enforced", func() {
			resp, err := http.Get(srv.URL + "/leaderboard?limit=6")
			convey.So(err, convey.ShouldBeNil)
			_ = resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusBadRequest)
		})

		convey.Convey("Then service metrics can be refreshed", func() {
			updateServiceMetrics(ctx, svc)
			resp, err := http.Get(srv.URL + "/healthz")
			convey.So(err, convey.ShouldBeNil)
			body, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			convey.So(string(body), convey.ShouldContainSubstring, "replaymeta_decoder_queue_capacity")
		})
	})
}

func TestRun(t *testing.T) {
	convey.Convey("Given a configuration with a free port", t, func() {
		cfg := config.New()
		cfg.Addr = "127.0.0.1:0"
		cfg.WorkerCount = 1

		convey.Convey("When the context is canceled run returns cleanly", func() {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- run(ctx, cfg, logger.Get()) }()
			time.Sleep(100 * time.Millisecond)
			cancel()
			select {
			case err := <-done:
				convey.So(err, convey.ShouldBeNil)
			case <-time.After(5 * time.Second):
				t.Fatal("run did not return")
			}
		})

		convey.Convey("When the address is unusable run reports it", func() {
			cfg.Addr = "bad-address"
			err := run(context.Background(), cfg, logger.Get())
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(strings.Contains(err.Error(), "bad-address"), convey.ShouldBeTrue)
		})
	})
}
