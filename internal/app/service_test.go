package service_test

import (
	"context"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/replaymeta/internal/app"
	"github.com/okian/replaymeta/internal/config"
	"github.com/okian/replaymeta/internal/domain/model"
	"github.com/okian/replaymeta/internal/domain/payload"
	"github.com/okian/replaymeta/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

var testSpec = model.MatchMetadataSpec{Algorithm: payload.AlgorithmCRC32, Seed: 11}

func match(id string, players ...model.MatchPlayerMetadata) string {
	text, err := payload.Encode(model.MatchMetadata{
		SchemaVersion: 2, MapName: "Island Troll Tribes", MapVersion: "3.30a", MatchID: id,
		EndTimeGame: 900, DurationSeconds: 900, Players: players,
	}, testSpec)
	if err != nil {
		panic(err)
	}
	return text
}

func player(slot int, name, result string) model.MatchPlayerMetadata {
	return model.MatchPlayerMetadata{SlotIndex: slot, Name: name, Race: "ORC", Team: slot % 2, Result: result}
}

// eventually polls cond for up to two seconds.
func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with custom options", t, func() {
		svc := service.New(
			service.WithWorkerCount(3),
			service.WithQueueSize(50),
			service.WithDedupeSize(25),
		)

		Convey("Then stats reflect the configuration before start", func() {
			stats := svc.GetStats(context.Background())
			So(stats.Workers, ShouldEqual, 3)
			So(stats.QueueCapacity, ShouldEqual, 50)
			So(stats.Matches, ShouldEqual, 0)
		})

		Convey("Then operations needing a running service fail", func() {
			_, err := svc.Submit(context.Background(), model.Submission{Payload: "v1"})
			So(err, ShouldEqual, service.ErrNotStarted)
			_, err = svc.TopN(context.Background(), 10)
			So(err, ShouldEqual, service.ErrNotStarted)
			_, err = svc.GetMatch(context.Background(), "x")
			So(err, ShouldEqual, service.ErrNotStarted)
		})

		Convey("Then stopping an unstarted service is a no-op", func() {
			So(svc.Stop(context.Background()), ShouldBeNil)
		})
	})
}

func TestService_FromConfig(t *testing.T) {
	Convey("Given a configuration", t, func() {
		cfg := config.New()
		cfg.WorkerCount = 2
		cfg.QueueSize = 7
		cfg.ChecksumAlgorithm = payload.AlgorithmCRC32
		cfg.ChecksumSeed = 11

		Convey("The service decodes with its checksum spec", func() {
			svc := service.New(service.FromConfig(cfg)...)
			So(svc.GetStats(context.Background()).QueueCapacity, ShouldEqual, 7)
			m, err := svc.DecodeNow(context.Background(), model.Submission{
				Payload: match("m-1", player(0, "Ann", "WIN"), player(1, "Bob", "LOSE")),
			})
			So(err, ShouldBeNil)
			So(m.MatchID, ShouldEqual, "m-1")
		})
	})
}

func TestService_DecodeNow(t *testing.T) {
	Convey("Given a service with the default checksum", t, func() {
		svc := service.New()
		text := match("m-1", player(0, "Ann", "WIN"), player(1, "Bob", "LOSE"))

		Convey("A payload built for another spec fails its checksum", func() {
			_, err := svc.DecodeNow(context.Background(), model.Submission{Payload: text})
			So(payload.KindOf(err), ShouldEqual, payload.KindChecksumMismatch)
		})

		Convey("Unless checksum validation is skipped", func() {
			m, err := svc.DecodeNow(context.Background(), model.Submission{Payload: text, SkipChecksum: true})
			So(err, ShouldBeNil)
			So(m.Players, ShouldHaveLength, 2)
		})
	})
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a started in-memory service", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithWorkerCount(2), service.WithChecksumSpec(testSpec))
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		Convey("Starting twice is a no-op", func() {
			So(svc.Start(ctx), ShouldBeNil)
		})

		Convey("When a match is submitted", func() {
			id, err := svc.Submit(ctx, model.Submission{
				Payload: match("m-1", player(0, "Ann", "WIN"), player(1, "Bob", "LOSE")),
			})
			So(err, ShouldBeNil)
			So(id, ShouldNotBeEmpty)
			So(eventually(func() bool { return svc.GetStats(ctx).Decoded == 1 }), ShouldBeTrue)

			Convey("Then it is archived and listed", func() {
				m, err := svc.GetMatch(ctx, "m-1")
				So(err, ShouldBeNil)
				So(m.MapVersion, ShouldEqual, "3.30a")
				list, err := svc.ListMatches(ctx, 10)
				So(err, ShouldBeNil)
				So(list, ShouldHaveLength, 1)
				So(list[0].Winners, ShouldResemble, []string{"Ann"})
			})

			Convey("Then both players are rated", func() {
				top, err := svc.TopN(ctx, 10)
				So(err, ShouldBeNil)
				So(top, ShouldHaveLength, 2)
				So(top[0].Player, ShouldEqual, "ann")
				So(top[0].Rating, ShouldEqual, 1016)
				So(top[1].Rating, ShouldEqual, 984)

				e, err := svc.Rank(ctx, "  BOB ")
				So(err, ShouldBeNil)
				So(e.Rank, ShouldEqual, 2)
				So(e.Losses, ShouldEqual, 1)
			})

			Convey("Then resubmitting it is counted as a duplicate", func() {
				_, err := svc.Submit(ctx, model.Submission{
					Payload: match("m-1", player(0, "Ann", "WIN"), player(1, "Bob", "LOSE")),
				})
				So(err, ShouldBeNil)
				So(eventually(func() bool { return svc.GetStats(ctx).Duplicates == 1 }), ShouldBeTrue)
				stats := svc.GetStats(ctx)
				So(stats.Matches, ShouldEqual, 1)
				So(stats.Players, ShouldEqual, 2)
				So(stats.Deduped, ShouldEqual, 1)
			})
		})

		Convey("Caller supplied submission ids are kept", func() {
			id, err := svc.Submit(ctx, model.Submission{ID: "mine", Payload: "v1\nEND\n"})
			So(err, ShouldBeNil)
			So(id, ShouldEqual, "mine")
			So(eventually(func() bool { return svc.GetStats(ctx).Failed == 1 }), ShouldBeTrue)
		})

		Convey("After stop the queue rejects submissions", func() {
			So(svc.Stop(ctx), ShouldBeNil)
			_, err := svc.Submit(ctx, model.Submission{Payload: "v1"})
			So(err, ShouldNotBeNil)
		})
	})
}

func TestService_StopDrainsQueue(t *testing.T) {
	Convey("Given a service started with a context that is later cancelled", t, func() {
		const submitted = 500
		startCtx, cancel := context.WithCancel(context.Background())
		svc := service.New(
			service.WithWorkerCount(1),
			service.WithQueueSize(submitted),
			service.WithChecksumSpec(testSpec),
		)
		So(svc.Start(startCtx), ShouldBeNil)

		for i := 0; i < submitted; i++ {
			_, err := svc.Submit(context.Background(), model.Submission{
				Payload: match(fmt.Sprintf("drain-%d", i), player(0, "Ann", "WIN"), player(1, "Bob", "LOSE")),
			})
			So(err, ShouldBeNil)
		}
		cancel()

		Convey("When the service is stopped", func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer stopCancel()
			So(svc.Stop(stopCtx), ShouldBeNil)

			Convey("Then every accepted submission was processed", func() {
				list, err := svc.ListMatches(context.Background(), submitted)
				So(err, ShouldBeNil)
				So(list, ShouldHaveLength, submitted)
			})
		})
	})
}
