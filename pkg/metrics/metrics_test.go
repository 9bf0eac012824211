package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

// gathered returns the first sample value of a family, or -1 when absent.
func gathered(reg *prometheus.Registry, name string) float64 {
	families, err := reg.Gather()
	if err != nil {
		return -1
	}
	for _, mf := range families {
		if mf.GetName() != name || len(mf.GetMetric()) == 0 {
			continue
		}
		m := mf.GetMetric()[0]
		switch {
		case m.GetCounter() != nil:
			return m.GetCounter().GetValue()
		case m.GetGauge() != nil:
			return m.GetGauge().GetValue()
		case m.GetHistogram() != nil:
			return float64(m.GetHistogram().GetSampleCount())
		}
	}
	return -1
}

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given a manager on a private registry", t, func() {
		registry := prometheus.NewRegistry()
		manager := NewManager(
			WithNames("test", "unit"),
			WithLatencyBuckets([]float64{1, 10, 100}),
			WithRegisterer(registry),
		)

		Convey("Then metrics are registered under the configured names", func() {
			manager.replaysDecoded.Inc()
			manager.queueSize.Set(3)
			So(gathered(registry, "test_unit_replays_decoded_total"), ShouldEqual, 1)
			So(gathered(registry, "test_unit_queue_size"), ShouldEqual, 3)
		})

		Convey("Then a manager with default names uses the service prefix", func() {
			other := prometheus.NewRegistry()
			m := NewManager(WithRegisterer(other))
			m.replaysSubmitted.Inc()
			m.decodeLatency.Observe(0.2)
			So(gathered(other, "replaymeta_decoder_replays_submitted_total"), ShouldEqual, 1)
			So(gathered(other, "replaymeta_decoder_decode_latency_milliseconds"), ShouldEqual, 1)
		})

		Convey("Then registering a second manager on the same registry panics", func() {
			So(func() { NewManager(WithNames("test", "unit"), WithRegisterer(registry)) }, ShouldPanic)
		})
	})
}

func TestGlobalRecorders(t *testing.T) {
	Convey("Given the global registry", t, func() {
		reg := GetRegistry()
		So(reg, ShouldNotBeNil)

		Convey("When pipeline counters are recorded", func() {
			before := gathered(reg, "replaymeta_decoder_replays_submitted_total")
			RecordReplaySubmitted()
			RecordReplayDecoded()
			RecordReplayDuplicate()
			RecordDecodeFailure("PAYLOAD_INVALID")
			RecordDecodeLatency(1.5)
			RecordRatingUpdates(4)

			Convey("Then the counters move", func() {
				So(gathered(reg, "replaymeta_decoder_replays_submitted_total"), ShouldEqual, before+1)
				So(gathered(reg, "replaymeta_decoder_decode_failures_total"), ShouldBeGreaterThanOrEqualTo, 1)
				So(gathered(reg, "replaymeta_decoder_rating_updates_total"), ShouldBeGreaterThanOrEqualTo, 4)
			})
		})

		Convey("When gauges are updated", func() {
			UpdateQueueSize(7)
			UpdateQueueCapacity(10)
			UpdateQueueUtilization(0.7)
			UpdateWorkerCount(4)
			UpdateWorkerActiveCount(2)
			UpdatePlayersRated(12)
			UpdateMatchesStored(5)
			UpdateLiveSubscribers(1)

			Convey("Then the last value wins", func() {
				So(gathered(reg, "replaymeta_decoder_queue_size"), ShouldEqual, 7)
				So(gathered(reg, "replaymeta_decoder_worker_active_count"), ShouldEqual, 2)
				So(gathered(reg, "replaymeta_decoder_matches_stored"), ShouldEqual, 5)
			})
		})

		Convey("When the remaining recorders run", func() {
			So(func() {
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				RecordQueueProcessingLatency(2)
				RecordWorkerProcessingLatency(3)
				RecordWorkerError()
				RecordStoreLatency("save", 0.4)
				RecordStoreError("get")
				RecordHTTPRequest("/replays", "POST", "202")
				RecordHTTPRequestDuration("/replays", "POST", "202", 1.2)
				RecordLiveMessage()
				RecordErrorByComponent("worker", "decode")
				SampleRuntime()
			}, ShouldNotPanic)
			So(gathered(reg, "replaymeta_decoder_system_goroutine_count"), ShouldBeGreaterThan, 0)
		})
	})
}
