// Package metrics provides Prometheus metrics for the replay metadata service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNames sets the namespace and subsystem prefixing every metric. Empty
// values keep the defaults.
func WithNames(namespace, subsystem string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
		if subsystem != "" {
			m.subsystem = subsystem
		}
	}
}

// WithLatencyBuckets sets the histogram buckets, in milliseconds, of every
// latency metric.
func WithLatencyBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.histogramBuckets = buckets
		}
	}
}

// WithRegisterer registers metrics on r instead of the default registerer.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(m *Manager) {
		if r != nil {
			m.registry = r
		}
	}
}

// defaultLatencyBuckets spans 0.05ms to roughly 5s. Decodes sit at the low
// end, store writes and queue waits at the high end.
var defaultLatencyBuckets = prometheus.ExponentialBuckets(0.05, 2.5, 13) //nolint:gochecknoglobals // read-only
