package dedupe

// Option applies a configuration option to the in-memory deduper.
type Option func(*inMemoryDeduper)

// WithMaxSize sets the maximum number of IDs to keep in memory.
// If maxSize > 0: bounded mode, the oldest id is evicted first.
// If maxSize <= 0: unbounded mode.
func WithMaxSize(maxSize int) Option {
	return func(d *inMemoryDeduper) {
		d.maxSize = maxSize
	}
}

// WithFalsePositiveRate tunes the bloom prefilter. Values outside (0,1) are ignored.
func WithFalsePositiveRate(rate float64) Option {
	return func(d *inMemoryDeduper) {
		if rate > 0 && rate < 1 {
			d.fpRate = rate
		}
	}
}
