package repository

import "time"

type options struct {
	now func() time.Time
}

// Option applies a configuration option to a MatchStore.
type Option func(*options)

// WithClock overrides the time source used to stamp stored matches.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func newOptions(opts []Option) options {
	o := options{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
