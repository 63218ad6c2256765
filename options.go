package bvh

import "runtime"

type options struct {
	logger       *Logger
	metrics      MetricsCollector
	sizeHint     int
	scratchLimit int
	concurrency  int
}

func defaultOptions() options {
	return options{
		logger:      NoopLogger(),
		metrics:     NoopMetricsCollector{},
		concurrency: runtime.GOMAXPROCS(0),
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Option configures a build. The Index keeps the resulting configuration for its queries.
type Option func(*options)

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMetricsCollector sets the metrics collector. A nil collector disables metrics.
func WithMetricsCollector(m MetricsCollector) Option {
	return func(o *options) {
		if m == nil {
			m = NoopMetricsCollector{}
		}
		o.metrics = m
	}
}

// WithSizeHint preallocates the payload buffer for n units.
// If the hint is too small the buffer simply grows.
func WithSizeHint(n int) Option {
	return func(o *options) {
		o.sizeHint = max(n, 0)
	}
}

// WithScratchLimit caps the number of entries a single query may hold on its
// traversal stack or priority queue. A query that needs more fails with
// ErrCapacityExceeded. Zero, the default, means unlimited.
func WithScratchLimit(n int) Option {
	return func(o *options) {
		o.scratchLimit = max(n, 0)
	}
}

// WithConcurrency sets how many queries a batch call runs at once.
// Values below 1 fall back to GOMAXPROCS.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n < 1 {
			n = runtime.GOMAXPROCS(0)
		}
		o.concurrency = n
	}
}
