package bvh

import (
	"sync/atomic"
	"time"
)

// MetricsCollector receives operational metrics from an Index.
// See the promcollector package for a Prometheus implementation.
type MetricsCollector interface {
	// RecordBuild is called once per build. leaves is zero when err is not nil.
	RecordBuild(records, leaves int, duration time.Duration, err error)

	// RecordRangeQuery is called after each range query with the number of merged ranges returned.
	RecordRangeQuery(ranges int, duration time.Duration, err error)

	// RecordNearestQuery is called after each nearest-point query.
	RecordNearestQuery(found bool, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordBuild(int, int, time.Duration, error)    {}
func (NoopMetricsCollector) RecordRangeQuery(int, time.Duration, error)    {}
func (NoopMetricsCollector) RecordNearestQuery(bool, time.Duration, error) {}

// BasicMetricsCollector keeps simple in-memory counters.
// It is safe for concurrent use.
type BasicMetricsCollector struct {
	BuildCount        atomic.Int64
	BuildErrors       atomic.Int64
	BuildTotalNanos   atomic.Int64
	LeafCount         atomic.Int64
	RangeQueryCount   atomic.Int64
	RangeQueryErrors  atomic.Int64
	RangeQueryRanges  atomic.Int64
	RangeQueryNanos   atomic.Int64
	NearestQueryCount atomic.Int64
	NearestErrors     atomic.Int64
	NearestMisses     atomic.Int64
	NearestQueryNanos atomic.Int64
}

// RecordBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBuild(records, leaves int, duration time.Duration, err error) {
	b.BuildCount.Add(1)
	b.BuildTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.BuildErrors.Add(1)
		return
	}
	b.LeafCount.Add(int64(leaves))
}

// RecordRangeQuery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRangeQuery(ranges int, duration time.Duration, err error) {
	b.RangeQueryCount.Add(1)
	b.RangeQueryNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.RangeQueryErrors.Add(1)
		return
	}
	b.RangeQueryRanges.Add(int64(ranges))
}

// RecordNearestQuery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordNearestQuery(found bool, duration time.Duration, err error) {
	b.NearestQueryCount.Add(1)
	b.NearestQueryNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.NearestErrors.Add(1)
		return
	}
	if !found {
		b.NearestMisses.Add(1)
	}
}
