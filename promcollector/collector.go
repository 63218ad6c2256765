// Package promcollector exposes bvh build and query metrics to Prometheus.
package promcollector

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bmharper/bvh-go"
)

var _ bvh.MetricsCollector = (*Collector)(nil)

// Collector implements bvh.MetricsCollector with Prometheus metrics.
type Collector struct {
	latency      *prometheus.HistogramVec
	leaves       prometheus.Gauge
	rangeResults prometheus.Histogram
	nearestMiss  prometheus.Counter
}

// New creates a Collector and registers its metrics with reg.
// Metric names are prefixed with namespace when it is not empty.
func New(reg prometheus.Registerer, namespace string) (*Collector, error) {
	c := &Collector{
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bvh_operation_latency_seconds",
			Help:      "Latency of bvh builds and queries",
			Buckets:   prometheus.ExponentialBuckets(1e-7, 4, 12),
		}, []string{"op", "status"}),
		leaves: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bvh_leaves",
			Help:      "Number of leaves in the most recently built index",
		}),
		rangeResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bvh_range_query_ranges",
			Help:      "Number of merged payload ranges returned by range queries",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		nearestMiss: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bvh_nearest_query_misses_total",
			Help:      "Nearest queries that found nothing (empty index)",
		}),
	}
	for _, m := range []prometheus.Collector{c.latency, c.leaves, c.rangeResults, c.nearestMiss} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordBuild implements bvh.MetricsCollector.
func (c *Collector) RecordBuild(records, leaves int, d time.Duration, err error) {
	c.latency.WithLabelValues("build", status(err)).Observe(d.Seconds())
	if err == nil {
		c.leaves.Set(float64(leaves))
	}
}

// RecordRangeQuery implements bvh.MetricsCollector.
func (c *Collector) RecordRangeQuery(ranges int, d time.Duration, err error) {
	c.latency.WithLabelValues("range", status(err)).Observe(d.Seconds())
	if err == nil {
		c.rangeResults.Observe(float64(ranges))
	}
}

// RecordNearestQuery implements bvh.MetricsCollector.
func (c *Collector) RecordNearestQuery(found bool, d time.Duration, err error) {
	c.latency.WithLabelValues("nearest", status(err)).Observe(d.Seconds())
	if err == nil && !found {
		c.nearestMiss.Inc()
	}
}
