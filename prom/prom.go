// Package prom exports kosha metrics to Prometheus.
package prom

import (
	"time"

	"github.com/hupe1980/kosha"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "kosha"

// Collector implements kosha.MetricsCollector on top of Prometheus vectors.
type Collector struct {
	opLatency    *prometheus.HistogramVec
	lookups      *prometheus.CounterVec
	inserts      *prometheus.CounterVec
	finishes     *prometheus.CounterVec
	writtenBytes prometheus.Counter
	storeKeys    prometheus.Gauge
	storeEntries prometheus.Gauge
	cache        *prometheus.CounterVec
}

var _ kosha.MetricsCollector = (*Collector)(nil)

// Option configures a Collector.
type Option func(*options)

type options struct {
	namespace string
	buckets   []float64
	labels    prometheus.Labels
}

// WithNamespace replaces DefaultNamespace.
func WithNamespace(ns string) Option {
	return func(o *options) { o.namespace = ns }
}

// WithBuckets sets the latency histogram buckets in seconds.
func WithBuckets(b []float64) Option {
	return func(o *options) { o.buckets = b }
}

// WithConstLabels attaches constant labels to every metric, e.g. the store location.
func WithConstLabels(l prometheus.Labels) Option {
	return func(o *options) { o.labels = l }
}

// New creates a Collector and registers its metrics with reg.
// A nil reg selects prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer, optFns ...Option) (*Collector, error) {
	o := options{
		namespace: DefaultNamespace,
		buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
	}
	for _, fn := range optFns {
		fn(&o)
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   o.namespace,
			Name:        "operation_latency_seconds",
			Help:        "Latency of store operations",
			Buckets:     o.buckets,
			ConstLabels: o.labels,
		}, []string{"op", "status"}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   o.namespace,
			Name:        "lookups_total",
			Help:        "Read operations by operation and result",
			ConstLabels: o.labels,
		}, []string{"op", "found"}),
		inserts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   o.namespace,
			Name:        "inserts_total",
			Help:        "Builder inserts by status",
			ConstLabels: o.labels,
		}, []string{"status"}),
		finishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   o.namespace,
			Name:        "finishes_total",
			Help:        "Builder finishes by status",
			ConstLabels: o.labels,
		}, []string{"status"}),
		writtenBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   o.namespace,
			Name:        "written_bytes_total",
			Help:        "Bytes of segments written by successful finishes",
			ConstLabels: o.labels,
		}),
		storeKeys: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   o.namespace,
			Name:        "built_keys",
			Help:        "Distinct keys of the last successful finish",
			ConstLabels: o.labels,
		}),
		storeEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   o.namespace,
			Name:        "built_entries",
			Help:        "Entries of the last successful finish",
			ConstLabels: o.labels,
		}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   o.namespace,
			Name:        "block_cache_requests_total",
			Help:        "Block cache lookups by result",
			ConstLabels: o.labels,
		}, []string{"result"}),
	}

	for _, m := range []prometheus.Collector{
		c.opLatency, c.lookups, c.inserts, c.finishes,
		c.writtenBytes, c.storeKeys, c.storeEntries, c.cache,
	} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNew is like New but panics on registration errors.
func MustNew(reg prometheus.Registerer, optFns ...Option) *Collector {
	c, err := New(reg, optFns...)
	if err != nil {
		panic(err)
	}
	return c
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordInsert implements kosha.MetricsCollector.
func (c *Collector) RecordInsert(err error) {
	c.inserts.WithLabelValues(status(err)).Inc()
}

// RecordFinish implements kosha.MetricsCollector.
func (c *Collector) RecordFinish(keys, entries int, bytes int64, d time.Duration, err error) {
	st := status(err)
	c.finishes.WithLabelValues(st).Inc()
	c.opLatency.WithLabelValues("finish", st).Observe(d.Seconds())
	if err != nil {
		return
	}
	c.writtenBytes.Add(float64(bytes))
	c.storeKeys.Set(float64(keys))
	c.storeEntries.Set(float64(entries))
}

// RecordOpen implements kosha.MetricsCollector.
func (c *Collector) RecordOpen(d time.Duration, err error) {
	c.opLatency.WithLabelValues("open", status(err)).Observe(d.Seconds())
}

// RecordLookup implements kosha.MetricsCollector.
func (c *Collector) RecordLookup(op kosha.LookupOp, found bool, d time.Duration) {
	f := "false"
	if found {
		f = "true"
	}
	c.lookups.WithLabelValues(string(op), f).Inc()
	c.opLatency.WithLabelValues(string(op), "success").Observe(d.Seconds())
}

// RecordCacheHit implements kosha.MetricsCollector.
func (c *Collector) RecordCacheHit() { c.cache.WithLabelValues("hit").Inc() }

// RecordCacheMiss implements kosha.MetricsCollector.
func (c *Collector) RecordCacheMiss() { c.cache.WithLabelValues("miss").Inc() }
