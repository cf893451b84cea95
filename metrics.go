package kosha

import (
	"sync/atomic"
	"time"
)

// LookupOp names a read operation for MetricsCollector.RecordLookup.
type LookupOp string

const (
	OpContains       LookupOp = "contains"
	OpContainsPrefix LookupOp = "contains_prefix"
	OpContainsKind   LookupOp = "contains_kind"
	OpGetAll         LookupOp = "get_all"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; package prom
// provides a Prometheus implementation.
//
// Implementations must be safe for concurrent use.
type MetricsCollector interface {
	// RecordInsert is called after each Builder.Insert.
	RecordInsert(err error)

	// RecordFinish is called after Builder.Finish with the number of keys and
	// entries written and the bytes of all segments.
	RecordFinish(keys, entries int, bytes int64, duration time.Duration, err error)

	// RecordOpen is called after each Open.
	RecordOpen(duration time.Duration, err error)

	// RecordLookup is called after each read operation. found reports whether
	// the key (or prefix) was present.
	RecordLookup(op LookupOp, found bool, duration time.Duration)

	// RecordCacheHit and RecordCacheMiss are called per block cache lookup.
	RecordCacheHit()
	RecordCacheMiss()
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordInsert(error)                                {}
func (NoopMetricsCollector) RecordFinish(int, int, int64, time.Duration, error) {}
func (NoopMetricsCollector) RecordOpen(time.Duration, error)                   {}
func (NoopMetricsCollector) RecordLookup(LookupOp, bool, time.Duration)        {}
func (NoopMetricsCollector) RecordCacheHit()                                   {}
func (NoopMetricsCollector) RecordCacheMiss()                                  {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	InsertCount      atomic.Int64
	InsertErrors     atomic.Int64
	FinishCount      atomic.Int64
	FinishErrors     atomic.Int64
	FinishBytes      atomic.Int64
	OpenCount        atomic.Int64
	OpenErrors       atomic.Int64
	LookupCount      atomic.Int64
	LookupHits       atomic.Int64
	LookupTotalNanos atomic.Int64
	CacheHits        atomic.Int64
	CacheMisses      atomic.Int64
}

// RecordInsert implements MetricsCollector.
func (b *BasicMetricsCollector) RecordInsert(err error) {
	b.InsertCount.Add(1)
	if err != nil {
		b.InsertErrors.Add(1)
	}
}

// RecordFinish implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFinish(_, _ int, bytes int64, _ time.Duration, err error) {
	b.FinishCount.Add(1)
	if err != nil {
		b.FinishErrors.Add(1)
		return
	}
	b.FinishBytes.Add(bytes)
}

// RecordOpen implements MetricsCollector.
func (b *BasicMetricsCollector) RecordOpen(_ time.Duration, err error) {
	b.OpenCount.Add(1)
	if err != nil {
		b.OpenErrors.Add(1)
	}
}

// RecordLookup implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLookup(_ LookupOp, found bool, duration time.Duration) {
	b.LookupCount.Add(1)
	b.LookupTotalNanos.Add(duration.Nanoseconds())
	if found {
		b.LookupHits.Add(1)
	}
}

// RecordCacheHit implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCacheHit() { b.CacheHits.Add(1) }

// RecordCacheMiss implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCacheMiss() { b.CacheMisses.Add(1) }

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	s := BasicMetricsStats{
		InsertCount:  b.InsertCount.Load(),
		InsertErrors: b.InsertErrors.Load(),
		FinishCount:  b.FinishCount.Load(),
		FinishErrors: b.FinishErrors.Load(),
		FinishBytes:  b.FinishBytes.Load(),
		OpenCount:    b.OpenCount.Load(),
		OpenErrors:   b.OpenErrors.Load(),
		LookupCount:  b.LookupCount.Load(),
		LookupHits:   b.LookupHits.Load(),
		CacheHits:    b.CacheHits.Load(),
		CacheMisses:  b.CacheMisses.Load(),
	}
	if s.LookupCount > 0 {
		s.LookupAvgNanos = b.LookupTotalNanos.Load() / s.LookupCount
	}
	return s
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	InsertCount    int64
	InsertErrors   int64
	FinishCount    int64
	FinishErrors   int64
	FinishBytes    int64
	OpenCount      int64
	OpenErrors     int64
	LookupCount    int64
	LookupHits     int64
	LookupAvgNanos int64
	CacheHits      int64
	CacheMisses    int64
}
