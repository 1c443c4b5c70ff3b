// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics exposes Prometheus instrumentation for the
// aggregation pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline's Prometheus collectors. A nil *Metrics
// is valid and records nothing, so library code can instrument
// unconditionally.
type Metrics struct {
	SearchesTotal   *prometheus.CounterVec
	SourceDuration  *prometheus.HistogramVec
	DuplicatesTotal prometheus.Counter
	CacheHitsTotal  prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SearchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scholarly",
			Name:      "source_searches_total",
			Help:      "Adapter search calls by source and outcome.",
		}, []string{"source", "status"}),
		SourceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "scholarly",
			Name:      "source_search_duration_seconds",
			Help:      "Adapter search latency by source.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"source"}),
		DuplicatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scholarly",
			Name:      "duplicates_removed_total",
			Help:      "Papers collapsed by cross-source deduplication.",
		}),
		CacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scholarly",
			Name:      "cache_hits_total",
			Help:      "Searches served from the result cache.",
		}),
	}
	reg.MustRegister(m.SearchesTotal, m.SourceDuration, m.DuplicatesTotal, m.CacheHitsTotal)
	return m
}

// ObserveSearch records one adapter call.
func (m *Metrics) ObserveSearch(source string, failed bool, seconds float64) {
	if m == nil {
		return
	}
	status := "ok"
	if failed {
		status = "error"
	}
	m.SearchesTotal.WithLabelValues(source, status).Inc()
	m.SourceDuration.WithLabelValues(source).Observe(seconds)
}

// ObserveDedup records removed duplicates.
func (m *Metrics) ObserveDedup(removed int) {
	if m == nil || removed <= 0 {
		return
	}
	m.DuplicatesTotal.Add(float64(removed))
}

// ObserveCacheHit records one cache-served search.
func (m *Metrics) ObserveCacheHit() {
	if m == nil {
		return
	}
	m.CacheHitsTotal.Inc()
}
