// Package metrics exposes Prometheus collectors for the topic pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "topicradar"

var (
	// CacheLookups counts aggregation cache lookups by backend and outcome.
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Aggregation cache lookups by result (hit, miss, error)",
		},
		[]string{"backend", "result"},
	)

	// AggregationDuration measures keyword aggregation wall time.
	AggregationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "aggregation_duration_seconds",
			Help:      "Duration of keyword aggregation in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// AggregationKeywords observes how many keywords survive aggregation.
	AggregationKeywords = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "aggregation_keywords",
			Help:      "Keywords kept per aggregation result",
			Buckets:   []float64{0, 10, 50, 100, 250, 500, 1000, 5000},
		},
	)

	// GraphBuildDuration measures layout + attribute derivation.
	GraphBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "graph_build_duration_seconds",
			Help:      "Duration of relation graph construction in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// IngestTotal counts ingested corpus records by status.
	IngestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_total",
			Help:      "Corpus records consumed by the ingest worker",
		},
		[]string{"status"},
	)
)

// RecordCacheLookup records one cache lookup.
func RecordCacheLookup(backend, result string) {
	CacheLookups.WithLabelValues(backend, result).Inc()
}

// RecordAggregation records one aggregation run.
func RecordAggregation(seconds float64, keywords int) {
	AggregationDuration.Observe(seconds)
	AggregationKeywords.Observe(float64(keywords))
}

// RecordIngest records one ingest outcome.
func RecordIngest(status string) {
	IngestTotal.WithLabelValues(status).Inc()
}
