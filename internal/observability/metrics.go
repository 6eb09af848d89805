// Package observability holds the process-wide Prometheus collectors for the
// carbon service.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	entryPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ecotrack",
		Subsystem: "persistence",
		Name:      "last_entry_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent entry written to the store.",
	})
	entryWritesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ecotrack",
		Subsystem: "persistence",
		Name:      "entry_writes_total",
		Help:      "Entry writes grouped by operation (create, update, delete).",
	}, []string{"operation"})
	aggregationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ecotrack",
		Subsystem: "engine",
		Name:      "aggregation_duration_seconds",
		Help:      "Time spent loading entries and computing an aggregation.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"kind"})
	aggregatedEntriesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ecotrack",
		Subsystem: "engine",
		Name:      "entries_aggregated_total",
		Help:      "Entries fed into aggregations, grouped by kind.",
	}, []string{"kind"})
	unknownDetailCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ecotrack",
		Subsystem: "engine",
		Name:      "unknown_activity_details_total",
		Help:      "Entries logged with a detail missing from the emission catalog.",
	})
)

func init() {
	prometheus.MustRegister(entryPersistGauge, entryWritesCounter, aggregationDuration, aggregatedEntriesCounter, unknownDetailCounter)
}

// RecordEntryPersisted updates the persistence watermark gauge.
func RecordEntryPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	entryPersistGauge.Set(float64(ts.Unix()))
}

// RecordEntryWrite counts a store mutation.
func RecordEntryWrite(operation string) {
	entryWritesCounter.WithLabelValues(operation).Inc()
}

// ObserveAggregation records the duration of one aggregation of n entries.
func ObserveAggregation(kind string, n int, started time.Time) {
	aggregationDuration.WithLabelValues(kind).Observe(time.Since(started).Seconds())
	aggregatedEntriesCounter.WithLabelValues(kind).Add(float64(n))
}

// RecordUnknownDetail counts an entry valued at factor 0 because its detail
// is not in the catalog.
func RecordUnknownDetail() {
	unknownDetailCounter.Inc()
}
