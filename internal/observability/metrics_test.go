package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func gather(t *testing.T, name string) *dto.MetricFamily {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func counterValue(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	mf := gather(t, name)
	if mf == nil {
		return 0
	}
	for _, m := range mf.GetMetric() {
		if matchLabels(m, labels) {
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func matchLabels(m *dto.Metric, labels map[string]string) bool {
	if len(m.GetLabel()) != len(labels) {
		return false
	}
	for _, lp := range m.GetLabel() {
		if labels[lp.GetName()] != lp.GetValue() {
			return false
		}
	}
	return true
}

func TestRecordEntryPersistedSetsWatermark(t *testing.T) {
	ts := time.Date(2026, time.October, 17, 8, 0, 0, 0, time.UTC)
	RecordEntryPersisted(ts)
	RecordEntryPersisted(time.Time{})

	mf := gather(t, "ecotrack_persistence_last_entry_persisted_timestamp_seconds")
	require.NotNil(t, mf)
	require.Equal(t, float64(ts.Unix()), mf.GetMetric()[0].GetGauge().GetValue())
}

func TestAggregationCounters(t *testing.T) {
	before := counterValue(t, "ecotrack_engine_entries_aggregated_total", map[string]string{"kind": "weekly"})
	ObserveAggregation("weekly", 7, time.Now())
	after := counterValue(t, "ecotrack_engine_entries_aggregated_total", map[string]string{"kind": "weekly"})
	require.Equal(t, before+7, after)

	mf := gather(t, "ecotrack_engine_aggregation_duration_seconds")
	require.NotNil(t, mf)
}

func TestRecordUnknownDetail(t *testing.T) {
	before := counterValue(t, "ecotrack_engine_unknown_activity_details_total", map[string]string{})
	RecordUnknownDetail()
	require.Equal(t, before+1, counterValue(t, "ecotrack_engine_unknown_activity_details_total", map[string]string{}))
}
