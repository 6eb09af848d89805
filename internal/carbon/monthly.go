package carbon

import (
	"math"
	"time"
)

// HistogramBuckets is the number of monthly buckets reported.
const HistogramBuckets = 12

// Labels step back from the first of the month by a fixed 30-day stride, not
// by calendar months, so a label can repeat or a month can be skipped.
const (
	histogramStrideDays   = 30
	histogramLookbackDays = 365
	monthLayout           = "2006-01"
)

// MonthBucket is one labelled bar of the monthly history.
type MonthBucket struct {
	Month   string  `json:"month"`
	TotalKg float64 `json:"total_kg"`
}

// HistogramWindowStart is the earliest timestamp that contributes to the
// monthly history for now.
func HistogramWindowStart(now time.Time) time.Time {
	return firstOfMonth(now).AddDate(0, 0, -histogramLookbackDays)
}

// HistogramLabels returns the twelve month labels, oldest first.
func HistogramLabels(now time.Time) []string {
	first := firstOfMonth(now)
	labels := make([]string, 0, HistogramBuckets)
	for i := HistogramBuckets - 1; i >= 0; i-- {
		labels = append(labels, first.AddDate(0, 0, -histogramStrideDays*i).Format(monthLayout))
	}
	return labels
}

// MonthlyHistogram accumulates absolute impact per year-month and pairs it
// with the twelve labels for now. The result always has HistogramBuckets
// elements.
func MonthlyHistogram(entries []Entry, now time.Time) []MonthBucket {
	start := HistogramWindowStart(now)
	loc := now.Location()

	totals := make(map[string]float64)
	for _, e := range entries {
		if !e.WellFormed() || e.Timestamp.Before(start) {
			continue
		}
		totals[e.Timestamp.In(loc).Format(monthLayout)] += math.Abs(e.CO2Impact)
	}

	labels := HistogramLabels(now)
	buckets := make([]MonthBucket, len(labels))
	for i, label := range labels {
		buckets[i] = MonthBucket{Month: label, TotalKg: Round2(totals[label])}
	}
	return buckets
}

func firstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
