package carbon

import (
	"fmt"
	"math"
	"time"
)

const (
	// DefaultWeeklyGoalKg applies when a user has not set a goal.
	DefaultWeeklyGoalKg = 50.0
	// WeeklyWindow is the trailing window used for weekly progress.
	WeeklyWindow = 7 * 24 * time.Hour
)

// Progress is the rolling 7-day total measured against a goal.
type Progress struct {
	TotalKg     float64   `json:"total_kg"`
	GoalKg      float64   `json:"goal_kg"`
	Percent     float64   `json:"percent"`
	WindowStart time.Time `json:"window_start"`
	Entries     int       `json:"entries"`
}

// WeeklyProgress sums the absolute impact of entries stamped at or after
// now-7d and reports it as a fraction of goalKg, capped at 1.
func WeeklyProgress(entries []Entry, now time.Time, goalKg float64) (Progress, error) {
	if goalKg <= 0 || math.IsNaN(goalKg) || math.IsInf(goalKg, 0) {
		return Progress{}, fmt.Errorf("%w: %v", ErrInvalidGoal, goalKg)
	}

	start := now.Add(-WeeklyWindow)
	var total float64
	counted := 0
	for _, e := range entries {
		if !e.WellFormed() || e.Timestamp.Before(start) {
			continue
		}
		total += math.Abs(e.CO2Impact)
		counted++
	}

	return Progress{
		TotalKg:     Round2(total),
		GoalKg:      goalKg,
		Percent:     math.Min(total/goalKg, 1.0),
		WindowStart: start,
		Entries:     counted,
	}, nil
}
