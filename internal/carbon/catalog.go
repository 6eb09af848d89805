// Package carbon holds the emission catalog and the pure aggregations that
// turn logged activities into weekly progress, monthly history, a community
// leaderboard and export rows.
package carbon

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ActivityType is the coarse category of a logged activity.
type ActivityType string

const (
	ActivityTransport ActivityType = "Transport"
	ActivityMeal      ActivityType = "Meal"
	ActivityEnergy    ActivityType = "Energy"
)

// ActivityTypes lists the supported categories in display order.
var ActivityTypes = []ActivityType{ActivityTransport, ActivityMeal, ActivityEnergy}

// Emission describes one catalog row: kg CO2 emitted per unit of the detail.
type Emission struct {
	Detail string       `json:"detail"`
	Type   ActivityType `json:"activity_type"`
	Unit   string       `json:"unit"`
	Factor float64      `json:"kg_co2_per_unit"`
}

// Catalog is the fixed emission-factor table, grouped and ordered by type.
var Catalog = []Emission{
	{Detail: "Car (per mile)", Type: ActivityTransport, Unit: "mile", Factor: 0.404},
	{Detail: "Bus (per mile)", Type: ActivityTransport, Unit: "mile", Factor: 0.089},
	{Detail: "Train (per mile)", Type: ActivityTransport, Unit: "mile", Factor: 0.041},
	{Detail: "Bike (per mile)", Type: ActivityTransport, Unit: "mile", Factor: 0.0},
	{Detail: "Walk (per mile)", Type: ActivityTransport, Unit: "mile", Factor: 0.0},
	{Detail: "Electric Vehicle (per mile)", Type: ActivityTransport, Unit: "mile", Factor: 0.15},
	{Detail: "Beef Meal", Type: ActivityMeal, Unit: "meal", Factor: 6.61},
	{Detail: "Chicken Meal", Type: ActivityMeal, Unit: "meal", Factor: 2.33},
	{Detail: "Vegetarian Meal", Type: ActivityMeal, Unit: "meal", Factor: 1.0},
	{Detail: "Vegan Meal", Type: ActivityMeal, Unit: "meal", Factor: 0.68},
	{Detail: "Electricity (per kWh)", Type: ActivityEnergy, Unit: "kWh", Factor: 0.92},
	{Detail: "Natural Gas (per therm)", Type: ActivityEnergy, Unit: "therm", Factor: 5.3},
}

var catalogIndex = func() map[string]Emission {
	idx := make(map[string]Emission, len(Catalog))
	for _, e := range Catalog {
		idx[e.Detail] = e
	}
	return idx
}()

// ParseActivityType maps user input onto a known ActivityType, ignoring case.
func ParseActivityType(raw string) (ActivityType, error) {
	for _, t := range ActivityTypes {
		if strings.EqualFold(strings.TrimSpace(raw), string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidActivityType, raw)
}

// Details returns the catalog details available for the activity type.
func Details(t ActivityType) []string {
	var out []string
	for _, e := range Catalog {
		if e.Type == t {
			out = append(out, e.Detail)
		}
	}
	return out
}

// Lookup returns the catalog row for detail.
func Lookup(detail string) (Emission, bool) {
	e, ok := catalogIndex[detail]
	return e, ok
}

// Factor returns the emission factor for detail, or 0 when the detail is not
// in the catalog.
func Factor(detail string) float64 {
	return catalogIndex[detail].Factor
}

// Impact computes the kg CO2 attributed to amount units of detail, rounded to
// two decimals.
func Impact(detail string, amount float64) (float64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}
	return Round2(Factor(detail) * amount), nil
}

// ParseAmount parses a user supplied amount. Blank, non-numeric, non-finite
// and negative values are rejected.
func ParseAmount(raw string) (float64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	if err := checkAmount(v); err != nil {
		return 0, err
	}
	return v, nil
}

func checkAmount(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, v)
	}
	if v < 0 {
		return fmt.Errorf("%w: negative amount %v", ErrInvalidAmount, v)
	}
	return nil
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
