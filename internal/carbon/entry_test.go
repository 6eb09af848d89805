package carbon

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewEntryDerivesImpact(t *testing.T) {
	now := time.Date(2026, time.October, 17, 9, 30, 0, 0, time.UTC)

	entry, err := NewEntry(EntryInput{
		ActivityType:   ActivityTransport,
		ActivityDetail: "Car (per mile)",
		Amount:         12.3,
		Description:    "commute",
		UserID:         "user-1",
	}, now)
	require.NoError(t, err)

	require.Empty(t, entry.ID)
	require.Equal(t, 4.97, entry.CO2Impact)
	require.Equal(t, now, entry.Timestamp)
	require.Equal(t, "user-1", entry.UserID)
	require.True(t, entry.KnownDetail())
	require.True(t, entry.WellFormed())
}

func TestNewEntryDefaultsToAnonymousOwner(t *testing.T) {
	entry, err := NewEntry(EntryInput{
		ActivityType:   ActivityMeal,
		ActivityDetail: "Vegan Meal",
		Amount:         1,
	}, time.Now())
	require.NoError(t, err)
	require.Equal(t, AnonymousUserID, entry.UserID)
}

func TestNewEntryValidation(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name string
		in   EntryInput
		want error
	}{
		{"unknown type", EntryInput{ActivityType: "Flight", ActivityDetail: "Car (per mile)", Amount: 1}, ErrInvalidActivityType},
		{"blank detail", EntryInput{ActivityType: ActivityMeal, Amount: 1}, ErrDetailMismatch},
		{"detail of another type", EntryInput{ActivityType: ActivityMeal, ActivityDetail: "Car (per mile)", Amount: 1}, ErrDetailMismatch},
		{"negative amount", EntryInput{ActivityType: ActivityMeal, ActivityDetail: "Beef Meal", Amount: -1}, ErrInvalidAmount},
		{"nan amount", EntryInput{ActivityType: ActivityMeal, ActivityDetail: "Beef Meal", Amount: math.NaN()}, ErrInvalidAmount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewEntry(tc.in, now)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestNewEntryAcceptsUnknownDetailAtZero(t *testing.T) {
	entry, err := NewEntry(EntryInput{
		ActivityType:   ActivityEnergy,
		ActivityDetail: "Heat Pump (per kWh)",
		Amount:         30,
	}, time.Now())
	require.NoError(t, err)
	require.Zero(t, entry.CO2Impact)
	require.False(t, entry.KnownDetail())
}

func TestReviseRecomputesImpactAndKeepsIdentity(t *testing.T) {
	created := time.Date(2026, time.September, 1, 8, 0, 0, 0, time.UTC)
	original := Entry{
		ID:             "entry-1",
		ActivityType:   ActivityTransport,
		ActivityDetail: "Car (per mile)",
		Amount:         10,
		CO2Impact:      4.04,
		Timestamp:      created,
		UserID:         "user-1",
	}

	revised, err := original.Revise(EntryInput{
		ActivityType:   ActivityTransport,
		ActivityDetail: "Train (per mile)",
		Amount:         100,
		Description:    "took the train instead",
		UserID:         "someone-else",
	})
	require.NoError(t, err)

	require.Equal(t, "entry-1", revised.ID)
	require.Equal(t, created, revised.Timestamp)
	require.Equal(t, "user-1", revised.UserID)
	require.Equal(t, 4.1, revised.CO2Impact)
	require.Equal(t, "took the train instead", revised.Description)
	require.Equal(t, 4.04, original.CO2Impact, "original must be left untouched")
}

func TestWellFormed(t *testing.T) {
	require.False(t, Entry{CO2Impact: 1}.WellFormed())
	require.False(t, Entry{CO2Impact: math.NaN(), Timestamp: time.Now()}.WellFormed())
	require.True(t, Entry{CO2Impact: 0, Timestamp: time.Now()}.WellFormed())
}
