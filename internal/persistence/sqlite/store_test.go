package sqlite

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/ecotrack/internal/carbon"
	"example.com/ecotrack/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreEntryLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	ts := time.Date(2026, time.October, 2, 8, 15, 0, 123, time.UTC)

	created, err := store.Create(ctx, carbon.Entry{
		ActivityType:   carbon.ActivityMeal,
		ActivityDetail: "Beef Meal",
		Amount:         2,
		CO2Impact:      13.22,
		Description:    "bbq",
		Timestamp:      ts,
		UserID:         "u1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, created.ID, got.ID)
	require.Equal(t, 13.22, got.CO2Impact)
	require.True(t, ts.Equal(got.Timestamp))
	require.Equal(t, carbon.ActivityMeal, got.ActivityType)

	created.Description = "family bbq"
	created.Amount = 3
	require.NoError(t, store.Update(ctx, created))
	got, err = store.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "family bbq", got.Description)
	require.Equal(t, 3.0, got.Amount)

	require.NoError(t, store.Delete(ctx, created.ID))
	got, err = store.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Nil(t, got)

	require.ErrorIs(t, store.Delete(ctx, created.ID), domain.ErrEntryNotFound)
	require.ErrorIs(t, store.Update(ctx, created), domain.ErrEntryNotFound)
}

func TestStoreMalformedRowsDecodeAsMissing(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	created, err := store.Create(ctx, carbon.Entry{
		ActivityType:   carbon.ActivityEnergy,
		ActivityDetail: "Electricity (per kWh)",
		Amount:         math.NaN(),
		CO2Impact:      math.NaN(),
		UserID:         "u1",
	})
	require.NoError(t, err)

	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, math.IsNaN(got.Amount))
	require.True(t, math.IsNaN(got.CO2Impact))
	require.True(t, got.Timestamp.IsZero())
	require.False(t, got.WellFormed())

	all, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestStoreListSinceAndRecent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	base := time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := store.Create(ctx, carbon.Entry{UserID: "u1", CO2Impact: float64(i), Timestamp: base.Add(time.Duration(i) * time.Hour)})
		require.NoError(t, err)
	}

	since, err := store.ListSince(ctx, base.Add(3*time.Hour))
	require.NoError(t, err)
	require.Len(t, since, 2)
	require.Equal(t, 4.0, since[0].CO2Impact)

	page, next, err := store.ListRecent(ctx, nil, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.True(t, page[0].Timestamp.Equal(base.Add(4*time.Hour)))
	require.NotNil(t, next)

	seen := map[string]bool{}
	for _, e := range page {
		seen[e.ID] = true
	}
	for next != nil {
		page, next, err = store.ListRecent(ctx, next, 2)
		require.NoError(t, err)
		for _, e := range page {
			require.False(t, seen[e.ID], "entry %s returned twice", e.ID)
			seen[e.ID] = true
		}
	}
	require.Len(t, seen, 5)
}

func TestStoreProfileUpsertMerges(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	missing, err := store.GetProfile(ctx, "u1")
	require.NoError(t, err)
	require.Nil(t, missing)

	p, err := store.UpsertProfile(ctx, domain.Profile{UserID: "u1", DisplayName: "Jo", WeeklyGoalKg: 40})
	require.NoError(t, err)
	require.Equal(t, "Jo", p.DisplayName)
	require.Equal(t, 40.0, p.WeeklyGoalKg)

	p, err = store.UpsertProfile(ctx, domain.Profile{UserID: "u1", Location: "Lisbon"})
	require.NoError(t, err)
	require.Equal(t, "Jo", p.DisplayName)
	require.Equal(t, "Lisbon", p.Location)
	require.Equal(t, 40.0, p.WeeklyGoalKg)
}

func TestStoreBacksService(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Date(2026, time.October, 17, 12, 0, 0, 0, time.UTC)
	svc := domain.NewService(store, store, domain.WithClock(func() time.Time { return now }))

	_, err := svc.LogEntry(ctx, carbon.EntryInput{
		ActivityType:   carbon.ActivityTransport,
		ActivityDetail: "Car (per mile)",
		Amount:         10,
		UserID:         "u1",
	})
	require.NoError(t, err)

	progress, err := svc.WeeklyProgress(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 4.04, progress.TotalKg)
}
