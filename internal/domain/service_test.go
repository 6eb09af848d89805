package domain_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"example.com/ecotrack/internal/carbon"
	"example.com/ecotrack/internal/domain"
	"example.com/ecotrack/internal/persistence/memory"
)

var fixedNow = time.Date(2026, time.October, 17, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T, opts ...domain.Option) (*domain.Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	opts = append([]domain.Option{domain.WithClock(func() time.Time { return fixedNow })}, opts...)
	return domain.NewService(store, store, opts...), store
}

func seed(t *testing.T, store *memory.Store, entries ...carbon.Entry) {
	t.Helper()
	for _, e := range entries {
		_, err := store.Create(context.Background(), e)
		require.NoError(t, err)
	}
}

func TestLogEntryDerivesImpactAndAssignsID(t *testing.T) {
	svc, _ := newService(t)

	entry, err := svc.LogEntry(context.Background(), carbon.EntryInput{
		ActivityType:   carbon.ActivityMeal,
		ActivityDetail: "Beef Meal",
		Amount:         2,
		UserID:         "u1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, entry.ID)
	require.Equal(t, 13.22, entry.CO2Impact)
	require.Equal(t, fixedNow, entry.Timestamp)

	stored, err := svc.GetEntry(context.Background(), entry.ID)
	require.NoError(t, err)
	require.Equal(t, entry, stored)
}

func TestLogEntryWarnsOnUnknownDetail(t *testing.T) {
	var buf bytes.Buffer
	svc, _ := newService(t, domain.WithLogger(zerolog.New(&buf)))

	entry, err := svc.LogEntry(context.Background(), carbon.EntryInput{
		ActivityType:   carbon.ActivityTransport,
		ActivityDetail: "Scooter (per mile)",
		Amount:         3,
	})
	require.NoError(t, err)
	require.Zero(t, entry.CO2Impact)
	require.Equal(t, carbon.AnonymousUserID, entry.UserID)
	require.Contains(t, buf.String(), `"level":"warn"`)
	require.Contains(t, buf.String(), "Scooter (per mile)")
}

func TestLogEntryRejectsInvalidInput(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.LogEntry(context.Background(), carbon.EntryInput{
		ActivityType:   carbon.ActivityMeal,
		ActivityDetail: "Beef Meal",
		Amount:         -1,
	})
	require.ErrorIs(t, err, carbon.ErrInvalidAmount)
}

func TestReviseAndDeleteRequireOwnership(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	entry, err := svc.LogEntry(ctx, carbon.EntryInput{
		ActivityType: carbon.ActivityTransport, ActivityDetail: "Car (per mile)", Amount: 10, UserID: "owner",
	})
	require.NoError(t, err)

	update := carbon.EntryInput{ActivityType: carbon.ActivityTransport, ActivityDetail: "Bus (per mile)", Amount: 10}

	_, err = svc.ReviseEntry(ctx, "intruder", entry.ID, update)
	require.ErrorIs(t, err, domain.ErrNotOwner)
	require.ErrorIs(t, svc.DeleteEntry(ctx, "intruder", entry.ID), domain.ErrNotOwner)

	revised, err := svc.ReviseEntry(ctx, "owner", entry.ID, update)
	require.NoError(t, err)
	require.Equal(t, 0.89, revised.CO2Impact)
	require.Equal(t, entry.Timestamp, revised.Timestamp)

	require.NoError(t, svc.DeleteEntry(ctx, "owner", entry.ID))
	_, err = svc.GetEntry(ctx, entry.ID)
	require.ErrorIs(t, err, domain.ErrEntryNotFound)

	_, err = svc.ReviseEntry(ctx, "owner", "missing", update)
	require.ErrorIs(t, err, domain.ErrEntryNotFound)
}

func TestWeeklyProgressUsesProfileGoal(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	seed(t, store,
		carbon.Entry{UserID: "u1", CO2Impact: 10, Timestamp: fixedNow.Add(-time.Hour)},
		carbon.Entry{UserID: "u1", CO2Impact: 99, Timestamp: fixedNow.AddDate(0, 0, -8)},
		carbon.Entry{UserID: "u2", CO2Impact: 5, Timestamp: fixedNow.Add(-time.Hour)},
	)

	progress, err := svc.WeeklyProgress(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 10.0, progress.TotalKg)
	require.Equal(t, carbon.DefaultWeeklyGoalKg, progress.GoalKg)
	require.InDelta(t, 0.2, progress.Percent, 1e-9)

	_, err = svc.UpdateProfile(ctx, domain.Profile{UserID: "u1", WeeklyGoalKg: 20})
	require.NoError(t, err)
	progress, err = svc.WeeklyProgress(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 20.0, progress.GoalKg)
	require.InDelta(t, 0.5, progress.Percent, 1e-9)

	community, err := svc.WeeklyProgress(ctx, "")
	require.NoError(t, err)
	require.Equal(t, 15.0, community.TotalKg)
}

func TestMonthlySummaryHasTwelveBuckets(t *testing.T) {
	svc, store := newService(t)
	seed(t, store, carbon.Entry{UserID: "u1", CO2Impact: 4, Timestamp: fixedNow.AddDate(0, 0, -1)})

	buckets, err := svc.MonthlySummary(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, buckets, carbon.HistogramBuckets)
	require.Equal(t, "2026-10", buckets[11].Month)
	require.Equal(t, 4.0, buckets[11].TotalKg)

	buckets, err = svc.MonthlySummary(context.Background(), "nobody")
	require.NoError(t, err)
	require.Len(t, buckets, carbon.HistogramBuckets)
	require.Zero(t, buckets[11].TotalKg)
}

func TestLeaderboardResolvesProfilesAndClampsLimit(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t, domain.WithLeaderboardLimits(1, 2))
	seed(t, store,
		carbon.Entry{UserID: "u1", CO2Impact: 3, Timestamp: fixedNow},
		carbon.Entry{UserID: "u2", CO2Impact: 9, Timestamp: fixedNow},
		carbon.Entry{UserID: "u3", CO2Impact: 1, Timestamp: fixedNow},
	)
	_, err := svc.UpdateProfile(ctx, domain.Profile{UserID: "u2", DisplayName: "Robin"})
	require.NoError(t, err)

	board, err := svc.Leaderboard(ctx, domain.LeaderboardRequest{})
	require.NoError(t, err)
	require.Len(t, board.Rows, 1)
	require.Equal(t, "Robin", board.Rows[0].Label)
	require.Equal(t, 13.0, board.CommunityTotalKg)

	board, err = svc.Leaderboard(ctx, domain.LeaderboardRequest{Limit: 500, Viewer: &carbon.Viewer{UserID: "u1", Email: "u1@example.com"}})
	require.NoError(t, err)
	require.Len(t, board.Rows, 2)
	require.Equal(t, "You (u1@example.com)", board.Rows[1].Label)
}

func TestExportGroupsEveryEntry(t *testing.T) {
	svc, store := newService(t)
	seed(t, store,
		carbon.Entry{UserID: "u1", CO2Impact: 3, Timestamp: fixedNow.Add(-time.Hour)},
		carbon.Entry{UserID: "u2", CO2Impact: 9, Timestamp: fixedNow},
		carbon.Entry{UserID: "u1", CO2Impact: 1, Timestamp: fixedNow.Add(-2 * time.Hour)},
	)

	x, err := svc.Export(context.Background(), carbon.ExportPerUser)
	require.NoError(t, err)
	require.Equal(t, 3, x.RowCount())
	require.Len(t, x.Groups, 2)
	require.Equal(t, "u2", x.Groups[0].Key, "groups follow newest-first order of first appearance")
}

func TestProfileDefaultsAndValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	p, err := svc.Profile(ctx, "u9")
	require.NoError(t, err)
	require.Equal(t, domain.Profile{UserID: "u9"}, p)

	_, err = svc.UpdateProfile(ctx, domain.Profile{UserID: "u9", WeeklyGoalKg: -1})
	require.ErrorIs(t, err, carbon.ErrInvalidGoal)

	_, err = svc.UpdateProfile(ctx, domain.Profile{})
	require.Error(t, err)

	updated, err := svc.UpdateProfile(ctx, domain.Profile{UserID: "u9", DisplayName: "  Nine "})
	require.NoError(t, err)
	require.Equal(t, "Nine", updated.DisplayName)
	require.Equal(t, fixedNow, updated.UpdatedAt)
}

func TestRecentEntriesClampsLimit(t *testing.T) {
	svc, store := newService(t)
	for i := 0; i < domain.MaxPageSize+5; i++ {
		seed(t, store, carbon.Entry{UserID: "u1", Timestamp: fixedNow.Add(-time.Duration(i) * time.Minute)})
	}

	page, next, err := svc.RecentEntries(context.Background(), nil, 1000)
	require.NoError(t, err)
	require.Len(t, page, domain.MaxPageSize)
	require.NotNil(t, next)

	page, _, err = svc.RecentEntries(context.Background(), nil, 0)
	require.NoError(t, err)
	require.Len(t, page, domain.DefaultPageSize)
}

type failingProfiles struct{ calls int }

func (f *failingProfiles) GetProfile(context.Context, string) (*domain.Profile, error) {
	f.calls++
	return nil, errors.New("profile store offline")
}

func (f *failingProfiles) UpsertProfile(context.Context, domain.Profile) (domain.Profile, error) {
	return domain.Profile{}, errors.New("profile store offline")
}

func TestCachingResolverDegradesOnStoreFailure(t *testing.T) {
	profiles := &failingProfiles{}
	r := domain.NewCachingResolver(context.Background(), profiles, zerolog.Nop())

	_, ok := r.ResolveLabel("u1")
	require.False(t, ok)
	_, ok = r.ResolveLabel("u2")
	require.False(t, ok)
	require.Equal(t, 1, profiles.calls)
}

func TestCachingResolverMemoizes(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	_, err := store.UpsertProfile(ctx, domain.Profile{UserID: "u1", DisplayName: "Jo"})
	require.NoError(t, err)

	r := domain.NewCachingResolver(ctx, store, zerolog.Nop())
	name, ok := r.ResolveLabel("u1")
	require.True(t, ok)
	require.Equal(t, "Jo", name)

	_, err = store.UpsertProfile(ctx, domain.Profile{UserID: "u1", DisplayName: "Changed"})
	require.NoError(t, err)
	name, _ = r.ResolveLabel("u1")
	require.Equal(t, "Jo", name)

	_, ok = r.ResolveLabel("u2")
	require.False(t, ok)
}
