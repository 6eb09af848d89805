package carbon

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func leaderboardFixture() []Entry {
	ts := time.Date(2026, time.October, 1, 10, 0, 0, 0, time.UTC)
	return []Entry{
		{ID: "1", UserID: "alice", CO2Impact: 10, Timestamp: ts},
		{ID: "2", UserID: "alice", CO2Impact: -2.5, Timestamp: ts},
		{ID: "3", UserID: "bob", CO2Impact: 30, Timestamp: ts},
		{ID: "4", UserID: AnonymousUserID, CO2Impact: 1, Timestamp: ts},
		{ID: "5", UserID: "carol", CO2Impact: 12.5, Timestamp: ts},
		{ID: "6", UserID: "dave", CO2Impact: math.NaN(), Timestamp: ts},
	}
}

func TestRankLeaderboardTotalsAndCommunity(t *testing.T) {
	lb := RankLeaderboard(leaderboardFixture(), LeaderboardQuery{})

	require.Equal(t, 56.0, lb.CommunityTotalKg)
	require.Equal(t, 4, lb.Users)
	require.Len(t, lb.Rows, 4)

	require.Equal(t, LeaderboardRow{Rank: 1, UserID: "bob", Label: "bob", TotalKg: 30}, lb.Rows[0])
	// alice and carol tie on 12.5 and fall back to label order.
	require.Equal(t, "alice", lb.Rows[1].UserID)
	require.Equal(t, 12.5, lb.Rows[1].TotalKg)
	require.Equal(t, "carol", lb.Rows[2].UserID)
	require.Equal(t, LeaderboardRow{Rank: 4, UserID: AnonymousUserID, Label: AnonymousLabel, TotalKg: 1}, lb.Rows[3])
}

func TestRankLeaderboardSumOfRowsEqualsCommunity(t *testing.T) {
	lb := RankLeaderboard(leaderboardFixture(), LeaderboardQuery{})
	var sum float64
	for _, r := range lb.Rows {
		sum += r.TotalKg
	}
	require.InDelta(t, lb.CommunityTotalKg, sum, 1e-9)
}

func TestRankLeaderboardNameSortUsesResolvedLabels(t *testing.T) {
	names := DisplayNames{"bob": "Zed", "carol": "ada", "alice": ""}
	lb := RankLeaderboard(leaderboardFixture(), LeaderboardQuery{Sort: SortByName, Resolver: names})

	labels := make([]string, 0, len(lb.Rows))
	for _, r := range lb.Rows {
		labels = append(labels, r.Label)
	}
	require.Equal(t, []string{"ada", "alice", AnonymousLabel, "Zed"}, labels)
	for i, r := range lb.Rows {
		require.Equal(t, i+1, r.Rank)
	}
}

func TestRankLeaderboardViewerLabel(t *testing.T) {
	viewer := &Viewer{UserID: "carol", Email: "carol@example.com"}
	lb := RankLeaderboard(leaderboardFixture(), LeaderboardQuery{Viewer: viewer, Resolver: DisplayNames{"carol": "Carol"}})

	var found bool
	for _, r := range lb.Rows {
		if r.UserID == "carol" {
			require.Equal(t, "You (carol@example.com)", r.Label)
			found = true
		}
	}
	require.True(t, found)
}

func TestRankLeaderboardAnonymousBeatsViewer(t *testing.T) {
	viewer := &Viewer{UserID: AnonymousUserID, Email: "nobody@example.com"}
	lb := RankLeaderboard(leaderboardFixture(), LeaderboardQuery{Viewer: viewer, Search: "anon"})

	require.Len(t, lb.Rows, 1)
	require.Equal(t, AnonymousLabel, lb.Rows[0].Label)
}

func TestRankLeaderboardSearchIsCaseInsensitive(t *testing.T) {
	lb := RankLeaderboard(leaderboardFixture(), LeaderboardQuery{Search: "ANON"})
	require.Len(t, lb.Rows, 1)
	require.Equal(t, AnonymousUserID, lb.Rows[0].UserID)
	require.Equal(t, 56.0, lb.CommunityTotalKg, "community total ignores the search filter")

	lb = RankLeaderboard(leaderboardFixture(), LeaderboardQuery{Search: "  "})
	require.Len(t, lb.Rows, 4)
}

func TestRankLeaderboardSearchMatchesUserID(t *testing.T) {
	lb := RankLeaderboard(leaderboardFixture(), LeaderboardQuery{
		Search:   "BOB",
		Resolver: DisplayNames{"bob": "Robert"},
	})
	require.Len(t, lb.Rows, 1)
	require.Equal(t, "Robert", lb.Rows[0].Label)
}

func TestRankLeaderboardNoMatchIsEmpty(t *testing.T) {
	lb := RankLeaderboard(leaderboardFixture(), LeaderboardQuery{Search: "zzz"})
	require.True(t, lb.Empty())
	require.NotNil(t, lb.Rows)
}

func TestRankLeaderboardLimit(t *testing.T) {
	ts := time.Now()
	var entries []Entry
	for i := 0; i < DefaultLeaderboardLimit+10; i++ {
		entries = append(entries, Entry{UserID: fmt.Sprintf("user-%02d", i), CO2Impact: float64(i), Timestamp: ts})
	}

	lb := RankLeaderboard(entries, LeaderboardQuery{})
	require.Len(t, lb.Rows, DefaultLeaderboardLimit)
	require.Equal(t, DefaultLeaderboardLimit+10, lb.Users)

	lb = RankLeaderboard(entries, LeaderboardQuery{Limit: 3})
	require.Len(t, lb.Rows, 3)
	require.Equal(t, float64(DefaultLeaderboardLimit+9), lb.Rows[0].TotalKg)
}

func TestRankLeaderboardTieBreaksOnUserID(t *testing.T) {
	ts := time.Now()
	entries := []Entry{
		{UserID: "u2", CO2Impact: 5, Timestamp: ts},
		{UserID: "u1", CO2Impact: 5, Timestamp: ts},
	}
	names := DisplayNames{"u1": "Sam", "u2": "Sam"}

	for i := 0; i < 5; i++ {
		lb := RankLeaderboard(entries, LeaderboardQuery{Resolver: names})
		require.Equal(t, "u1", lb.Rows[0].UserID)
		require.Equal(t, "u2", lb.Rows[1].UserID)
	}
}

func TestRankLeaderboardTiesOnDisplayedTotal(t *testing.T) {
	ts := time.Now()
	lb := RankLeaderboard([]Entry{
		{UserID: "bob", CO2Impact: 0.1, Timestamp: ts},
		{UserID: "bob", CO2Impact: 0.2, Timestamp: ts},
		{UserID: "alice", CO2Impact: 0.3, Timestamp: ts},
	}, LeaderboardQuery{})

	require.Len(t, lb.Rows, 2)
	require.Equal(t, LeaderboardRow{Rank: 1, UserID: "alice", Label: "alice", TotalKg: 0.3}, lb.Rows[0])
	require.Equal(t, LeaderboardRow{Rank: 2, UserID: "bob", Label: "bob", TotalKg: 0.3}, lb.Rows[1])
}

func TestRankLeaderboardBlankOwnerGroupsAsUnknown(t *testing.T) {
	ts := time.Now()
	lb := RankLeaderboard([]Entry{
		{UserID: "", CO2Impact: 2, Timestamp: ts},
		{UserID: "  ", CO2Impact: 3, Timestamp: ts},
	}, LeaderboardQuery{})
	require.Len(t, lb.Rows, 1)
	require.Equal(t, UnknownUserID, lb.Rows[0].UserID)
	require.Equal(t, 5.0, lb.Rows[0].TotalKg)
}

func TestParseSortMode(t *testing.T) {
	got, err := ParseSortMode("")
	require.NoError(t, err)
	require.Equal(t, SortByTotal, got)

	got, err = ParseSortMode("Name")
	require.NoError(t, err)
	require.Equal(t, SortByName, got)

	_, err = ParseSortMode("random")
	require.Error(t, err)
}
