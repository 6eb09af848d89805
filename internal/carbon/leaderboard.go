package carbon

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// SortMode selects the leaderboard ordering.
type SortMode string

const (
	SortByTotal SortMode = "total"
	SortByName  SortMode = "name"
)

// DefaultLeaderboardLimit caps the rows returned when no limit is given.
const DefaultLeaderboardLimit = 50

// ParseSortMode maps user input onto a SortMode. Blank input selects SortByTotal.
func ParseSortMode(raw string) (SortMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(SortByTotal):
		return SortByTotal, nil
	case string(SortByName):
		return SortByName, nil
	default:
		return "", fmt.Errorf("unknown sort mode %q", raw)
	}
}

// LeaderboardQuery parameterises RankLeaderboard.
type LeaderboardQuery struct {
	Search   string
	Sort     SortMode
	Viewer   *Viewer
	Limit    int
	Resolver LabelResolver
}

// LeaderboardRow is one ranked user.
type LeaderboardRow struct {
	Rank    int     `json:"rank"`
	UserID  string  `json:"user_id"`
	Label   string  `json:"label"`
	TotalKg float64 `json:"total_kg"`
}

// Leaderboard is the ranked, filtered and capped community view.
type Leaderboard struct {
	CommunityTotalKg float64          `json:"community_total_kg"`
	Users            int              `json:"users"`
	Rows             []LeaderboardRow `json:"rows"`
}

// Empty reports whether there is nothing to show.
func (l Leaderboard) Empty() bool {
	return len(l.Rows) == 0
}

// rankedUser carries the displayed (rounded) total so that rows showing the
// same figure fall through to the label tie-break.
type rankedUser struct {
	userID string
	label  string
	folded string
	total  float64
}

// RankLeaderboard reduces entries into per-user totals, labels them, applies
// the search filter and sort policy and truncates to the limit. The community
// total covers every user regardless of search and limit.
func RankLeaderboard(entries []Entry, q LeaderboardQuery) Leaderboard {
	totals := make(map[string]float64)
	var community float64
	for _, e := range entries {
		if !e.WellFormed() {
			continue
		}
		impact := math.Abs(e.CO2Impact)
		totals[e.Owner()] += impact
		community += impact
	}

	fold := cases.Fold()
	needle := fold.String(strings.TrimSpace(q.Search))

	users := make([]rankedUser, 0, len(totals))
	for userID, total := range totals {
		label := viewerLabel(userID, q.Viewer, q.Resolver)
		folded := fold.String(label)
		if needle != "" && !strings.Contains(folded, needle) && !strings.Contains(fold.String(userID), needle) {
			continue
		}
		users = append(users, rankedUser{userID: userID, label: label, folded: folded, total: Round2(total)})
	}

	sort.Slice(users, func(i, j int) bool {
		a, b := users[i], users[j]
		if q.Sort != SortByName && a.total != b.total {
			return a.total > b.total
		}
		if a.folded != b.folded {
			return a.folded < b.folded
		}
		if a.label != b.label {
			return a.label < b.label
		}
		return a.userID < b.userID
	})

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	if len(users) > limit {
		users = users[:limit]
	}

	rows := make([]LeaderboardRow, len(users))
	for i, u := range users {
		rows[i] = LeaderboardRow{Rank: i + 1, UserID: u.userID, Label: u.label, TotalKg: u.total}
	}

	return Leaderboard{
		CommunityTotalKg: Round2(community),
		Users:            len(totals),
		Rows:             rows,
	}
}
