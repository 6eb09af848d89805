package domain

import (
	"context"
	"math"
	"strings"
	"time"

	"example.com/ecotrack/internal/carbon"
)

// Profile carries the optional per-user settings. A zero WeeklyGoalKg means
// the default goal applies.
type Profile struct {
	UserID       string    `json:"user_id"`
	DisplayName  string    `json:"display_name,omitempty"`
	Location     string    `json:"location,omitempty"`
	WeeklyGoalKg float64   `json:"weekly_goal_kg,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

// Merge returns p with every non-empty field of update applied on top.
func (p Profile) Merge(update Profile) Profile {
	if strings.TrimSpace(update.DisplayName) != "" {
		p.DisplayName = strings.TrimSpace(update.DisplayName)
	}
	if strings.TrimSpace(update.Location) != "" {
		p.Location = strings.TrimSpace(update.Location)
	}
	if update.WeeklyGoalKg > 0 {
		p.WeeklyGoalKg = update.WeeklyGoalKg
	}
	if !update.UpdatedAt.IsZero() {
		p.UpdatedAt = update.UpdatedAt
	}
	return p
}

// Goal returns the profile goal or fallback when none is set.
func (p *Profile) Goal(fallback float64) float64 {
	if p == nil || p.WeeklyGoalKg <= 0 || math.IsNaN(p.WeeklyGoalKg) || math.IsInf(p.WeeklyGoalKg, 0) {
		return fallback
	}
	return p.WeeklyGoalKg
}

// Cursor models the keyset pagination token for recent entries.
type Cursor struct {
	Timestamp time.Time
	ID        string
}

// EntryRepository captures entry persistence. Get returns nil without error
// when the entry does not exist; Update and Delete return ErrEntryNotFound.
// List methods return entries ordered by timestamp, newest first.
type EntryRepository interface {
	Create(ctx context.Context, entry carbon.Entry) (carbon.Entry, error)
	Get(ctx context.Context, id string) (*carbon.Entry, error)
	ListAll(ctx context.Context) ([]carbon.Entry, error)
	ListSince(ctx context.Context, since time.Time) ([]carbon.Entry, error)
	ListRecent(ctx context.Context, cursor *Cursor, limit int) ([]carbon.Entry, *Cursor, error)
	Update(ctx context.Context, entry carbon.Entry) error
	Delete(ctx context.Context, id string) error
}

// ProfileRepository captures profile persistence. GetProfile returns nil
// without error for unknown users. UpsertProfile merges non-empty fields into
// the stored profile and returns the result.
type ProfileRepository interface {
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	UpsertProfile(ctx context.Context, profile Profile) (Profile, error)
}
