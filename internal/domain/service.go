// Package domain orchestrates entry and profile workflows on top of the carbon
// engine and the configured stores.
package domain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"example.com/ecotrack/internal/carbon"
	"example.com/ecotrack/internal/observability"
)

var (
	// ErrEntryNotFound is returned when an entry cannot be located.
	ErrEntryNotFound = errors.New("entry not found")
	// ErrNotOwner is returned when a caller edits or deletes another user's entry.
	ErrNotOwner = errors.New("entry belongs to another user")
)

// Recent entry paging limits.
const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// Service orchestrates entry, aggregation and profile workflows.
type Service struct {
	entries          EntryRepository
	profiles         ProfileRepository
	logger           zerolog.Logger
	now              func() time.Time
	defaultGoal      float64
	leaderboardLimit int
	leaderboardMax   int
}

// Option configures optional behaviour for the Service.
type Option func(*Service)

// WithLogger overrides the logger used for warnings.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithDefaultGoal sets the weekly goal used when a profile has none.
func WithDefaultGoal(kg float64) Option {
	return func(s *Service) {
		if kg > 0 && !math.IsInf(kg, 0) {
			s.defaultGoal = kg
		}
	}
}

// WithLeaderboardLimits sets the default and maximum leaderboard row counts.
func WithLeaderboardLimits(def, ceiling int) Option {
	return func(s *Service) {
		if def > 0 {
			s.leaderboardLimit = def
		}
		if ceiling > 0 {
			s.leaderboardMax = ceiling
		}
	}
}

// NewService constructs a Service.
func NewService(entries EntryRepository, profiles ProfileRepository, opts ...Option) *Service {
	s := &Service{
		entries:          entries,
		profiles:         profiles,
		logger:           zerolog.Nop(),
		now:              time.Now,
		defaultGoal:      carbon.DefaultWeeklyGoalKg,
		leaderboardLimit: carbon.DefaultLeaderboardLimit,
		leaderboardMax:   MaxPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.leaderboardMax < s.leaderboardLimit {
		s.leaderboardMax = s.leaderboardLimit
	}
	return s
}

// LogEntry validates the input, derives the impact and stores the entry.
func (s *Service) LogEntry(ctx context.Context, in carbon.EntryInput) (carbon.Entry, error) {
	entry, err := carbon.NewEntry(in, s.now().UTC())
	if err != nil {
		return carbon.Entry{}, err
	}
	s.warnUnknownDetail(entry)

	created, err := s.entries.Create(ctx, entry)
	if err != nil {
		return carbon.Entry{}, fmt.Errorf("store entry: %w", err)
	}
	return created, nil
}

// GetEntry fetches by ID.
func (s *Service) GetEntry(ctx context.Context, id string) (carbon.Entry, error) {
	entry, err := s.entries.Get(ctx, id)
	if err != nil {
		return carbon.Entry{}, err
	}
	if entry == nil {
		return carbon.Entry{}, ErrEntryNotFound
	}
	return *entry, nil
}

// ReviseEntry replaces the editable fields of an entry owned by actor and
// recomputes its impact.
func (s *Service) ReviseEntry(ctx context.Context, actor, id string, in carbon.EntryInput) (carbon.Entry, error) {
	existing, err := s.GetEntry(ctx, id)
	if err != nil {
		return carbon.Entry{}, err
	}
	if !ownedBy(existing, actor) {
		return carbon.Entry{}, ErrNotOwner
	}

	revised, err := existing.Revise(in)
	if err != nil {
		return carbon.Entry{}, err
	}
	s.warnUnknownDetail(revised)

	if err := s.entries.Update(ctx, revised); err != nil {
		return carbon.Entry{}, err
	}
	return revised, nil
}

// DeleteEntry removes an entry owned by actor.
func (s *Service) DeleteEntry(ctx context.Context, actor, id string) error {
	existing, err := s.GetEntry(ctx, id)
	if err != nil {
		return err
	}
	if !ownedBy(existing, actor) {
		return ErrNotOwner
	}
	return s.entries.Delete(ctx, id)
}

// RecentEntries pages through entries newest first. The limit is clamped to
// [1, MaxPageSize] with DefaultPageSize for non-positive values.
func (s *Service) RecentEntries(ctx context.Context, cursor *Cursor, limit int) ([]carbon.Entry, *Cursor, error) {
	return s.entries.ListRecent(ctx, cursor, clampLimit(limit, DefaultPageSize, MaxPageSize))
}

// WeeklyProgress reports the rolling 7-day total for userID against the
// user's goal. An empty userID aggregates the whole community against the
// default goal.
func (s *Service) WeeklyProgress(ctx context.Context, userID string) (carbon.Progress, error) {
	started := time.Now()
	now := s.now()

	entries, err := s.entries.ListSince(ctx, now.Add(-carbon.WeeklyWindow))
	if err != nil {
		return carbon.Progress{}, err
	}
	entries = filterOwner(entries, userID)

	goal := s.defaultGoal
	if userID != "" {
		profile, err := s.profiles.GetProfile(ctx, userID)
		if err != nil {
			return carbon.Progress{}, err
		}
		goal = profile.Goal(s.defaultGoal)
	}

	progress, err := carbon.WeeklyProgress(entries, now, goal)
	if err != nil {
		return carbon.Progress{}, err
	}
	observability.ObserveAggregation("weekly", len(entries), started)
	return progress, nil
}

// MonthlySummary returns the twelve monthly buckets for userID, or for
// everyone when userID is empty.
func (s *Service) MonthlySummary(ctx context.Context, userID string) ([]carbon.MonthBucket, error) {
	started := time.Now()
	now := s.now()

	entries, err := s.entries.ListSince(ctx, carbon.HistogramWindowStart(now))
	if err != nil {
		return nil, err
	}
	entries = filterOwner(entries, userID)

	buckets := carbon.MonthlyHistogram(entries, now)
	observability.ObserveAggregation("monthly", len(entries), started)
	return buckets, nil
}

// LeaderboardRequest carries the caller-controlled leaderboard parameters.
type LeaderboardRequest struct {
	Search string
	Sort   carbon.SortMode
	Limit  int
	Viewer *carbon.Viewer
}

// Leaderboard ranks every user across all stored entries.
func (s *Service) Leaderboard(ctx context.Context, req LeaderboardRequest) (carbon.Leaderboard, error) {
	started := time.Now()

	entries, err := s.entries.ListAll(ctx)
	if err != nil {
		return carbon.Leaderboard{}, err
	}

	board := carbon.RankLeaderboard(entries, carbon.LeaderboardQuery{
		Search:   req.Search,
		Sort:     req.Sort,
		Viewer:   req.Viewer,
		Limit:    clampLimit(req.Limit, s.leaderboardLimit, s.leaderboardMax),
		Resolver: NewCachingResolver(ctx, s.profiles, s.logger),
	})
	observability.ObserveAggregation("leaderboard", len(entries), started)
	return board, nil
}

// Export groups every stored entry, newest first, for download.
func (s *Service) Export(ctx context.Context, mode carbon.ExportMode) (carbon.Export, error) {
	started := time.Now()

	entries, err := s.entries.ListAll(ctx)
	if err != nil {
		return carbon.Export{}, err
	}

	export := carbon.GroupExport(entries, NewCachingResolver(ctx, s.profiles, s.logger), mode)
	observability.ObserveAggregation("export", len(entries), started)
	return export, nil
}

// Profile returns the stored profile for userID, or an empty profile.
func (s *Service) Profile(ctx context.Context, userID string) (Profile, error) {
	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	if profile == nil {
		return Profile{UserID: userID}, nil
	}
	return *profile, nil
}

// UpdateProfile merges the non-empty fields of update into the stored
// profile. A negative or non-finite goal is rejected.
func (s *Service) UpdateProfile(ctx context.Context, update Profile) (Profile, error) {
	if strings.TrimSpace(update.UserID) == "" {
		return Profile{}, errors.New("profile user id is required")
	}
	if update.WeeklyGoalKg < 0 || math.IsNaN(update.WeeklyGoalKg) || math.IsInf(update.WeeklyGoalKg, 0) {
		return Profile{}, fmt.Errorf("%w: %v", carbon.ErrInvalidGoal, update.WeeklyGoalKg)
	}
	update.UpdatedAt = s.now().UTC()
	return s.profiles.UpsertProfile(ctx, update)
}

// DefaultGoal reports the goal applied to users without one.
func (s *Service) DefaultGoal() float64 {
	return s.defaultGoal
}

func (s *Service) warnUnknownDetail(entry carbon.Entry) {
	if entry.KnownDetail() {
		return
	}
	observability.RecordUnknownDetail()
	s.logger.Warn().
		Str("activity_type", string(entry.ActivityType)).
		Str("activity_detail", entry.ActivityDetail).
		Str("user_id", entry.UserID).
		Msg("activity detail not in emission catalog, impact valued at 0")
}

func ownedBy(entry carbon.Entry, actor string) bool {
	return actor != "" && entry.UserID == actor
}

func filterOwner(entries []carbon.Entry, userID string) []carbon.Entry {
	if userID == "" {
		return entries
	}
	out := entries[:0:0]
	for _, e := range entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}

func clampLimit(limit, def, ceiling int) int {
	if limit <= 0 {
		return def
	}
	if limit > ceiling {
		return ceiling
	}
	return limit
}
