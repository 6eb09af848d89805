package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"example.com/ecotrack/internal/domain"
)

// GetProfile retrieves the profile for userID.
func (r *Repository) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	var (
		p           domain.Profile
		displayName *string
		location    *string
		goal        *float64
	)
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, display_name, location, weekly_goal_kg, updated_at FROM user_profiles WHERE user_id = $1`,
		userID,
	).Scan(&p.UserID, &displayName, &location, &goal, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if displayName != nil {
		p.DisplayName = *displayName
	}
	if location != nil {
		p.Location = *location
	}
	if goal != nil {
		p.WeeklyGoalKg = *goal
	}
	return &p, nil
}

// UpsertProfile merges the non-empty fields of profile into the stored row.
func (r *Repository) UpsertProfile(ctx context.Context, profile domain.Profile) (domain.Profile, error) {
	const stmt = `INSERT INTO user_profiles (user_id, display_name, location, weekly_goal_kg, updated_at)
        VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4::double precision, 0), COALESCE($5, NOW()))
        ON CONFLICT (user_id) DO UPDATE SET
            display_name   = COALESCE(EXCLUDED.display_name, user_profiles.display_name),
            location       = COALESCE(EXCLUDED.location, user_profiles.location),
            weekly_goal_kg = COALESCE(EXCLUDED.weekly_goal_kg, user_profiles.weekly_goal_kg),
            updated_at     = EXCLUDED.updated_at`

	var updatedAt interface{}
	if !profile.UpdatedAt.IsZero() {
		updatedAt = profile.UpdatedAt
	}
	if _, err := r.pool.Exec(ctx, stmt,
		profile.UserID,
		trimmed(profile.DisplayName),
		trimmed(profile.Location),
		profile.WeeklyGoalKg,
		updatedAt,
	); err != nil {
		return domain.Profile{}, err
	}

	stored, err := r.GetProfile(ctx, profile.UserID)
	if err != nil {
		return domain.Profile{}, err
	}
	if stored == nil {
		return domain.Profile{}, errors.New("profile vanished after upsert")
	}
	return *stored, nil
}

func trimmed(s string) string {
	return strings.TrimSpace(s)
}
