package domain

import (
	"context"

	"github.com/rs/zerolog"
)

// CachingResolver resolves display names through a ProfileRepository and
// memoizes the answers for the lifetime of one request. It is not safe for
// concurrent use.
//
// A failing profile store degrades to raw user ids: the first error is logged
// and later lookups are not attempted.
type CachingResolver struct {
	ctx      context.Context
	profiles ProfileRepository
	logger   zerolog.Logger
	names    map[string]string
	broken   bool
}

// NewCachingResolver constructs a resolver bound to ctx.
func NewCachingResolver(ctx context.Context, profiles ProfileRepository, logger zerolog.Logger) *CachingResolver {
	return &CachingResolver{
		ctx:      ctx,
		profiles: profiles,
		logger:   logger,
		names:    make(map[string]string),
	}
}

// ResolveLabel implements carbon.LabelResolver.
func (r *CachingResolver) ResolveLabel(userID string) (string, bool) {
	if name, ok := r.names[userID]; ok {
		return name, name != ""
	}
	if r.broken || r.profiles == nil {
		return "", false
	}

	profile, err := r.profiles.GetProfile(r.ctx, userID)
	if err != nil {
		r.broken = true
		r.logger.Warn().Err(err).Str("user_id", userID).Msg("profile lookup failed, falling back to user ids")
		return "", false
	}

	name := ""
	if profile != nil {
		name = profile.DisplayName
	}
	r.names[userID] = name
	return name, name != ""
}
