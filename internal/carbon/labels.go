package carbon

import "strings"

// AnonymousLabel is shown for entries owned by AnonymousUserID.
const AnonymousLabel = "Anonymous"

// LabelResolver looks up a display name for a user. Implementations return
// false when the user has no profile or no display name.
type LabelResolver interface {
	ResolveLabel(userID string) (string, bool)
}

// ResolverFunc adapts a function to LabelResolver.
type ResolverFunc func(userID string) (string, bool)

// ResolveLabel implements LabelResolver.
func (f ResolverFunc) ResolveLabel(userID string) (string, bool) {
	return f(userID)
}

// DisplayNames is a LabelResolver backed by a prefetched map.
type DisplayNames map[string]string

// ResolveLabel implements LabelResolver.
func (d DisplayNames) ResolveLabel(userID string) (string, bool) {
	name, ok := d[userID]
	if !ok || strings.TrimSpace(name) == "" {
		return "", false
	}
	return name, true
}

// Viewer identifies the user looking at a leaderboard.
type Viewer struct {
	UserID string
	Email  string
}

// displayName resolves a non viewer-relative label.
func displayName(userID string, resolver LabelResolver) string {
	if userID == AnonymousUserID {
		return AnonymousLabel
	}
	if resolver != nil {
		if name, ok := resolver.ResolveLabel(userID); ok && strings.TrimSpace(name) != "" {
			return name
		}
	}
	return userID
}

// viewerLabel resolves a label, substituting "You (<email>)" for the viewer.
func viewerLabel(userID string, viewer *Viewer, resolver LabelResolver) string {
	if userID == AnonymousUserID {
		return AnonymousLabel
	}
	if viewer != nil && viewer.UserID != "" && userID == viewer.UserID {
		return "You (" + viewer.Email + ")"
	}
	return displayName(userID, resolver)
}
