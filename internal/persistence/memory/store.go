// Package memory provides an in-process entry and profile store used for
// tests and the STORE_DRIVER=memory mode.
package memory

import (
	"context"
	"sync"
	"time"

	"example.com/ecotrack/internal/carbon"
	"example.com/ecotrack/internal/domain"
	"example.com/ecotrack/internal/observability"
	"example.com/ecotrack/internal/persistence"
)

// Store keeps entries and profiles in maps guarded by a RWMutex.
type Store struct {
	mu       sync.RWMutex
	entries  map[string]carbon.Entry
	profiles map[string]domain.Profile
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		entries:  make(map[string]carbon.Entry),
		profiles: make(map[string]domain.Profile),
	}
}

// Create stores entry under a fresh id unless it already carries one.
func (s *Store) Create(_ context.Context, entry carbon.Entry) (carbon.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = persistence.NewID()
	}
	s.entries[entry.ID] = entry
	observability.RecordEntryWrite("create")
	observability.RecordEntryPersisted(entry.Timestamp)
	return entry, nil
}

// Get retrieves an entry by id.
func (s *Store) Get(_ context.Context, id string) (*carbon.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[id]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

// ListAll returns every entry, newest first.
func (s *Store) ListAll(_ context.Context) ([]carbon.Entry, error) {
	return s.collect(func(carbon.Entry) bool { return true }), nil
}

// ListSince returns entries stamped at or after since, newest first.
func (s *Store) ListSince(_ context.Context, since time.Time) ([]carbon.Entry, error) {
	return s.collect(func(e carbon.Entry) bool { return !e.Timestamp.Before(since) }), nil
}

// ListRecent returns up to limit entries after cursor, newest first.
func (s *Store) ListRecent(_ context.Context, cursor *domain.Cursor, limit int) ([]carbon.Entry, *domain.Cursor, error) {
	all := s.collect(func(e carbon.Entry) bool { return persistence.BeyondCursor(e, cursor) })
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, persistence.NextCursor(all, limit), nil
}

// Update replaces a stored entry.
func (s *Store) Update(_ context.Context, entry carbon.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[entry.ID]; !ok {
		return domain.ErrEntryNotFound
	}
	s.entries[entry.ID] = entry
	observability.RecordEntryWrite("update")
	return nil
}

// Delete removes an entry.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; !ok {
		return domain.ErrEntryNotFound
	}
	delete(s.entries, id)
	observability.RecordEntryWrite("delete")
	return nil
}

// GetProfile retrieves a profile by user id.
func (s *Store) GetProfile(_ context.Context, userID string) (*domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, ok := s.profiles[userID]
	if !ok {
		return nil, nil
	}
	return &profile, nil
}

// UpsertProfile merges profile into the stored one.
func (s *Store) UpsertProfile(_ context.Context, profile domain.Profile) (domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.profiles[profile.UserID]
	if !ok {
		current = domain.Profile{UserID: profile.UserID}
	}
	merged := current.Merge(profile)
	s.profiles[profile.UserID] = merged
	return merged, nil
}

func (s *Store) collect(keep func(carbon.Entry) bool) []carbon.Entry {
	s.mu.RLock()
	out := make([]carbon.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	s.mu.RUnlock()

	persistence.SortNewestFirst(out)
	return out
}
