package persistence

import (
	"sort"

	"github.com/google/uuid"

	"example.com/ecotrack/internal/carbon"
	"example.com/ecotrack/internal/domain"
)

// NewID returns a fresh entry identifier.
func NewID() string {
	return uuid.NewString()
}

// SortNewestFirst orders entries by timestamp, then id, both descending.
func SortNewestFirst(entries []carbon.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.After(b.Timestamp)
		}
		return a.ID > b.ID
	})
}

// BeyondCursor reports whether e sorts strictly after the cursor position in
// newest-first order. A nil cursor admits every entry.
func BeyondCursor(e carbon.Entry, c *domain.Cursor) bool {
	if c == nil {
		return true
	}
	if !e.Timestamp.Equal(c.Timestamp) {
		return e.Timestamp.Before(c.Timestamp)
	}
	return e.ID < c.ID
}

// NextCursor returns the cursor that continues after page, or nil when the
// page was not full.
func NextCursor(page []carbon.Entry, limit int) *domain.Cursor {
	if limit <= 0 || len(page) < limit {
		return nil
	}
	last := page[len(page)-1]
	return &domain.Cursor{Timestamp: last.Timestamp, ID: last.ID}
}
