package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/ecotrack/internal/carbon"
	"example.com/ecotrack/internal/domain"
)

func TestCursorRoundTrip(t *testing.T) {
	c := &domain.Cursor{Timestamp: time.Date(2026, time.October, 17, 9, 0, 0, 123, time.UTC), ID: "e-42"}

	token := EncodeCursor(c)
	require.NotEmpty(t, token)

	decoded, err := DecodeCursor(token)
	require.NoError(t, err)
	require.True(t, c.Timestamp.Equal(decoded.Timestamp))
	require.Equal(t, c.ID, decoded.ID)

	require.Empty(t, EncodeCursor(nil))
	decoded, err = DecodeCursor("  ")
	require.NoError(t, err)
	require.Nil(t, decoded)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	_, err := DecodeCursor("%%%")
	require.ErrorIs(t, err, ErrInvalidCursor)

	_, err = DecodeCursor("bm90LWpzb24")
	require.ErrorIs(t, err, ErrInvalidCursor)

	_, err = DecodeCursor(EncodeCursor(&domain.Cursor{Timestamp: time.Now()}))
	require.ErrorIs(t, err, ErrInvalidCursor)
}

func TestPagingHelpers(t *testing.T) {
	base := time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC)
	entries := []carbon.Entry{
		{ID: "a", Timestamp: base},
		{ID: "c", Timestamp: base.Add(time.Hour)},
		{ID: "b", Timestamp: base.Add(time.Hour)},
	}
	SortNewestFirst(entries)
	require.Equal(t, "c", entries[0].ID)
	require.Equal(t, "b", entries[1].ID)
	require.Equal(t, "a", entries[2].ID)

	next := NextCursor(entries[:2], 2)
	require.NotNil(t, next)
	require.Equal(t, "b", next.ID)
	require.False(t, BeyondCursor(entries[0], next))
	require.False(t, BeyondCursor(entries[1], next))
	require.True(t, BeyondCursor(entries[2], next))

	require.Nil(t, NextCursor(entries, 5))
}
