package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/tierrun/internal/domain"
)

func TestCursorRoundTrip(t *testing.T) {
	c := &domain.Cursor{
		StartedAt:  time.Date(2025, time.November, 2, 7, 0, 0, 123, time.UTC),
		DistanceKm: 10.25,
		ID:         "run|with|pipes",
	}
	decoded, err := DecodeCursor(EncodeCursor(c))
	require.NoError(t, err)
	require.Equal(t, c, decoded)

	empty, err := DecodeCursor("  ")
	require.NoError(t, err)
	require.Nil(t, empty)
	require.Empty(t, EncodeCursor(nil))

	_, err = DecodeCursor("%%")
	require.Error(t, err)
}

func TestAfterCursorFollowsSort(t *testing.T) {
	day := time.Date(2025, time.November, 2, 0, 0, 0, 0, time.UTC)
	older := domain.Run{ID: "a", StartedAt: day, DistanceKm: 12}
	newer := domain.Run{ID: "b", StartedAt: day.Add(time.Hour), DistanceKm: 5}
	tie := domain.Run{ID: "c", StartedAt: day.Add(time.Hour), DistanceKm: 5}

	require.True(t, AfterCursor(domain.SortDateDesc, older, CursorAt(newer)))
	require.False(t, AfterCursor(domain.SortDateAsc, older, CursorAt(newer)))
	require.True(t, AfterCursor(domain.SortDistanceDesc, newer, CursorAt(older)))
	require.True(t, AfterCursor(domain.SortDistanceAsc, tie, CursorAt(newer)))
	require.False(t, AfterCursor(domain.SortDateDesc, tie, CursorAt(newer)))
	require.True(t, AfterCursor(domain.SortDateDesc, older, nil))
}

func TestOrderingFor(t *testing.T) {
	require.Equal(t, "started_at DESC, id DESC", OrderingFor("").OrderBy())
	require.Equal(t, "distance_km ASC, id ASC", OrderingFor(domain.SortDistanceAsc).OrderBy())
	require.Equal(t, "<", OrderingFor(domain.SortDistanceDesc).Operator)
	require.True(t, OrderingFor(domain.SortDateAsc).ByDate)
}
