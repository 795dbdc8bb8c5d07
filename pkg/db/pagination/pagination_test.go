package pagination

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	require.Equal(t, DefaultLimit, Pagination{}.Normalize().Limit)
	require.Equal(t, MaxLimit, Pagination{Limit: 10_000}.Normalize().Limit)
	require.Equal(t, 7, Pagination{Limit: 7}.Normalize().Limit)
}

func TestCursorRoundTrip(t *testing.T) {
	enc, err := EncodeCursor(Cursor{CreatedAt: "2026-01-02T03:04:05Z", ID: "42"})
	require.NoError(t, err)

	dec, err := DecodeCursor(enc)
	require.NoError(t, err)
	require.Equal(t, "42", dec.ID)
	require.Equal(t, "2026-01-02T03:04:05Z", dec.CreatedAt)

	_, err = DecodeCursor("%%%")
	require.Error(t, err)
}

func TestBuildCursorPage(t *testing.T) {
	rows := []int{1, 2, 3, 4}
	key := func(v int) string { return strconv.Itoa(v) }

	page, info := BuildCursorPage(rows, 3, key)
	require.Equal(t, []int{1, 2, 3}, page)
	require.True(t, info.HasMore)
	require.Equal(t, "3", info.NextCursor)

	page, info = BuildCursorPage(rows[:2], 3, key)
	require.Len(t, page, 2)
	require.False(t, info.HasMore)
	require.Empty(t, info.NextCursor)
}
