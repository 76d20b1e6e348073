package pagination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	in := Cursor{ID: "42", CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC).Format(time.RFC3339Nano)}
	token, err := EncodeCursor(in)
	require.NoError(t, err)

	out, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, in, *out)

	_, err = DecodeCursor("%%%")
	assert.ErrorIs(t, err, ErrInvalidPageToken)

	empty, err := DecodeCursor("  ")
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestTrim(t *testing.T) {
	items := []int{5, 4, 3}
	page, info := Trim(items, 2, func(v int) Cursor {
		return Cursor{ID: "x", CreatedAt: time.Unix(int64(v), 0).UTC().Format(time.RFC3339Nano)}
	})
	assert.Equal(t, []int{5, 4}, page)
	assert.True(t, info.HasMore)
	assert.NotEmpty(t, info.NextPageToken)

	page, info = Trim(items, 10, func(int) Cursor { return Cursor{} })
	assert.Len(t, page, 3)
	assert.False(t, info.HasMore)
}

func TestSize(t *testing.T) {
	assert.Equal(t, DefaultPageSize, Pagination{}.Size())
	assert.Equal(t, MaxPageSize, Pagination{PageSize: 10_000}.Size())
	assert.Equal(t, 7, Pagination{PageSize: 7}.Size())
}
