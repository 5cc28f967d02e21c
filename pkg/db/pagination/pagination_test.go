package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	token, err := EncodeCursor(Cursor{ID: "1234", CreatedAt: "2025-06-01T10:00:00Z"})
	require.NoError(t, err)

	cursor, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, "1234", cursor.ID)
	assert.Equal(t, "2025-06-01T10:00:00Z", cursor.CreatedAt)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	_, err := DecodeCursor("not-base64!!")
	assert.Error(t, err)
}

type row struct {
	id string
}

func TestBuildCursorPageInfo(t *testing.T) {
	extract := func(r *row) string { return r.id }

	info := BuildCursorPageInfo([]*row{}, 2, extract)
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)

	// One extra row fetched beyond the limit signals another page.
	info = BuildCursorPageInfo([]*row{{"a"}, {"b"}, {"c"}}, 2, extract)
	assert.True(t, info.HasMore)
	assert.Equal(t, "b", info.NextPageToken)

	info = BuildCursorPageInfo([]*row{{"a"}, {"b"}}, 2, extract)
	assert.False(t, info.HasMore)
	assert.Equal(t, "b", info.NextPageToken)
}
