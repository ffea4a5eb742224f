// Tests for the media registry.
package sqlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowercasename/eggcms/pkg/types"
)

func TestMediaTable(t *testing.T) {
	b := setupBackend(t)
	media, err := b.Media()
	require.NoError(t, err)
	media.now = fakeClock()

	width := int64(640)
	first, err := media.Insert(ctx, &types.Media{
		Filename: "cat.jpg",
		Path:     "/uploads/0190.jpg",
		MimeType: "image/jpeg",
		Size:     1024,
		Width:    &width,
		Alt:      "A cat",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.NotEmpty(t, first.CreatedAt)

	second, err := media.Insert(ctx, &types.Media{Filename: "doc.pdf", Path: "/uploads/0191.pdf", MimeType: "application/pdf", Size: 9})
	require.NoError(t, err)

	got, ok, err := media.Get(ctx, first.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first, got)

	list, err := media.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Nil(t, list[0].Width)
	assert.Empty(t, list[0].Alt)

	removed, err := media.Delete(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	_, ok, err = media.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMediaTable_InsertRequiresPath(t *testing.T) {
	b := setupBackend(t)
	media, err := b.Media()
	require.NoError(t, err)

	_, err = media.Insert(ctx, &types.Media{Filename: "x.jpg"})
	assert.ErrorIs(t, err, types.ErrInvalidValue)
}
