// Tests for content CRUD, draft lifecycle and singleton upsert.
package sqlite

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowercasename/eggcms/pkg/schema"
	"github.com/lowercasename/eggcms/pkg/types"
)

var ctx = context.Background()

func postSchema() *schema.Definition {
	return schema.Collection("post",
		schema.FieldDefinition{Name: "title", Type: schema.FieldString, Required: true},
		schema.FieldDefinition{Name: "slug", Type: schema.FieldSlug, From: schema.SlugSource{"title"}},
		schema.FieldDefinition{Name: "body", Type: schema.FieldBlocks, Blocks: []*schema.Definition{
			schema.Block("text", schema.FieldDefinition{Name: "content", Type: schema.FieldRichtext}),
		}},
		schema.FieldDefinition{Name: "featured", Type: schema.FieldBoolean, Default: false},
	)
}

func settingsSchema() *schema.Definition {
	return schema.Singleton("settings",
		schema.FieldDefinition{Name: "siteTitle", Type: schema.FieldString, Default: "My site"},
		schema.FieldDefinition{Name: "logo", Type: schema.FieldImage},
	)
}

// fakeClock returns a clock that advances one second per call.
func fakeClock() func() time.Time {
	t := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

// setupRepo reconciles the given schemas on a fresh backend and returns a
// repository with a deterministic clock.
func setupRepo(t *testing.T, publicURL string, defs ...*schema.Definition) *Repository {
	t.Helper()
	b := setupBackend(t)
	m, err := b.Migrator()
	require.NoError(t, err)
	_, err = m.ReconcileAll(ctx, defs)
	require.NoError(t, err)
	repo := NewRepository(b.db, NewCodec(publicURL))
	repo.now = fakeClock()
	return repo
}

func TestRepository_CreateDefaultsToDraft(t *testing.T) {
	def := postSchema()
	repo := setupRepo(t, "", def)

	item, err := repo.Create(ctx, def, map[string]any{"title": "Hello"})
	require.NoError(t, err)

	assert.NotEmpty(t, item.ID)
	require.NotNil(t, item.Meta.Draft)
	assert.True(t, *item.Meta.Draft)
	assert.True(t, item.IsDraft())
	assert.Equal(t, "Hello", item.Fields["title"])
	assert.Equal(t, false, item.Fields["featured"], "column default applies to absent fields")
	assert.Nil(t, item.Fields["slug"])
	assert.Equal(t, "2024-05-01T12:00:01.000Z", item.Meta.CreatedAt)
	assert.Equal(t, item.Meta.CreatedAt, item.Meta.UpdatedAt)
}

func TestRepository_CreatePublished(t *testing.T) {
	def := postSchema()
	repo := setupRepo(t, "", def)

	for _, draft := range []any{0, false, 0.0} {
		item, err := repo.Create(ctx, def, map[string]any{"title": "Live", "draft": draft})
		require.NoError(t, err)
		require.NotNil(t, item.Meta.Draft)
		assert.False(t, *item.Meta.Draft, "draft=%v", draft)
	}
}

func TestRepository_CreateMissingRequiredIsStorageError(t *testing.T) {
	def := postSchema()
	repo := setupRepo(t, "", def)

	_, err := repo.Create(ctx, def, map[string]any{"slug": "no-title"})
	require.Error(t, err)
	assert.True(t, types.IsStorageError(err))
}

func TestRepository_CreateInvalidValue(t *testing.T) {
	def := postSchema()
	repo := setupRepo(t, "", def)

	_, err := repo.Create(ctx, def, map[string]any{"title": "x", "featured": "sometimes"})
	assert.ErrorIs(t, err, types.ErrInvalidValue)
	assert.False(t, types.IsStorageError(err))
}

func TestRepository_SingletonMetaHasNoDraft(t *testing.T) {
	def := settingsSchema()
	repo := setupRepo(t, "", def)

	item, err := repo.UpsertSingleton(ctx, def, map[string]any{"draft": 1})
	require.NoError(t, err)
	assert.Nil(t, item.Meta.Draft)
	assert.False(t, item.IsDraft())
	assert.Equal(t, "My site", item.Fields["siteTitle"])

	data, err := json.Marshal(item)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	meta := out["_meta"].(map[string]any)
	assert.NotContains(t, meta, "draft")
	assert.Contains(t, meta, "createdAt")
	assert.Equal(t, item.ID, out["id"])
}

func TestRepository_ItemJSONShape(t *testing.T) {
	def := postSchema()
	repo := setupRepo(t, "", def)

	item, err := repo.Create(ctx, def, map[string]any{
		"title": "Blocks",
		"body":  []any{map[string]any{"_type": "text", "content": "<p>x</p>"}},
	})
	require.NoError(t, err)

	data, err := json.Marshal(item)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "Blocks", out["title"])
	assert.Equal(t, []any{map[string]any{"_type": "text", "content": "<p>x</p>"}}, out["body"])
	assert.Equal(t, true, out["_meta"].(map[string]any)["draft"])
}

func TestRepository_UpsertSingleton(t *testing.T) {
	def := settingsSchema()
	repo := setupRepo(t, "", def)

	_, ok, err := repo.GetSingleton(ctx, def)
	require.NoError(t, err)
	assert.False(t, ok)

	first, err := repo.UpsertSingleton(ctx, def, map[string]any{"siteTitle": "One"})
	require.NoError(t, err)
	second, err := repo.UpsertSingleton(ctx, def, map[string]any{"siteTitle": "Two"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Meta.CreatedAt, second.Meta.CreatedAt)
	assert.NotEqual(t, first.Meta.UpdatedAt, second.Meta.UpdatedAt)
	assert.Equal(t, "Two", second.Fields["siteTitle"])

	items, err := repo.List(ctx, def, false)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestRepository_UpsertRequiresSingleton(t *testing.T) {
	def := postSchema()
	repo := setupRepo(t, "", def)

	_, err := repo.UpsertSingleton(ctx, def, map[string]any{"title": "x"})
	assert.ErrorIs(t, err, types.ErrNotSingleton)
}

func TestRepository_PartialUpdate(t *testing.T) {
	def := postSchema()
	repo := setupRepo(t, "", def)

	created, err := repo.Create(ctx, def, map[string]any{"title": "Draft", "slug": "draft", "featured": true})
	require.NoError(t, err)

	updated, ok, err := repo.Update(ctx, def, created.ID, map[string]any{"title": "Renamed"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Renamed", updated.Fields["title"])
	assert.Equal(t, "draft", updated.Fields["slug"], "omitted fields are untouched")
	assert.Equal(t, true, updated.Fields["featured"])
	assert.True(t, updated.IsDraft(), "draft flag only changes when given")
	assert.Equal(t, created.Meta.CreatedAt, updated.Meta.CreatedAt)
	assert.NotEqual(t, created.Meta.UpdatedAt, updated.Meta.UpdatedAt)

	published, ok, err := repo.Update(ctx, def, created.ID, map[string]any{"draft": 0})
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, published.IsDraft())

	cleared, ok, err := repo.Update(ctx, def, created.ID, map[string]any{"slug": nil})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Nil(t, cleared.Fields["slug"])
}

func TestRepository_UpdateMissing(t *testing.T) {
	def := postSchema()
	repo := setupRepo(t, "", def)

	item, ok, err := repo.Update(ctx, def, "does-not-exist", map[string]any{"title": "x"})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, item)

	_, _, err = repo.Update(ctx, def, "", map[string]any{"title": "x"})
	assert.ErrorIs(t, err, types.ErrInvalidID)
}

func TestRepository_GetAndDelete(t *testing.T) {
	def := postSchema()
	repo := setupRepo(t, "", def)

	created, err := repo.Create(ctx, def, map[string]any{"title": "Gone soon"})
	require.NoError(t, err)

	got, ok, err := repo.Get(ctx, def, created.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, created.ID, got.ID)

	removed, err := repo.Delete(ctx, def, created.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.Delete(ctx, def, created.ID)
	require.NoError(t, err)
	assert.False(t, removed, "second delete finds nothing")

	_, ok, err = repo.Get(ctx, def, created.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRepository_ListOrderingAndDrafts(t *testing.T) {
	def := postSchema()
	repo := setupRepo(t, "", def)

	a, err := repo.Create(ctx, def, map[string]any{"title": "A", "draft": false})
	require.NoError(t, err)
	b, err := repo.Create(ctx, def, map[string]any{"title": "B"})
	require.NoError(t, err)
	c, err := repo.Create(ctx, def, map[string]any{"title": "C", "draft": false})
	require.NoError(t, err)

	published, err := repo.List(ctx, def, false)
	require.NoError(t, err)
	require.Len(t, published, 2)
	assert.Equal(t, c.ID, published[0].ID, "newest first")
	assert.Equal(t, a.ID, published[1].ID)

	all, err := repo.List(ctx, def, true)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{c.ID, b.ID, a.ID}, []string{all[0].ID, all[1].ID, all[2].ID})
}

func TestRepository_ImageURLsOnRead(t *testing.T) {
	def := settingsSchema()
	repo := setupRepo(t, "https://cms.example.com/", def)

	item, err := repo.UpsertSingleton(ctx, def, map[string]any{"logo": "/uploads/logo.png"})
	require.NoError(t, err)
	assert.Equal(t, "https://cms.example.com/uploads/logo.png", item.Fields["logo"])
}

func TestRepository_RetainedColumnsNotSurfaced(t *testing.T) {
	v1 := schema.Collection("note",
		schema.FieldDefinition{Name: "title", Type: schema.FieldString},
		schema.FieldDefinition{Name: "legacy", Type: schema.FieldString},
	)
	repo := setupRepo(t, "", v1)
	created, err := repo.Create(ctx, v1, map[string]any{"title": "t", "legacy": "old"})
	require.NoError(t, err)

	v2 := schema.Collection("note", schema.FieldDefinition{Name: "title", Type: schema.FieldString})
	got, ok, err := repo.Get(ctx, v2, created.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotContains(t, got.Fields, "legacy")
}

func TestRepository_RejectsBlockSchemas(t *testing.T) {
	def := postSchema()
	repo := setupRepo(t, "", def)
	hero := schema.Block("hero")

	_, err := repo.List(ctx, hero, true)
	assert.ErrorIs(t, err, types.ErrNotTableBacked)
	_, err = repo.Create(ctx, hero, map[string]any{})
	assert.ErrorIs(t, err, types.ErrNotTableBacked)
}

func TestRepository_StorageErrorOnMissingTable(t *testing.T) {
	repo := setupRepo(t, "")
	_, err := repo.List(ctx, postSchema(), true)
	require.Error(t, err)

	var se *types.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "list", se.Op)
	assert.Equal(t, "post", se.Schema)
}
