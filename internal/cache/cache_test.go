package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"customfields/internal/config"
	"customfields/internal/metadata"
	"customfields/internal/store"
)

func newTestCache(t *testing.T) (*OptionsCache, *store.Store) {
	t.Helper()
	ctx := context.Background()
	s, err := store.New(ctx, config.DatabaseConfig{Driver: "sqlite", Path: t.TempDir(), Name: "cache"})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.Bootstrap(ctx))

	c, err := NewOptionsCache(s, 4)
	require.NoError(t, err)
	return c, s
}

func optionUpdatedAt(t *testing.T, s *store.Store, key string) any {
	t.Helper()
	row, err := store.QueryRow(context.Background(), s.DB, "SELECT updated_at FROM _options WHERE name = ?1", Prefix+key)
	require.NoError(t, err)
	return row["updated_at"]
}

func TestGet_EmptyKeyIsMiss(t *testing.T) {
	c, _ := newTestCache(t)
	var v string
	assert.ErrorIs(t, c.Get(context.Background(), "", &v), ErrCacheMiss)
}

func TestGet_Miss(t *testing.T) {
	c, _ := newTestCache(t)
	var v string
	assert.ErrorIs(t, c.Get(context.Background(), "abc", &v), ErrCacheMiss)
}

func TestSet_EmptyKeyFails(t *testing.T) {
	c, _ := newTestCache(t)
	assert.ErrorIs(t, c.Set(context.Background(), "", "value"), ErrCacheSave)
}

func TestSetGet_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c, s := newTestCache(t)

	def := &metadata.Definition{
		SingularName: "person",
		PluralName:   "people",
		Fields: []*metadata.FieldSpec{
			{ID: "email", Type: metadata.FieldTypeText, Validate: []metadata.Rule{metadata.NewRule("email")}},
		},
	}
	require.NoError(t, c.Set(ctx, "hash1", def))

	// A second cache over the same table reads through the database.
	c2, err := NewOptionsCache(s, 4)
	require.NoError(t, err)
	var got metadata.Definition
	require.NoError(t, c2.Get(ctx, "hash1", &got))
	assert.Equal(t, "people", got.PluralName)
	require.Len(t, got.Fields, 1)
	assert.Equal(t, "email", got.Fields[0].Validate[0].Keyword)
}

func TestSet_SameValueSkipsWrite(t *testing.T) {
	ctx := context.Background()
	c, s := newTestCache(t)

	require.NoError(t, c.Set(ctx, "k", map[string]any{"a": 1}))
	_, err := s.DB.ExecContext(ctx, "UPDATE _options SET updated_at = '2000-01-01 00:00:00' WHERE name = ?1", Prefix+"k")
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, "k", map[string]any{"a": 1}))
	before := optionUpdatedAt(t, s, "k")

	require.NoError(t, c.Set(ctx, "k", map[string]any{"a": 2}))
	after := optionUpdatedAt(t, s, "k")
	assert.NotEqual(t, before, after)

	var got map[string]int
	require.NoError(t, c.Get(ctx, "k", &got))
	assert.Equal(t, 2, got["a"])
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	require.NoError(t, c.Set(ctx, "gone", "x"))
	require.NoError(t, c.Delete(ctx, "gone"))
	var v string
	assert.ErrorIs(t, c.Get(ctx, "gone", &v), ErrCacheMiss)
}
