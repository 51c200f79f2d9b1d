package cache

import (
	"context"
	"testing"

	"github.com/jon4hz/catalogsync/internal/config"
	"github.com/jon4hz/catalogsync/internal/tmdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig() *config.CacheConfig {
	return &config.CacheConfig{Type: config.CacheTypeMemory}
}

func TestPersonCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewPersonCache(memoryConfig(), 10)

	_, ok := c.Get(ctx, 31)
	assert.False(t, ok)

	c.Set(ctx, 31, &tmdb.PersonDetail{ID: 31, Name: "Tom Hanks", Biography: "Actor."})
	got, ok := c.Get(ctx, 31)
	require.True(t, ok)
	assert.Equal(t, "Tom Hanks", got.Name)
	assert.Equal(t, "Actor.", got.Biography)
	assert.Equal(t, 1, c.Len())

	c.Set(ctx, 31, &tmdb.PersonDetail{ID: 31, Name: "Thomas Hanks"})
	got, ok = c.Get(ctx, 31)
	require.True(t, ok)
	assert.Equal(t, "Thomas Hanks", got.Name)
	assert.Equal(t, 1, c.Len())
}

func TestPersonCache_Bounded(t *testing.T) {
	ctx := context.Background()
	c := NewPersonCache(memoryConfig(), 2)

	for id := 1; id <= 3; id++ {
		c.Set(ctx, id, &tmdb.PersonDetail{ID: id, Name: "p"})
	}

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get(ctx, 1)
	assert.False(t, ok, "oldest entry is evicted")
	_, ok = c.Get(ctx, 3)
	assert.True(t, ok)
}

func TestPersonCache_Reset(t *testing.T) {
	ctx := context.Background()
	c := NewPersonCache(memoryConfig(), 5)
	c.Set(ctx, 1, &tmdb.PersonDetail{ID: 1, Name: "a"})
	c.Set(ctx, 2, &tmdb.PersonDetail{ID: 2, Name: "b"})

	c.Reset(ctx)

	assert.Zero(t, c.Len())
	_, ok := c.Get(ctx, 1)
	assert.False(t, ok)
}

func TestPersonCache_Disabled(t *testing.T) {
	ctx := context.Background()
	c := NewPersonCache(memoryConfig(), 0)
	c.Set(ctx, 1, &tmdb.PersonDetail{ID: 1, Name: "a"})
	assert.Zero(t, c.Len())
	c.Set(ctx, 2, nil)
	assert.Zero(t, c.Len())
}
