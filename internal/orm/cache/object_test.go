package cache

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omegaorm/omega/internal/orm/metadata"
)

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func resolve[T any](t *testing.T) *metadata.EntityDescriptor {
	d, err := metadata.NewRegistry().Resolve(typeOf[T]())
	require.NoError(t, err)
	return d
}

func TestKey(t *testing.T) {
	d := resolve[product](t)
	prefix := d.Key() + ":"

	assert.Equal(t, prefix+"7", Key(d, 7))
	assert.Equal(t, prefix+"7", Key(d, int64(7)))
	assert.Equal(t, prefix+"abc", Key(d, []byte("abc")))
	assert.Contains(t, d.Key(), "cache.product")
}

func TestObjectCache_Identity(t *testing.T) {
	store := NewMemoryStore()
	c := NewObjectCache(store)
	defer c.Close()
	ctx := context.Background()
	d := resolve[product](t)

	p := sampleProduct()
	added, err := c.Add(ctx, d, 7, p)
	require.NoError(t, err)
	assert.True(t, added)

	got, ok, err := c.Get(ctx, d, int64(7))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Same(t, p, got)

	contains, err := c.Contains(ctx, d, 7)
	require.NoError(t, err)
	assert.True(t, contains)

	// second add is a no-op
	added, err = c.Add(ctx, d, 7, sampleProduct())
	require.NoError(t, err)
	assert.False(t, added)

	require.NoError(t, c.Remove(ctx, d, 7))
	_, ok, err = c.Get(ctx, d, 7)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestObjectCache_UsesEntityDuration(t *testing.T) {
	store := NewMemoryStore()
	c := NewObjectCache(store)
	defer c.Close()
	ctx := context.Background()
	d := resolve[product](t)
	require.Equal(t, time.Minute, d.CacheDuration)

	_, err := c.Add(ctx, d, 1, sampleProduct())
	require.NoError(t, err)

	raw, ok := store.data.Load(store.config.Prefix + Key(d, 1))
	require.True(t, ok)
	expires := raw.(*cacheItem).expiration
	assert.WithinDuration(t, time.Now().Add(time.Minute), expires, 5*time.Second)
}

func TestObjectCache_NoCache(t *testing.T) {
	c := NewObjectCache(NewMemoryStore())
	defer c.Close()
	ctx := context.Background()
	d := resolve[auditLog](t)

	added, err := c.Add(ctx, d, 1, &auditLog{ID: 1})
	require.NoError(t, err)
	assert.False(t, added)

	_, ok, err := c.Get(ctx, d, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestObjectCache_Clear(t *testing.T) {
	c := NewObjectCache(NewMemoryStore())
	defer c.Close()
	ctx := context.Background()
	d := resolve[product](t)

	_, _ = c.Add(ctx, d, 1, sampleProduct())
	_, _ = c.Add(ctx, d, 2, sampleProduct())
	require.NoError(t, c.Clear(ctx))

	for _, id := range []int{1, 2} {
		ok, err := c.Contains(ctx, d, id)
		require.NoError(t, err)
		assert.False(t, ok)
	}
}
