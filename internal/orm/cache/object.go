package cache

import (
	"context"
	"fmt"

	"github.com/omegaorm/omega/internal/orm/metadata"
)

// ObjectCache maps (entity type, identifier) to hydrated entities. Entities
// declared with `nocache` are never stored. Adding an existing key is a
// no-op; callers replace an entry with Remove followed by Add.
type ObjectCache struct {
	store Store
}

// NewObjectCache wraps a store
func NewObjectCache(store Store) *ObjectCache {
	return &ObjectCache{store: store}
}

// Key returns the cache key of an entity instance
func Key(d *metadata.EntityDescriptor, identifier any) string {
	switch id := identifier.(type) {
	case []byte:
		return d.Key() + ":" + string(id)
	case fmt.Stringer:
		return d.Key() + ":" + id.String()
	default:
		return fmt.Sprintf("%s:%v", d.Key(), id)
	}
}

// Get returns the cached entity, if any. A backend failure reads as a miss
// and is returned alongside.
func (c *ObjectCache) Get(ctx context.Context, d *metadata.EntityDescriptor, identifier any) (any, bool, error) {
	if d.NoCache || identifier == nil {
		return nil, false, nil
	}
	v, err := c.store.Get(ctx, Key(d, identifier), d.Type())
	if err != nil {
		if IsCacheMiss(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return v, true, nil
}

// Add stores obj under its identifier for the entity's cache duration and
// reports whether it was stored.
func (c *ObjectCache) Add(ctx context.Context, d *metadata.EntityDescriptor, identifier any, obj any) (bool, error) {
	if d.NoCache || identifier == nil || obj == nil {
		return false, nil
	}
	return c.store.Add(ctx, Key(d, identifier), obj, d.CacheDuration)
}

// Contains reports whether an entry exists
func (c *ObjectCache) Contains(ctx context.Context, d *metadata.EntityDescriptor, identifier any) (bool, error) {
	if d.NoCache || identifier == nil {
		return false, nil
	}
	return c.store.Exists(ctx, Key(d, identifier))
}

// Remove deletes an entry
func (c *ObjectCache) Remove(ctx context.Context, d *metadata.EntityDescriptor, identifier any) error {
	if d.NoCache || identifier == nil {
		return nil
	}
	return c.store.Delete(ctx, Key(d, identifier))
}

// Clear empties the backing store
func (c *ObjectCache) Clear(ctx context.Context) error {
	return c.store.Clear(ctx)
}

// Close releases the backing store
func (c *ObjectCache) Close() error {
	return c.store.Close()
}
