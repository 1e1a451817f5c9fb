package cache

import (
	"context"
	"reflect"
	"sync"
	"time"
)

// MemoryStore keeps live object references, so two reads of the same key
// return the same pointer.
type MemoryStore struct {
	data   sync.Map
	config Config
	cancel context.CancelFunc
}

type cacheItem struct {
	value      any
	expiration time.Time
}

func (i *cacheItem) expired(now time.Time) bool {
	return !i.expiration.IsZero() && now.After(i.expiration)
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithConfig(DefaultConfig())
}

// NewMemoryStoreWithConfig creates a new in-memory store with custom configuration
func NewMemoryStoreWithConfig(config Config) *MemoryStore {
	ctx, cancel := context.WithCancel(context.Background())
	m := &MemoryStore{
		config: config,
		cancel: cancel,
	}

	// Start background goroutine to clean up expired items
	go m.cleanupExpired(ctx)

	return m
}

// Get retrieves a value from the cache
func (m *MemoryStore) Get(ctx context.Context, key string, _ reflect.Type) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fullKey := m.config.Prefix + key
	value, ok := m.data.Load(fullKey)
	if !ok {
		return nil, ErrCacheMiss{Key: key}
	}

	item := value.(*cacheItem)
	if item.expired(time.Now()) {
		m.data.CompareAndDelete(fullKey, item)
		return nil, ErrCacheMiss{Key: key}
	}
	return item.value, nil
}

// Add stores value unless a live entry already exists under key
func (m *MemoryStore) Add(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	if ttl == 0 {
		ttl = m.config.DefaultTTL
	}
	item := &cacheItem{value: value}
	if ttl > 0 {
		item.expiration = time.Now().Add(ttl)
	}

	fullKey := m.config.Prefix + key
	for {
		actual, loaded := m.data.LoadOrStore(fullKey, item)
		if !loaded {
			return true, nil
		}
		existing := actual.(*cacheItem)
		if !existing.expired(time.Now()) {
			return false, nil
		}
		if m.data.CompareAndSwap(fullKey, existing, item) {
			return true, nil
		}
	}
}

// Delete removes a value from the cache
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.data.Delete(m.config.Prefix + key)
	return nil
}

// Clear removes all values from the cache
func (m *MemoryStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.data.Range(func(key, _ any) bool {
		m.data.Delete(key)
		return true
	})
	return nil
}

// Exists checks if a live entry exists under key
func (m *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := m.Get(ctx, key, nil)
	if IsCacheMiss(err) {
		return false, nil
	}
	return err == nil, err
}

// Close stops the background cleanup goroutine
func (m *MemoryStore) Close() error {
	if m.cancel != nil {
		m.cancel()
	}
	return nil
}

// cleanupExpired periodically removes expired items from the cache
func (m *MemoryStore) cleanupExpired(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			m.data.Range(func(key, value any) bool {
				if value.(*cacheItem).expired(now) {
					m.data.CompareAndDelete(key, value)
				}
				return true
			})
		}
	}
}
