package cache

import (
	"context"
	"errors"
	"reflect"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a shared cache backend. Entries are encoded with a Codec,
// so every Get returns a fresh copy rather than a shared reference.
type RedisStore struct {
	client *redis.Client
	config Config
	codec  Codec
}

// RedisConfig holds Redis-specific configuration
type RedisConfig struct {
	// Addr is the Redis server address (host:port)
	Addr string
	// Password is the Redis password (optional)
	Password string
	// DB is the Redis database number
	DB int
	// Config holds common cache configuration
	Config Config
}

// DefaultRedisConfig returns a default Redis configuration
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:   "localhost:6379",
		Config: DefaultConfig(),
	}
}

// NewRedisStoreWithConfig connects to Redis and verifies the connection
func NewRedisStoreWithConfig(config RedisConfig, codec Codec) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return NewRedisStoreWithClient(client, config.Config, codec), nil
}

// NewRedisStoreWithClient creates a store on an existing client
func NewRedisStoreWithClient(client *redis.Client, config Config, codec Codec) *RedisStore {
	if codec == nil {
		codec = NewEntityCodec(nil)
	}
	return &RedisStore{
		client: client,
		config: config,
		codec:  codec,
	}
}

// Get retrieves and decodes a value from the cache
func (r *RedisStore) Get(ctx context.Context, key string, typ reflect.Type) (any, error) {
	data, err := r.client.Get(ctx, r.config.Prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss{Key: key}
		}
		return nil, err
	}
	return r.codec.Unmarshal(data, typ)
}

// Add stores value with SET NX, so an existing entry is never overwritten
func (r *RedisStore) Add(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	data, err := r.codec.Marshal(value)
	if err != nil {
		return false, err
	}
	if ttl == 0 {
		ttl = r.config.DefaultTTL
	}
	return r.client.SetNX(ctx, r.config.Prefix+key, data, ttl).Result()
}

// Delete removes a value from the cache
func (r *RedisStore) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.config.Prefix+key).Err()
}

// Clear removes every key under the configured prefix
func (r *RedisStore) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.config.Prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Exists checks if a key exists in the cache
func (r *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	count, err := r.client.Exists(ctx, r.config.Prefix+key).Result()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Close closes the Redis connection
func (r *RedisStore) Close() error {
	return r.client.Close()
}
