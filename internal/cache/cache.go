/*
Copyright 2025 Moebot Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/moebot-io/moebot/config"
	redis_db "github.com/moebot-io/moebot/internal/redis-db"
)

// Cache interface provides the basic operations for a cache system.
// Moebot uses it for short-lived values with a natural TTL, such as the
// pixiv OAuth access token.
type Cache interface {
	// Set stores a value in the cache with a specified time-to-live (TTL).
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Get retrieves a value from the cache using a given key. A cache miss
	// is not an error; the target is simply left unchanged.
	Get(ctx context.Context, key string, data interface{}) error

	// Delete removes a value from the cache based on the provided key.
	Delete(ctx context.Context, key string) error
}

// NewCache creates a cache instance from the configured Redis DSN. When no
// Redis is configured it falls back to a process-local cache, which is
// sufficient for single-instance deployments.
func NewCache() (Cache, error) {
	cfg, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	if cfg.Redis.Dns == "" {
		return newLocalCache(), nil
	}
	return newRedisCache([]string{cfg.Redis.Dns})
}

// cacheSize defines the size of the local cache (in number of entries) used alongside Redis.
const cacheSize = 10000

// RedisCache implements Cache on Redis with a TinyLFU local front.
type RedisCache struct {
	cache *cache.Cache
}

func newRedisCache(addresses []string) (*RedisCache, error) {
	client, err := redis_db.NewRedisClient(addresses)
	if err != nil {
		return nil, err
	}

	c := cache.New(&cache.Options{
		Redis:      client.Client(),
		LocalCache: cache.NewTinyLFU(cacheSize, 1*time.Minute),
	})

	return &RedisCache{cache: c}, nil
}

func newLocalCache() *RedisCache {
	c := cache.New(&cache.Options{
		LocalCache: cache.NewTinyLFU(cacheSize, 1*time.Minute),
	})
	return &RedisCache{cache: c}
}

// Set adds a new entry to the cache with a specified key and TTL.
func (r *RedisCache) Set(ctx context.Context, key string, data interface{}, ttl time.Duration) error {
	return r.cache.Set(&cache.Item{
		Ctx:   ctx,
		Key:   key,
		Value: data,
		TTL:   ttl,
	})
}

// Get retrieves an entry from the cache based on the provided key.
func (r *RedisCache) Get(ctx context.Context, key string, data interface{}) error {
	err := r.cache.Get(ctx, key, &data)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil // Return nil if the cache key was not found (cache miss)
	}

	return err
}

// Delete removes an entry from the cache based on the provided key.
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.cache.Delete(ctx, key)
}
