package database

import (
	"context"
	"encoding/json"
	"time"
)

const (
	// Cache key prefixes
	CacheKeyUpdateCheck = "parstabela:update:check"
	CacheKeyCategories  = "parstabela:categories:all"
	CacheKeyProducts    = "parstabela:products:public"

	// Cache TTLs
	CacheTTLUpdateCheck = 60 * time.Second
	CacheTTLCatalog     = 2 * time.Minute
)

// CacheGet retrieves a value from Redis cache and unmarshals it into dest
func CacheGet(key string, dest interface{}) error {
	ctx := context.Background()
	data, err := Redis.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// CacheSet stores a value in Redis cache with TTL
func CacheSet(key string, value interface{}, ttl time.Duration) error {
	ctx := context.Background()
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return Redis.Set(ctx, key, data, ttl).Err()
}

// CacheDelete removes keys from Redis cache
func CacheDelete(keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx := context.Background()
	return Redis.Del(ctx, keys...).Err()
}

// InvalidateCatalogCache clears storefront catalog caches after admin edits
func InvalidateCatalogCache() {
	if Redis == nil {
		return
	}
	CacheDelete(CacheKeyCategories, CacheKeyProducts)
}
