package database

import (
	"context"
	"time"
)

const tokenBlacklistPrefix = "parstabela:token:blacklist:"

// BlacklistToken marks a JWT as revoked (logout) until it would expire anyway
func BlacklistToken(token string, ttl time.Duration) error {
	if Redis == nil {
		return nil
	}
	ctx := context.Background()
	return Redis.Set(ctx, tokenBlacklistPrefix+token, "1", ttl).Err()
}

// IsTokenBlacklisted reports whether a JWT has been revoked
func IsTokenBlacklisted(token string) bool {
	if Redis == nil {
		return false
	}
	ctx := context.Background()
	n, err := Redis.Exists(ctx, tokenBlacklistPrefix+token).Result()
	return err == nil && n > 0
}
