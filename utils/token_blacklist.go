package utils

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const blacklistPrefix = "jwt:blacklist:"

var (
	blacklist   = map[string]time.Time{}
	blacklistMu sync.Mutex
)

// BlacklistToken revokes a token until its natural expiration. Redis is used when configured,
// otherwise the process keeps the entry.
func BlacklistToken(ctx context.Context, tokenID string, expiresAt time.Time) {
	ttl := time.Until(expiresAt)
	if ttl <= 0 || tokenID == "" {
		return
	}
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		err := rc.Set(ctx, blacklistPrefix+tokenID, "1", ttl).Err()
		if err == nil {
			return
		}
		Logger.Warn("redis blacklist failed, keeping token in memory", zap.Error(err))
	}
	blacklistMu.Lock()
	blacklist[tokenID] = expiresAt
	blacklistMu.Unlock()
}

// IsTokenBlacklisted checks if a token was revoked before natural expiration.
func IsTokenBlacklisted(ctx context.Context, tokenID string) bool {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		n, err := rc.Exists(ctx, blacklistPrefix+tokenID).Result()
		if err == nil && n > 0 {
			return true
		}
		// fail open on Redis errors, the memory fallback may still know the token
	}

	blacklistMu.Lock()
	defer blacklistMu.Unlock()
	expiresAt, ok := blacklist[tokenID]
	if !ok {
		return false
	}
	if time.Now().After(expiresAt) {
		delete(blacklist, tokenID)
		return false
	}
	return true
}
