package utils

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/chamran/config"
)

func withSecret(t *testing.T, secret string) {
	t.Helper()
	var cfg config.AppConfig
	config.ApplyDefaults(&cfg)
	cfg.App.JWTSecret = secret
	cfg.App.JWTExpiryHours = 1
	config.Override(cfg)
}

func TestTokenRoundTrip(t *testing.T) {
	withSecret(t, "test-secret")

	token, err := GenerateToken("u1", true, TokenTTL())
	require.NoError(t, err)

	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.True(t, claims.Admin)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestParseTokenRejects(t *testing.T) {
	withSecret(t, "test-secret")

	expired, err := GenerateToken("u1", false, -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(expired)
	assert.Error(t, err)

	other, err := GenerateToken("u1", false, time.Hour)
	require.NoError(t, err)
	withSecret(t, "another-secret")
	_, err = ParseToken(other)
	assert.Error(t, err)

	_, err = ParseToken("not-a-token")
	assert.Error(t, err)
}

func TestBlacklistInMemory(t *testing.T) {
	SetRedis(nil)
	ctx := context.Background()

	assert.False(t, IsTokenBlacklisted(ctx, "jti-1"))
	BlacklistToken(ctx, "jti-1", time.Now().Add(time.Hour))
	assert.True(t, IsTokenBlacklisted(ctx, "jti-1"))

	// already expired tokens are not worth remembering
	BlacklistToken(ctx, "jti-2", time.Now().Add(-time.Second))
	assert.False(t, IsTokenBlacklisted(ctx, "jti-2"))
}

func TestCacheDisabledWithoutRedis(t *testing.T) {
	SetRedis(nil)
	ctx := context.Background()

	CacheSetJSON(ctx, CacheKeyPost("p1"), map[string]string{"id": "p1"}, 0)
	_, ok := CacheGetBytes(ctx, CacheKeyPost("p1"))
	assert.False(t, ok)
	InvalidateByPrefix(ctx, CachePrefix)
}

func TestCacheKeys(t *testing.T) {
	assert.Equal(t, "cache:post:p1", CacheKeyPost("p1"))
	assert.Equal(t, "cache:posts:author:u1", CacheKeyAuthorPosts("u1"))
	assert.Equal(t, "cache:comments:post:p1", CacheKeyPostComments("p1"))
}

func TestLoginGuardBansAfterLimit(t *testing.T) {
	SetRedis(nil)
	var cfg config.AppConfig
	config.ApplyDefaults(&cfg)
	cfg.App.JWTSecret = "x"
	cfg.App.LoginMaxFailures = 3
	config.Override(cfg)
	ctx := context.Background()

	assert.Equal(t, 1, LoginFailRecord(ctx, "10.0.0.9", "Eve@example.com"))
	LoginReset(ctx, "10.0.0.9", "eve@example.com")
	assert.Equal(t, 1, LoginFailRecord(ctx, "10.0.0.9", "eve@example.com"))
	assert.Equal(t, 2, LoginFailRecord(ctx, "10.0.0.9", "eve@example.com"))
	assert.False(t, LoginIsBanned(ctx, "10.0.0.9", "eve@example.com"))

	assert.Equal(t, 3, LoginFailRecord(ctx, "10.0.0.9", "eve@example.com"))
	assert.True(t, LoginIsBanned(ctx, "10.0.0.9", " EVE@example.com"))
	assert.False(t, LoginIsBanned(ctx, "10.0.0.10", "eve@example.com"))
}

func TestSweepDropsExpiredEntries(t *testing.T) {
	SetRedis(nil)
	ctx := context.Background()
	BlacklistToken(ctx, "jti-sweep", time.Now().Add(time.Minute))

	assert.Zero(t, sweep(time.Now()))
	assert.True(t, IsTokenBlacklisted(ctx, "jti-sweep"))

	assert.GreaterOrEqual(t, sweep(time.Now().Add(2*time.Hour)), 1)
	blacklistMu.Lock()
	_, ok := blacklist["jti-sweep"]
	blacklistMu.Unlock()
	assert.False(t, ok)
}
