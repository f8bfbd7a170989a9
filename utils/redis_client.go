package utils

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cppla/chamran/config"
)

var (
	redisClient *redis.Client
	redisMu     sync.RWMutex
)

// InitRedis connects the shared Redis client. An empty host leaves Redis disabled and the
// cache and token blacklist fall back to their in-process paths.
func InitRedis(section config.RedisSection) *redis.Client {
	if section.Host == "" {
		SetRedis(nil)
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:         net.JoinHostPort(section.Host, strconv.Itoa(section.Port)),
		Password:     section.Password,
		DB:           section.DB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		// keep the client, go-redis reconnects on its own
		Logger.Warn("redis ping failed", zap.String("addr", client.Options().Addr), zap.Error(err))
	}
	SetRedis(client)
	return client
}

// SetRedis replaces the shared client; nil disables Redis.
func SetRedis(client *redis.Client) {
	redisMu.Lock()
	redisClient = client
	redisMu.Unlock()
}

// GetRedis returns the shared Redis client or nil when Redis is disabled.
func GetRedis() *redis.Client {
	redisMu.RLock()
	defer redisMu.RUnlock()
	return redisClient
}

// CloseRedis closes the shared client.
func CloseRedis() error {
	redisMu.Lock()
	defer redisMu.Unlock()
	if redisClient == nil {
		return nil
	}
	err := redisClient.Close()
	redisClient = nil
	return err
}
