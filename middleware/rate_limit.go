package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/cppla/chamran/utils"
)

const limiterIdle = 5 * time.Minute

type ipLimiter struct {
	limiter *rate.Limiter
	expires time.Time
}

// IPRateLimiter keeps one token bucket per client IP.
type IPRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter
	limit    rate.Limit
	burst    int
}

// NewIPRateLimiter allows perMinute requests per IP with a burst of half that.
func NewIPRateLimiter(perMinute int) *IPRateLimiter {
	return &IPRateLimiter{
		limiters: map[string]*ipLimiter{},
		limit:    rate.Every(time.Minute / time.Duration(max(perMinute, 1))),
		burst:    max(perMinute/2, 1),
	}
}

// Allow reports whether key may make another request now.
func (l *IPRateLimiter) Allow(key string) bool {
	return l.get(key).Allow()
}

func (l *IPRateLimiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for k, entry := range l.limiters {
		if now.After(entry.expires) {
			delete(l.limiters, k)
		}
	}
	if entry, ok := l.limiters[key]; ok {
		entry.expires = now.Add(limiterIdle)
		return entry.limiter
	}
	entry := &ipLimiter{limiter: rate.NewLimiter(l.limit, l.burst), expires: now.Add(limiterIdle)}
	l.limiters[key] = entry
	return entry.limiter
}

// RateLimitMiddleware applies an IP based rate limiter using a token bucket.
func RateLimitMiddleware(perMinute int) gin.HandlerFunc {
	limiter := NewIPRateLimiter(perMinute)
	return func(ctx *gin.Context) {
		if !limiter.Allow(ctx.ClientIP()) {
			utils.Respond(ctx, http.StatusTooManyRequests, 42901, "rate limit exceeded", utils.ErrorData{Type: "RateLimited"})
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}
