package utils

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cppla/chamran/config"
)

// Failed logins are counted per client IP and email within a window; reaching the limit bans
// the pair for a while. Redis keeps the counters when configured, otherwise the process does.

const loginFailWindow = time.Hour

type loginCounter struct {
	n       int
	expires time.Time
}

var (
	loginFails   = map[string]*loginCounter{}
	loginBans    = map[string]time.Time{}
	loginGuardMu sync.Mutex
)

func loginKey(kind, ip, email string) string {
	return "login:" + kind + ":" + ip + ":" + strings.ToLower(strings.TrimSpace(email))
}

func loginLimits() (int, time.Duration) {
	app := config.Get().App
	minutes := app.LoginBanMinutes
	if minutes <= 0 {
		minutes = 15
	}
	return app.LoginMaxFailures, time.Duration(minutes) * time.Minute
}

// LoginIsBanned reports whether ip may not try email right now.
func LoginIsBanned(ctx context.Context, ip, email string) bool {
	key := loginKey("ban", ip, email)
	if cli := GetRedis(); cli != nil {
		ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer cancel()
		n, err := cli.Exists(ctx, key).Result()
		// fail open
		return err == nil && n > 0
	}

	loginGuardMu.Lock()
	defer loginGuardMu.Unlock()
	until, ok := loginBans[key]
	if !ok {
		return false
	}
	if time.Now().After(until) {
		delete(loginBans, key)
		return false
	}
	return true
}

// LoginFailRecord counts a failed attempt and bans the pair once the limit is reached.
// It returns the failures counted in the current window; 0 when the guard is disabled.
func LoginFailRecord(ctx context.Context, ip, email string) int {
	limit, ban := loginLimits()
	if limit <= 0 {
		return 0
	}
	failKey, banKey := loginKey("fail", ip, email), loginKey("ban", ip, email)

	if cli := GetRedis(); cli != nil {
		ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer cancel()
		n, err := cli.Incr(ctx, failKey).Result()
		if err != nil {
			return 0
		}
		if n == 1 {
			_ = cli.Expire(ctx, failKey, loginFailWindow).Err()
		}
		if int(n) >= limit {
			_ = cli.Set(ctx, banKey, "1", ban).Err()
			_ = cli.Del(ctx, failKey).Err()
		}
		return int(n)
	}

	loginGuardMu.Lock()
	defer loginGuardMu.Unlock()
	now := time.Now()
	c, ok := loginFails[failKey]
	if !ok || now.After(c.expires) {
		c = &loginCounter{expires: now.Add(loginFailWindow)}
		loginFails[failKey] = c
	}
	c.n++
	n := c.n
	if n >= limit {
		loginBans[banKey] = now.Add(ban)
		delete(loginFails, failKey)
	}
	return n
}

// LoginReset forgets the failures of the pair after a successful login.
func LoginReset(ctx context.Context, ip, email string) {
	failKey := loginKey("fail", ip, email)
	if cli := GetRedis(); cli != nil {
		ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer cancel()
		_ = cli.Del(ctx, failKey).Err()
		return
	}
	loginGuardMu.Lock()
	delete(loginFails, failKey)
	loginGuardMu.Unlock()
}
