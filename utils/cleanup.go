package utils

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// StartJanitor periodically drops expired entries from the in-memory token blacklist and login
// guard. It only matters when Redis is not configured and stops when ctx is done.
func StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if n := sweep(now); n > 0 {
					Logger.Debug("janitor swept expired entries", zap.Int("count", n))
				}
			}
		}
	}()
}

// sweep removes entries expired at now and returns how many went.
func sweep(now time.Time) int {
	n := 0

	blacklistMu.Lock()
	for id, exp := range blacklist {
		if now.After(exp) {
			delete(blacklist, id)
			n++
		}
	}
	blacklistMu.Unlock()

	loginGuardMu.Lock()
	for key, c := range loginFails {
		if now.After(c.expires) {
			delete(loginFails, key)
			n++
		}
	}
	for key, until := range loginBans {
		if now.After(until) {
			delete(loginBans, key)
			n++
		}
	}
	loginGuardMu.Unlock()

	return n
}
