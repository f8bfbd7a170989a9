package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/cppla/chamran/store"
	"github.com/cppla/chamran/utils"
)

// StatsController provides aggregate counts.
type StatsController struct {
	store *store.Store
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(s *store.Store) *StatsController {
	return &StatsController{store: s}
}

// GetStats returns the number of users, posts and comments.
func (s *StatsController) GetStats(ctx *gin.Context) {
	var users, posts, comments int64

	g, gctx := errgroup.WithContext(ctx.Request.Context())
	g.Go(func() (err error) {
		users, err = s.store.Users.Count(gctx)
		return err
	})
	g.Go(func() (err error) {
		posts, err = s.store.Posts.Count(gctx)
		return err
	})
	g.Go(func() (err error) {
		comments, err = s.store.Comments.Count(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		utils.AbortWithError(ctx, err)
		return
	}

	utils.Success(ctx, gin.H{
		"user_count":    users,
		"post_count":    posts,
		"comment_count": comments,
	})
}

// Check probes one dependency.
type Check func(ctx context.Context) error

// HealthController reports liveness and the state of optional dependencies.
type HealthController struct {
	checks map[string]Check
}

// NewHealthController creates a HealthController over the given checks.
func NewHealthController(checks map[string]Check) *HealthController {
	return &HealthController{checks: checks}
}

// Health runs every check. Any failure turns the answer into 503.
func (h *HealthController) Health(ctx *gin.Context) {
	results := make(map[string]string, len(h.checks))
	healthy := true
	for name, check := range h.checks {
		if err := check(ctx.Request.Context()); err != nil {
			healthy = false
			results[name] = err.Error()
			continue
		}
		results[name] = "ok"
	}
	if !healthy {
		utils.Respond(ctx, http.StatusServiceUnavailable, 50300, "unhealthy", gin.H{"status": "degraded", "checks": results})
		return
	}
	utils.Success(ctx, gin.H{"status": "ok", "checks": results})
}
