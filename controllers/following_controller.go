package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/chamran/services"
	"github.com/cppla/chamran/utils"
)

// FollowingController exposes the follow graph.
type FollowingController struct {
	graph *services.GraphService
}

// NewFollowingController creates a new FollowingController instance.
func NewFollowingController(graph *services.GraphService) *FollowingController {
	return &FollowingController{graph: graph}
}

// Followers lists who follows the user in the path.
func (f *FollowingController) Followers(ctx *gin.Context) {
	id, ok := param(ctx, "id")
	if !ok {
		return
	}
	users, err := f.graph.Followers(ctx.Request.Context(), id)
	if err != nil {
		utils.AbortWithError(ctx, err)
		return
	}
	utils.Success(ctx, users)
}

// Followings lists whom the user in the path follows.
func (f *FollowingController) Followings(ctx *gin.Context) {
	id, ok := param(ctx, "id")
	if !ok {
		return
	}
	users, err := f.graph.Followings(ctx.Request.Context(), id)
	if err != nil {
		utils.AbortWithError(ctx, err)
		return
	}
	utils.Success(ctx, users)
}

func (f *FollowingController) edge(ctx *gin.Context) (string, string, bool) {
	followerID, ok := param(ctx, "id")
	if !ok {
		return "", "", false
	}
	followingID, ok := param(ctx, "following_id")
	if !ok {
		return "", "", false
	}
	if _, ok := manage(ctx, followerID); !ok {
		return "", "", false
	}
	return followerID, followingID, true
}

// Follow adds an edge. Following twice is not an error.
func (f *FollowingController) Follow(ctx *gin.Context) {
	followerID, followingID, ok := f.edge(ctx)
	if !ok {
		return
	}
	changed, err := f.graph.Follow(ctx.Request.Context(), followerID, followingID)
	if err != nil {
		utils.AbortWithError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"changed": changed})
}

// Unfollow removes an edge. Removing a missing edge is not an error.
func (f *FollowingController) Unfollow(ctx *gin.Context) {
	followerID, followingID, ok := f.edge(ctx)
	if !ok {
		return
	}
	changed, err := f.graph.Unfollow(ctx.Request.Context(), followerID, followingID)
	if err != nil {
		utils.AbortWithError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"changed": changed})
}
