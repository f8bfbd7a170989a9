package controllers

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/chamran/apperrors"
	"github.com/cppla/chamran/middleware"
	"github.com/cppla/chamran/services"
	"github.com/cppla/chamran/utils"
)

const cacheTTL = 10 * time.Minute

// actor returns the authenticated caller or aborts with AuthnFailed.
func actor(ctx *gin.Context) (services.Actor, bool) {
	a, ok := middleware.CurrentActor(ctx)
	if !ok {
		utils.AbortWithError(ctx, apperrors.ErrAuthnFailed)
		return services.Actor{}, false
	}
	return a, true
}

// manage checks that the caller may act on behalf of userID.
func manage(ctx *gin.Context, userID string) (services.Actor, bool) {
	a, ok := actor(ctx)
	if !ok {
		return a, false
	}
	if !a.CanManage(userID) {
		utils.AbortWithError(ctx, apperrors.ErrAuthzFailed)
		return a, false
	}
	return a, true
}

func bindJSON(ctx *gin.Context, out interface{}) bool {
	if err := ctx.ShouldBindJSON(out); err != nil {
		utils.AbortWithError(ctx, apperrors.ErrInvalidRequest.Wrap(err))
		return false
	}
	return true
}

// param returns a trimmed path parameter, aborting when it is empty.
func param(ctx *gin.Context, name string) (string, bool) {
	v := strings.TrimSpace(ctx.Param(name))
	if v == "" {
		utils.AbortWithError(ctx, apperrors.ErrInvalidID)
		return "", false
	}
	return v, true
}

// cached answers from the read-through cache, loading and storing the value on a miss.
func cached[T any](ctx *gin.Context, key string, load func(context.Context) (T, error)) {
	var hit T
	if utils.CacheGetJSON(ctx.Request.Context(), key, &hit) {
		utils.Success(ctx, hit)
		return
	}
	v, err := load(ctx.Request.Context())
	if err != nil {
		utils.AbortWithError(ctx, err)
		return
	}
	utils.CacheSetJSON(ctx.Request.Context(), key, v, cacheTTL)
	utils.Success(ctx, v)
}

// invalidatePosts drops every cached post read-model.
func invalidatePosts(ctx *gin.Context) {
	utils.InvalidateByPrefix(ctx.Request.Context(), utils.CachePrefix+"post")
}

// invalidateComments drops every cached comment list.
func invalidateComments(ctx *gin.Context) {
	utils.InvalidateByPrefix(ctx.Request.Context(), utils.CachePrefix+"comments:")
}
