package controllers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/chamran/apperrors"
	"github.com/cppla/chamran/middleware"
	"github.com/cppla/chamran/models"
	"github.com/cppla/chamran/services"
	"github.com/cppla/chamran/store"
	"github.com/cppla/chamran/utils"
)

// UserController serves user profiles and account deletion.
type UserController struct {
	accounts *services.AccountService
	cascade  *services.CascadeService
}

// NewUserController creates a new UserController instance.
func NewUserController(accounts *services.AccountService, cascade *services.CascadeService) *UserController {
	return &UserController{accounts: accounts, cascade: cascade}
}

// ListUsers returns every user, optionally only the followers of one user or those whose
// name or email contains q.
func (u *UserController) ListUsers(ctx *gin.Context) {
	filter := store.UserFilter{
		FollowerOf: strings.TrimSpace(ctx.Query("follower_of")),
		Query:      strings.TrimSpace(ctx.Query("q")),
	}
	users, err := u.accounts.ListUsers(ctx.Request.Context(), filter)
	if err != nil {
		utils.AbortWithError(ctx, err)
		return
	}
	utils.Success(ctx, users)
}

// Me returns the authenticated user. Anonymous callers get UserNotFound.
func (u *UserController) Me(ctx *gin.Context) {
	caller, ok := middleware.CurrentActor(ctx)
	if !ok {
		utils.AbortWithError(ctx, apperrors.ErrUserNotFound)
		return
	}
	user, err := u.accounts.User(ctx.Request.Context(), caller.ID)
	if err != nil {
		utils.AbortWithError(ctx, err)
		return
	}
	utils.Success(ctx, user)
}

// GetUser returns one user.
func (u *UserController) GetUser(ctx *gin.Context) {
	id, ok := param(ctx, "id")
	if !ok {
		return
	}
	user, err := u.accounts.User(ctx.Request.Context(), id)
	if err != nil {
		utils.AbortWithError(ctx, err)
		return
	}
	utils.Success(ctx, user)
}

// UpdateUser applies a partial profile update.
func (u *UserController) UpdateUser(ctx *gin.Context) {
	id, ok := param(ctx, "id")
	if !ok {
		return
	}
	if _, ok := manage(ctx, id); !ok {
		return
	}
	var patch models.UserPatch
	if !bindJSON(ctx, &patch) {
		return
	}

	changed, err := u.accounts.UpdateUser(ctx.Request.Context(), id, patch)
	if err != nil {
		utils.AbortWithError(ctx, err)
		return
	}
	if changed {
		// post and comment views embed the author
		utils.InvalidateByPrefix(ctx.Request.Context(), utils.CachePrefix)
	}
	utils.Success(ctx, gin.H{"changed": changed})
}

// DeleteUser deletes a user with everything the user wrote.
func (u *UserController) DeleteUser(ctx *gin.Context) {
	id, ok := param(ctx, "id")
	if !ok {
		return
	}
	if _, ok := manage(ctx, id); !ok {
		return
	}

	report, err := u.cascade.DeleteUser(ctx.Request.Context(), id)
	if err != nil {
		utils.AbortWithError(ctx, err)
		return
	}
	utils.InvalidateByPrefix(ctx.Request.Context(), utils.CachePrefix)
	utils.Success(ctx, report)
}
