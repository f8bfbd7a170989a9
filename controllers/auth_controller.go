package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/chamran/apperrors"
	"github.com/cppla/chamran/middleware"
	"github.com/cppla/chamran/models"
	"github.com/cppla/chamran/services"
	"github.com/cppla/chamran/utils"
)

// AuthController handles signup, login, logout and password changes.
type AuthController struct {
	accounts *services.AccountService
}

// NewAuthController creates a new AuthController instance.
func NewAuthController(accounts *services.AccountService) *AuthController {
	return &AuthController{accounts: accounts}
}

type authResponse struct {
	User models.User `json:"user"`
	JWT  string      `json:"jwt"`
}

func (a *AuthController) respondWithToken(ctx *gin.Context, status int, user *models.User) {
	token, err := utils.GenerateToken(user.ID, user.IsAdmin(), utils.TokenTTL())
	if err != nil {
		utils.AbortWithError(ctx, apperrors.Internal("generate token", err))
		return
	}
	utils.Respond(ctx, status, 0, "success", authResponse{User: *user, JWT: token})
}

// Signup registers a member account and logs it in.
func (a *AuthController) Signup(ctx *gin.Context) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !bindJSON(ctx, &req) {
		return
	}

	user, err := a.accounts.Signup(ctx.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		utils.AbortWithError(ctx, err)
		return
	}
	a.respondWithToken(ctx, http.StatusCreated, user)
}

// Login exchanges an email and password for a token.
func (a *AuthController) Login(ctx *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !bindJSON(ctx, &req) {
		return
	}

	ip := ctx.ClientIP()
	if utils.LoginIsBanned(ctx.Request.Context(), ip, req.Email) {
		utils.Respond(ctx, http.StatusTooManyRequests, 42902, "too many failed logins, try again later", utils.ErrorData{Type: "TooManyAttempts"})
		ctx.Abort()
		return
	}

	user, err := a.accounts.Login(ctx.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, apperrors.ErrAuthnFailed) {
			utils.LoginFailRecord(ctx.Request.Context(), ip, req.Email)
		}
		utils.AbortWithError(ctx, err)
		return
	}
	utils.LoginReset(ctx.Request.Context(), ip, req.Email)
	a.respondWithToken(ctx, http.StatusOK, user)
}

// Logout invalidates the token by blacklisting it until expiration.
func (a *AuthController) Logout(ctx *gin.Context) {
	claims, ok := middleware.CurrentClaims(ctx)
	if !ok {
		utils.AbortWithError(ctx, apperrors.ErrAuthnFailed)
		return
	}

	expiresAt := time.Now().Add(utils.TokenTTL())
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	utils.BlacklistToken(ctx.Request.Context(), claims.ID, expiresAt)
	utils.Success(ctx, gin.H{"message": "logged out"})
}

// ChangePassword sets the password of the user in the path.
func (a *AuthController) ChangePassword(ctx *gin.Context) {
	userID, ok := param(ctx, "id")
	if !ok {
		return
	}
	caller, ok := actor(ctx)
	if !ok {
		return
	}
	var req struct {
		Password string `json:"password"`
	}
	if !bindJSON(ctx, &req) {
		return
	}

	if err := a.accounts.ChangePassword(ctx.Request.Context(), caller.ID, caller, userID, req.Password); err != nil {
		utils.AbortWithError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"message": "password changed"})
}
