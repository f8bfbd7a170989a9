package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/chamran/services"
	"github.com/cppla/chamran/utils"
)

const (
	// ContextUserIDKey is the key used to store authenticated user ID in Gin context.
	ContextUserIDKey = "user_id"
	// ContextAdminKey stores whether the caller holds the admin role.
	ContextAdminKey = "admin"
	// ContextClaimsKey stores the parsed token claims, used by logout.
	ContextClaimsKey = "claims"
)

func authFailed(ctx *gin.Context, code int, message string) {
	utils.Respond(ctx, http.StatusUnauthorized, code, message, utils.ErrorData{Type: "AuthnFailed"})
	ctx.Abort()
}

// bearer extracts the token from the Authorization header. present is false when there is no header.
func bearer(ctx *gin.Context) (token string, present bool, code int, message string) {
	authHeader := ctx.GetHeader("Authorization")
	if authHeader == "" {
		return "", false, 40102, "authorization header missing"
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", true, 40103, "invalid authorization header format"
	}
	token = strings.TrimSpace(parts[1])
	if token == "" {
		return "", true, 40104, "empty bearer token"
	}
	return token, true, 0, ""
}

// authenticate parses the token and stores the caller identity in ctx.
func authenticate(ctx *gin.Context, token string) (int, string) {
	claims, err := utils.ParseToken(token)
	if err != nil {
		return 40105, "invalid token"
	}
	if utils.IsTokenBlacklisted(ctx.Request.Context(), claims.ID) {
		return 40106, "token revoked"
	}
	ctx.Set(ContextUserIDKey, claims.UserID)
	ctx.Set(ContextAdminKey, claims.Admin)
	ctx.Set(ContextClaimsKey, claims)
	return 0, ""
}

// AuthRequired ensures the request is authenticated via JWT.
func AuthRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token, _, code, message := bearer(ctx)
		if code == 0 {
			code, message = authenticate(ctx, token)
		}
		if code != 0 {
			authFailed(ctx, code, message)
			return
		}
		ctx.Next()
	}
}

// AuthOptional identifies the caller when a token is sent. A malformed or revoked token is
// still rejected.
func AuthOptional() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token, present, code, message := bearer(ctx)
		if !present {
			ctx.Next()
			return
		}
		if code == 0 {
			code, message = authenticate(ctx, token)
		}
		if code != 0 {
			authFailed(ctx, code, message)
			return
		}
		ctx.Next()
	}
}

// CurrentActor returns the authenticated caller.
func CurrentActor(ctx *gin.Context) (services.Actor, bool) {
	id := ctx.GetString(ContextUserIDKey)
	if id == "" {
		return services.Actor{}, false
	}
	return services.Actor{ID: id, Admin: ctx.GetBool(ContextAdminKey)}, true
}

// CurrentClaims returns the token claims of the authenticated caller.
func CurrentClaims(ctx *gin.Context) (*utils.Claims, bool) {
	v, ok := ctx.Get(ContextClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*utils.Claims)
	return claims, ok
}
