package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/chamran/config"
	"github.com/cppla/chamran/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
	var cfg config.AppConfig
	config.ApplyDefaults(&cfg)
	cfg.App.JWTSecret = "middleware-secret"
	config.Override(cfg)
	utils.SetRedis(nil)
}

func whoami(c *gin.Context) {
	actor, ok := CurrentActor(c)
	c.JSON(http.StatusOK, gin.H{"id": actor.ID, "admin": actor.Admin, "authenticated": ok})
}

func serve(r *gin.Engine, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRequired(t *testing.T) {
	r := gin.New()
	r.GET("/me", AuthRequired(), whoami)

	token, err := utils.GenerateToken("u1", true, time.Hour)
	require.NoError(t, err)

	w := serve(r, "/me", "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"u1","admin":true,"authenticated":true}`, w.Body.String())

	for _, auth := range []string{"", "Token abc", "Bearer ", "Bearer not-a-jwt"} {
		w := serve(r, "/me", auth)
		assert.Equal(t, http.StatusUnauthorized, w.Code, auth)
		assert.Contains(t, w.Body.String(), `"type":"AuthnFailed"`)
	}
}

func TestAuthRejectsRevokedToken(t *testing.T) {
	r := gin.New()
	r.GET("/me", AuthRequired(), whoami)

	token, err := utils.GenerateToken("u2", false, time.Hour)
	require.NoError(t, err)
	claims, err := utils.ParseToken(token)
	require.NoError(t, err)

	utils.BlacklistToken(context.Background(), claims.ID, claims.ExpiresAt.Time)
	w := serve(r, "/me", "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "token revoked")
}

func TestAuthOptional(t *testing.T) {
	r := gin.New()
	r.GET("/maybe", AuthOptional(), whoami)

	w := serve(r, "/maybe", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"","admin":false,"authenticated":false}`, w.Body.String())

	token, err := utils.GenerateToken("u3", false, time.Hour)
	require.NoError(t, err)
	w = serve(r, "/maybe", "Bearer "+token)
	assert.JSONEq(t, `{"id":"u3","admin":false,"authenticated":true}`, w.Body.String())

	w = serve(r, "/maybe", "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RateLimitMiddleware(4))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	// burst is half the per-minute budget
	assert.Equal(t, http.StatusNoContent, serve(r, "/", "").Code)
	assert.Equal(t, http.StatusNoContent, serve(r, "/", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, "/", "").Code)
}

func TestIPRateLimiterIsPerKey(t *testing.T) {
	l := NewIPRateLimiter(2)
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"))
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(utils.RequestIDKey)) })

	w := serve(r, "/", "")
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
	assert.Equal(t, w.Header().Get(RequestIDHeader), w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Body.String())
}

func TestStoreDeadline(t *testing.T) {
	r := gin.New()
	r.Use(StoreDeadline(time.Second))
	r.GET("/", func(c *gin.Context) {
		deadline, ok := c.Request.Context().Deadline()
		assert.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(time.Second), deadline, 500*time.Millisecond)
		c.Status(http.StatusNoContent)
	})
	assert.Equal(t, http.StatusNoContent, serve(r, "/", "").Code)
}
