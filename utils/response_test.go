package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cppla/chamran/apperrors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Type string `json:"type"`
	} `json:"data"`
}

func TestAbortWithError(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		code    int
		errType string
	}{
		{"not found", apperrors.ErrPostNotFound, http.StatusNotFound, 40402, "PostNotFound"},
		{"reference", apperrors.Reference(apperrors.ErrUserNotFound), http.StatusNotFound, 40401, "UserNotFound"},
		{"conflict", apperrors.ErrUserExists, http.StatusConflict, 40901, "UserExists"},
		{"authn", apperrors.ErrAuthnFailed, http.StatusUnauthorized, 40101, "AuthnFailed"},
		{"authz", apperrors.ErrAuthzFailed, http.StatusForbidden, 40301, "AuthzFailed"},
		{"invalid", apperrors.ErrInvalidEmail, http.StatusBadRequest, 40002, "InvalidEmail"},
		{"internal", apperrors.Internal("find", errors.New("socket closed")), http.StatusInternalServerError, 50000, "Internal"},
		{"foreign", errors.New("boom"), http.StatusInternalServerError, 50000, "Internal"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			AbortWithError(c, tc.err)

			assert.Equal(t, tc.status, w.Code)
			assert.True(t, c.IsAborted())
			var body errorBody
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tc.code, body.Code)
			assert.Equal(t, tc.errType, body.Data.Type)
			assert.NotContains(t, w.Body.String(), "socket closed")
		})
	}
}

func TestGinzapAndRecovery(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	r := gin.New()
	r.Use(Ginzap(logger, "2006-01-02", true), RecoveryWithZap(logger, true))
	r.GET("/ok", func(c *gin.Context) { Success(c, "pong") })
	r.GET("/panic", func(c *gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, logs.FilterMessage("/ok").Len())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 1, logs.FilterMessage("[Recovery from panic]").Len())
}
