package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/chamran/apperrors"
)

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "request_id"

// JSONResponse defines the uniform structure for API responses.
type JSONResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorData is the payload of an error response.
type ErrorData struct {
	Type string `json:"type"`
}

// Respond writes a JSON response with the given status code.
func Respond(ctx *gin.Context, status int, code int, message string, data interface{}) {
	ctx.JSON(status, JSONResponse{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

// Success returns a standard success response.
func Success(ctx *gin.Context, data interface{}) {
	Respond(ctx, http.StatusOK, 0, "success", data)
}

// Created returns a 201 response.
func Created(ctx *gin.Context, data interface{}) {
	Respond(ctx, http.StatusCreated, 0, "created", data)
}

// Error returns a standard error response.
func Error(ctx *gin.Context, status int, code int, message string) {
	Respond(ctx, status, code, message, nil)
}

// statusOf maps an error kind to its HTTP status and the leading digits of the error code.
func statusOf(kind apperrors.Kind) (int, int) {
	switch kind {
	case apperrors.KindNotFound, apperrors.KindInvalidReference:
		return http.StatusNotFound, 40400
	case apperrors.KindConflict:
		return http.StatusConflict, 40900
	case apperrors.KindAuthenticationFailed:
		return http.StatusUnauthorized, 40100
	case apperrors.KindAuthorizationFailed:
		return http.StatusForbidden, 40300
	case apperrors.KindInvalid:
		return http.StatusBadRequest, 40000
	default:
		return http.StatusInternalServerError, 50000
	}
}

var typeCodes = map[string]int{
	"UserNotFound":    1,
	"PostNotFound":    2,
	"CommentNotFound": 3,
	"UserExists":      1,
	"AuthnFailed":     1,
	"AuthzFailed":     1,
	"EmptyPatch":      1,
	"InvalidEmail":    2,
	"InvalidId":       3,
	"InvalidContent":  4,
	"InvalidName":     5,
	"InvalidRequest":  6,
}

// AbortWithError translates err into the error envelope. Internal errors are logged and
// replaced with a generic message.
func AbortWithError(ctx *gin.Context, err error) {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) || appErr.Kind == apperrors.KindInternal {
		Logger.Error("request failed",
			zap.String("path", ctx.FullPath()),
			zap.String("request_id", ctx.GetString(RequestIDKey)),
			zap.Error(err),
		)
		Respond(ctx, http.StatusInternalServerError, 50000, "internal server error", ErrorData{Type: "Internal"})
		ctx.Abort()
		return
	}
	status, base := statusOf(appErr.Kind)
	Respond(ctx, status, base+typeCodes[appErr.Type], appErr.Message, ErrorData{Type: appErr.Type})
	ctx.Abort()
}
