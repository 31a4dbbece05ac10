package api

import (
	"errors"
	"net/http"

	"storefront/internal/service"
	"storefront/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrTokenMissing),
		errors.Is(err, service.ErrTokenExpired),
		errors.Is(err, service.ErrTokenInvalid),
		errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrRefreshTokenMissing),
		errors.Is(err, service.ErrRefreshTokenInvalid),
		errors.Is(err, service.ErrRefreshTokenExpired),
		errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, service.ErrAlreadyFinalized),
		errors.Is(err, service.ErrPaymentRequired),
		errors.Is(err, service.ErrUserExists),
		errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrAlreadySubscribed):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrPaymentRejected):
		return http.StatusPaymentRequired
	case errors.Is(err, service.ErrRequestInProgress):
		return http.StatusConflict
	case errors.Is(err, service.ErrPaymentUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as {"message": ...}. Unexpected errors are logged
// and answered with a generic 500.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		util.GetLogger().Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.AbortWithStatusJSON(status, gin.H{"message": "Server Error"})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"message": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": msg})
}
