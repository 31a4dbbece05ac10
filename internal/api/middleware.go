package api

import (
	"strconv"
	"strings"
	"time"

	"storefront/internal/models"
	"storefront/internal/service"
	"storefront/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const userKey = "user"

// authenticate resolves the bearer token; ok is false when the header is absent
func (h *Handler) authenticate(c *gin.Context) (*models.User, bool, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return nil, false, service.ErrTokenMissing
	}
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || strings.TrimSpace(token) == "" {
		return nil, true, service.ErrTokenMissing
	}
	user, err := h.auth.Authenticate(c.Request.Context(), strings.TrimSpace(token))
	return user, true, err
}

// AuthRequired rejects requests without a valid access token for an
// existing user
func (h *Handler) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, _, err := h.authenticate(c)
		if err != nil {
			respondError(c, err)
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

// OptionalAuth attaches the user when a token is sent; anonymous requests pass
func (h *Handler) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, present, err := h.authenticate(c)
		if !present {
			c.Next()
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

// Require allows only users whose role grants capability. Must run after
// AuthRequired.
func Require(capability models.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		if user == nil || !user.Role.Can(capability) {
			respondError(c, service.ErrForbidden)
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) *models.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		util.HTTPRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
		util.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}

// accessLog writes one structured line per request
func accessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if user := currentUser(c); user != nil {
			fields = append(fields, zap.String("user_id", user.ID.Hex()))
		}
		logger.Info("HTTP request", fields...)
	}
}
