package router

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/helpdesk-be/internal/api/handler"
	"github.com/cuongbtq/helpdesk-be/internal/domain"
)

// Identity headers set by the upstream auth gateway
const (
	HeaderUserID   = "X-User-ID"
	HeaderTenantID = "X-Tenant-ID"
	HeaderUserRole = "X-User-Role"
)

// LoggerMiddleware logs HTTP requests with slog
func LoggerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		logger.Info("HTTP Request",
			slog.Int("status", c.Writer.Status()),
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.String("ip", c.ClientIP()),
			slog.String("user_agent", c.Request.UserAgent()),
			slog.Duration("latency", latency),
			slog.Int("body_size", c.Writer.Size()),
		)

		if len(c.Errors) > 0 {
			for _, e := range c.Errors {
				logger.Error("Request error",
					slog.String("error", e.Error()),
					slog.Uint64("type", uint64(e.Type)),
				)
			}
		}
	}
}

// CORSMiddleware handles Cross-Origin Resource Sharing
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-User-ID, X-Tenant-ID, X-User-Role")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// IdentityMiddleware builds the caller identity from the gateway headers.
// Requests without a complete identity are rejected with 401.
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := domain.Identity{
			UserID:   strings.TrimSpace(c.GetHeader(HeaderUserID)),
			TenantID: strings.TrimSpace(c.GetHeader(HeaderTenantID)),
			Role:     strings.ToUpper(strings.TrimSpace(c.GetHeader(HeaderUserRole))),
		}

		if id.UserID == "" || id.TenantID == "" || !id.HasRole(domain.RoleAdmin, domain.RoleAgent, domain.RoleUser) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing or invalid identity",
			})
			return
		}

		handler.SetIdentity(c, id)
		c.Next()
	}
}

// RequireRole rejects callers holding none of roles with 403
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !handler.IdentityFrom(c).HasRole(roles...) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "insufficient role",
			})
			return
		}
		c.Next()
	}
}
