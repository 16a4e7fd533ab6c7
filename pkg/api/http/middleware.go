package http

import (
	"net/http"
	"time"

	"github.com/aescanero/launchorch/pkg/api/origin"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// requestLogger is a middleware for request logging
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		duration := time.Since(start)

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", duration),
			zap.String("client_ip", c.ClientIP()))
	}
}

// corsMiddleware answers CORS for the allowed origins and rejects
// cross-origin browser requests from anywhere else
func corsMiddleware(policy *origin.Policy) gin.HandlerFunc {
	if policy == nil {
		policy = origin.NewPolicy(nil)
	}
	return func(c *gin.Context) {
		if !policy.Allowed(c.Request) {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
				Error: ErrorDetail{Code: "ORIGIN_NOT_ALLOWED", Message: "origin not allowed: " + c.GetHeader("Origin")},
			})
			return
		}

		if o := c.GetHeader("Origin"); o != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", o)
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept, Origin, Cache-Control")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")
			c.Writer.Header().Add("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
