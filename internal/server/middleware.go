package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	retrerrors "github.com/civicmesh/retrieval/internal/errors"
)

const (
	userIDKey       = "userID"
	requestIDKey    = "requestID"
	requestIDHeader = "X-Request-ID"
	userIDHeader    = "X-User-ID"
)

// RequestID assigns each request a UUID, honoring one supplied by the
// caller.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// RequestLogger emits one structured log line per request.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("http_request",
			slog.String("request_id", c.GetString(requestIDKey)),
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)))
	}
}

// RequireUser rejects requests without a caller identity.
// Authentication proper lives upstream; this service only needs the
// identity for query logging.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(userIDHeader)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{
				Error: "missing caller identity",
				Code:  retrerrors.ErrCodeUnauthorized,
			})
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// RateLimit applies a token-bucket limiter across all requests.
func RateLimit(limit float64, burst int) gin.HandlerFunc {
	if burst <= 0 {
		burst = int(limit)
		if burst < 1 {
			burst = 1
		}
	}
	limiter := rate.NewLimiter(rate.Limit(limit), burst)

	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{
				Error: "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
