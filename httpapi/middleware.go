package httpapi

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bountyflow/auth"
)

// RequestID middleware generates a unique request ID for each request
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)

		c.Next()
	}
}

// GetRequestID gets the request ID from gin context
func GetRequestID(c *gin.Context) string {
	if requestID, exists := c.Get("request_id"); exists {
		return requestID.(string)
	}
	return ""
}

// RequestLogger logs incoming requests and their responses
func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"status", status,
			"method", c.Request.Method,
			"path", path,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
			"request_id", GetRequestID(c),
		}

		switch {
		case status >= 500:
			log.Error("request completed", attrs...)
		case status >= 400:
			log.Warn("request completed", attrs...)
		default:
			log.Info("request completed", attrs...)
		}
	}
}

// Recovery middleware recovers from panics and logs the error
func Recovery(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				requestID := GetRequestID(c)
				log.Error("panic recovered",
					"error", err,
					"request_id", requestID,
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":      "internal server error",
					"request_id": requestID,
				})
			}
		}()

		c.Next()
	}
}

// Authenticated validates the bearer token and stores the user identity in
// the gin context.
func Authenticated(svc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			return
		}

		userID, role, err := svc.VerifyToken(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set("user_id", userID)
		c.Set("role", string(role))

		c.Next()
	}
}

// UserID gets the authenticated user's id from context
func UserID(c *gin.Context) string {
	if id, exists := c.Get("user_id"); exists {
		return id.(string)
	}
	return ""
}

// UserRole gets the authenticated user's role from context
func UserRole(c *gin.Context) auth.Role {
	if role, exists := c.Get("role"); exists {
		return auth.Role(role.(string))
	}
	return ""
}

type rateLimiter struct {
	mu        sync.Mutex
	tokens    map[string]int
	lastReset time.Time
	rate      int
	window    time.Duration
}

// RateLimit middleware limits requests per IP with a fixed window counter.
func RateLimit(rate int, window time.Duration) gin.HandlerFunc {
	limiter := &rateLimiter{
		tokens:    make(map[string]int),
		lastReset: time.Now(),
		rate:      rate,
		window:    window,
	}

	return func(c *gin.Context) {
		clientIP := c.ClientIP()

		limiter.mu.Lock()
		if time.Since(limiter.lastReset) > limiter.window {
			limiter.tokens = make(map[string]int)
			limiter.lastReset = time.Now()
		}

		count := limiter.tokens[clientIP]
		if count >= limiter.rate {
			limiter.mu.Unlock()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}

		limiter.tokens[clientIP] = count + 1
		limiter.mu.Unlock()

		c.Next()
	}
}
