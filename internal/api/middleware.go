package api

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RequestIDMiddleware generates or propagates request IDs for tracing
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// LoggerMiddleware logs each HTTP request after it completes
func LoggerMiddleware(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Info().
			Str("request_id", c.GetString("request_id")).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request")
	}
}

// AuthMiddleware validates API key authentication
func AuthMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-API-Key")
		if providedKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, NewErrorResponse(
				"UNAUTHORIZED",
				"Missing API key",
				c.GetString("request_id"),
			))
			return
		}

		if providedKey != apiKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, NewErrorResponse(
				"UNAUTHORIZED",
				"Invalid API key",
				c.GetString("request_id"),
			))
			return
		}

		c.Next()
	}
}

// HTTPMetricsRecorder is the subset of the metrics collector the
// middleware needs
type HTTPMetricsRecorder interface {
	RecordHTTPRequest(method, path string, status int)
}

// MetricsMiddleware records request counts per method, path and status
func MetricsMiddleware(collector HTTPMetricsRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path

		c.Next()

		collector.RecordHTTPRequest(c.Request.Method, path, c.Writer.Status())
	}
}

// rateLimiter tracks request budgets per client IP within a fixed window
type rateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*clientWindow
	rate      int
	window    time.Duration
	lastSweep time.Time
}

type clientWindow struct {
	tokens    int
	lastReset time.Time
}

// RateLimitMiddleware implements fixed-window rate limiting per client IP
func RateLimitMiddleware(requestsPerWindow int, window time.Duration) gin.HandlerFunc {
	limiter := &rateLimiter{
		clients:   make(map[string]*clientWindow),
		rate:      requestsPerWindow,
		window:    window,
		lastSweep: time.Now(),
	}

	return func(c *gin.Context) {
		remaining, resetAt, ok := limiter.take(clientIP(c))

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", requestsPerWindow))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", resetAt.Unix()))

		if !ok {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, NewErrorResponse(
				"RATE_LIMITED",
				"Too many requests",
				c.GetString("request_id"),
			))
			return
		}

		c.Next()
	}
}

func (rl *rateLimiter) take(ip string) (remaining int, resetAt time.Time, ok bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	// Evict idle clients inline so the map does not grow without bound.
	// Amortized over requests; no background goroutine to shut down.
	if now.Sub(rl.lastSweep) >= rl.window*10 {
		rl.sweep(now)
	}

	client, exists := rl.clients[ip]
	if !exists || now.Sub(client.lastReset) >= rl.window {
		client = &clientWindow{tokens: rl.rate, lastReset: now}
		rl.clients[ip] = client
	}

	resetAt = client.lastReset.Add(rl.window)
	if client.tokens <= 0 {
		return 0, resetAt, false
	}

	client.tokens--
	return client.tokens, resetAt, true
}

// sweep removes clients idle for more than two windows. Caller holds the lock.
func (rl *rateLimiter) sweep(now time.Time) {
	for ip, client := range rl.clients {
		if now.Sub(client.lastReset) > rl.window*2 {
			delete(rl.clients, ip)
		}
	}
	rl.lastSweep = now
}

func clientIP(c *gin.Context) string {
	host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		// RemoteAddr might not have port
		return c.Request.RemoteAddr
	}
	return host
}
