package ratelimit

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Middleware rejects requests over budget with 429. The key is the client IP
// plus the :eventId path parameter. Limiter errors fail open: a Redis outage
// should not take search down with it.
func Middleware(l Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP() + ":" + c.Param("eventId")

		ok, retryAfter, err := l.Allow(c.Request.Context(), key)
		if err != nil {
			slog.Warn("rate limiter unavailable", "error", err)
			c.Next()
			return
		}
		if !ok {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "too many searches, try again later",
				"code":  "rate_limited",
			})
			return
		}
		c.Next()
	}
}
