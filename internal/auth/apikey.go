// Package auth gates organizer-only endpoints behind a shared key. Guests
// never authenticate; their searches are public and rate limited instead.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const headerName = "X-Organizer-Key"

// OrganizerKeyMiddleware validates the key from the X-Organizer-Key header or
// an "Authorization: Bearer" header. If key is empty, the check is disabled.
func OrganizerKeyMiddleware(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}

		provided := providedKey(c)
		if provided == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing organizer key",
				"code":  "unauthorized",
			})
			return
		}

		if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "invalid organizer key",
				"code":  "forbidden",
			})
			return
		}

		c.Next()
	}
}

func providedKey(c *gin.Context) string {
	if k := c.GetHeader(headerName); k != "" {
		return k
	}
	if token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
