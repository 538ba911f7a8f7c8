package middlewares

import (
	"github.com/gin-gonic/gin"
)

func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", "default-src 'self'; connect-src 'self' ws: wss:")
		c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		// session payloads must not be kept by intermediaries
		c.Header("Cache-Control", "no-store")

		c.Next()
	}
}
