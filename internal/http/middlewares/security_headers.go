package middlewares

import "github.com/gin-gonic/gin"

// The API only serves JSON to the dashboard, never documents.
const apiCSP = "default-src 'none'; frame-ancestors 'none'; base-uri 'none'"

func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Content-Security-Policy", apiCSP)
		h.Set("Cross-Origin-Resource-Policy", "same-site")

		// admin data; browsers may keep it only to revalidate with the ETag
		h.Set("Cache-Control", "private, no-cache")

		c.Next()
	}
}
