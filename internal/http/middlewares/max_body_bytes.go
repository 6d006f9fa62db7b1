package middlewares

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// MaxBodyBytes rejects a declared oversize body up front and caps the reader
// for bodies that lie about or omit their length.
func MaxBodyBytes(max int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > max {
			abort(c, http.StatusRequestEntityTooLarge, "body_too_large",
				"Request body must not exceed "+strconv.FormatInt(max, 10)+" bytes")
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, max)

		c.Next()
	}
}
