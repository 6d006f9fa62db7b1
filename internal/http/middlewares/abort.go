package middlewares

import "github.com/gin-gonic/gin"

// abort ends the request with the same error envelope the handlers use.
func abort(c *gin.Context, status int, code, message string) {
	body := gin.H{"code": code, "message": message}
	if id, ok := c.Get(CtxRequestID); ok {
		body["requestId"] = id
	}

	c.AbortWithStatusJSON(status, gin.H{"error": body})
}
