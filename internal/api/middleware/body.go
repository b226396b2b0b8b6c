package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// MaxJSONSize bounds embedder request bodies. Commands carry a URL and a few flags.
const MaxJSONSize = 64 * 1024

// BodyLimit rejects request bodies larger than limit bytes
func BodyLimit(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": "request body too large",
			})
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}
