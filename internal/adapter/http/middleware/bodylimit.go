package middleware

import (
	"net/http"

	"social-custody-gateway/pkg/apperror"
	"social-custody-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// MaxBodySize caps the request body. Requests that declare a larger
// Content-Length are rejected up front; streamed bodies fail on read.
func MaxBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			response.Error(c, apperror.ErrInvalidParameters("request body too large"))
			c.Abort()
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
