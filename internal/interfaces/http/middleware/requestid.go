// Package middleware provides the gin middleware chain for the HTTP API:
// request IDs, structured request logging, Prometheus metrics, and CORS.
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader carries the request ID on both requests and responses.
	RequestIDHeader = "X-Request-ID"

	requestIDKey = "request_id"
)

// RequestID attaches a request ID to every request: the caller's, when the
// header is present, or a fresh UUID.  The ID is echoed on the response and
// stored in the gin context for the logging middleware.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// GetRequestID returns the request ID set by RequestID, or "".
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
