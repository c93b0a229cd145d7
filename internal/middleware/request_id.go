package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"social-chat/internal/observability"
)

// RequestID makes sure every request carries an X-Request-Id, echoes it on
// the response and puts it on the request context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := observability.RequestIDFromRequest(c.Request)
		if id == "" {
			id = uuid.NewString()
			c.Request.Header.Set(observability.RequestIDHeader, id)
		}
		c.Writer.Header().Set(observability.RequestIDHeader, id)
		c.Request = c.Request.WithContext(observability.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}
