package handlers

import (
	"github.com/gin-gonic/gin"

	"social-chat/internal/middleware"
	"social-chat/internal/observability"
	"social-chat/internal/telemetry"
)

// actorID is the authenticated user id set by the auth middleware.
func actorID(c *gin.Context) string {
	return c.GetString(middleware.UserIDKey)
}

func requestIDFromContext(c *gin.Context) string {
	if id := observability.RequestIDFromContext(c.Request.Context()); id != "" {
		return id
	}
	return observability.RequestIDFromRequest(c.Request)
}

func auditFromRequest(c *gin.Context, level, action, text string) telemetry.AuditRecord {
	return telemetry.AuditRecord{
		Level:     level,
		Action:    action,
		Text:      text,
		RequestID: requestIDFromContext(c),
		TraceID:   observability.TraceIDFromContext(c.Request.Context()),
		ActorID:   actorID(c),
	}
}
