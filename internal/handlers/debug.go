package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"social-chat/internal/telemetry"
)

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router gin.IRoutes, emitter *telemetry.AuditEmitter, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		emitter.Emit(c.Request.Context(), auditFromRequest(c, "INFO", "debug.audit_test", "audit test"))
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
