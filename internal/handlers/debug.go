package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// AuditEmitter is the audit sink exercised by the debug route.
type AuditEmitter interface {
	Emit(ctx context.Context, level, text string, userID *string)
}

// PresenceSnapshot exposes the online user set.
type PresenceSnapshot interface {
	OnlineSnapshot() []string
}

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router gin.IRouter, emitter AuditEmitter, presence PresenceSnapshot, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "audit emitter not configured"})
			return
		}
		emitter.Emit(c.Request.Context(), "INFO", "audit test", userIDPtrFromContext(c))
		respond(c, http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/debug/presence", func(c *gin.Context) {
		respond(c, http.StatusOK, gin.H{"online": presence.OnlineSnapshot()})
	})
}
