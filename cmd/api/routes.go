package main

import (
	"database/sql"
	"time"

	"rtc-signaling/internal/auth"
	"rtc-signaling/internal/httpapi"
	"rtc-signaling/internal/rbac"
	"rtc-signaling/internal/ws"
	"rtc-signaling/pkg/utils"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, db *sql.DB, authManager *auth.Manager, wsHandler *ws.Handler, h httpapi.Handlers) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), db, 2*time.Second); err != nil {
			c.JSON(503, gin.H{"status": "degraded"})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Signaling transport. Token auth happens inside the handler because
	// browser WebSocket clients cannot set headers.
	r.GET("/ws", wsHandler.Handle)

	// Dev-only token issuance; the main app's auth service owns this in
	// production deployments.
	r.POST("/v1/auth/token", h.IssueToken)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(auth.RequireAccessToken(authManager))
	{
		callsGroup := v1.Group("/calls")
		callsGroup.Use(rbac.RequireAnyRole(rbac.RoleUser, rbac.RoleModerator))
		{
			callsGroup.GET("/history", h.GetCallHistory)
		}

		admin := v1.Group("/admin")
		admin.Use(rbac.RequireAnyRole(rbac.RoleAdmin))
		{
			admin.GET("/stats", h.GetStats)
		}
	}
}
