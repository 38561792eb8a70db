package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"rtc-signaling/internal/auth"
	"rtc-signaling/internal/calls"
	"rtc-signaling/internal/presence"
	"rtc-signaling/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth     *auth.Manager
	History  calls.Repository
	Cache    *HistoryCache
	Registry *presence.Registry
	Calls    *calls.Service
}

// --- Auth ---

type tokenRequest struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
	Role      string `json:"role"`
}

// IssueToken issues a JWT token pair.
//
// NOTE: Dev-only surface. In production tokens come from the main
// application's auth service; this endpoint exists for local clients and
// integration tests and must not be exposed publicly.
func (h Handlers) IssueToken(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.Username == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, username, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), auth.Identity{
		UserID:    req.UserID,
		Username:  req.Username,
		AvatarURL: req.AvatarURL,
		Role:      req.Role,
	})
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Call history ---

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// GetCallHistory returns the authenticated user's recent call records,
// newest first. Responses are served from the Redis cache when fresh.
func (h Handlers) GetCallHistory(c *gin.Context) {
	if h.History == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "history not configured"})
		return
	}
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "identity required"})
		return
	}

	limit := defaultHistoryLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	ctx := c.Request.Context()
	if recs, ok := h.Cache.Get(ctx, userID, limit); ok {
		c.JSON(http.StatusOK, gin.H{"records": recs, "cached": true})
		return
	}

	recs, err := h.History.ListByUser(ctx, userID, limit)
	if err != nil {
		logger.FromGin(c).Error("call history lookup failed", "user_id", userID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "history lookup failed"})
		return
	}
	h.Cache.Set(ctx, userID, limit, recs)

	c.JSON(http.StatusOK, gin.H{"records": recs})
}

// --- Ops ---

// GetStats reports live signaling load. Admin-only (see routes).
func (h Handlers) GetStats(c *gin.Context) {
	if h.Registry == nil || h.Calls == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "stats not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"online_users":   h.Registry.OnlineUsers(),
		"open_sessions":  h.Registry.OpenSessions(),
		"inflight_calls": h.Calls.ActiveSessions(),
	})
}
