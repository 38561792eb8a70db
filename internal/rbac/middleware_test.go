package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"rtc-signaling/internal/auth"

	"github.com/gin-gonic/gin"
)

func serveWithRole(t *testing.T, role string, mw gin.HandlerFunc) int {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), auth.Identity{UserID: "u", Role: role})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}, mw, func(c *gin.Context) {
		c.Status(200)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRequireAnyRole_AdminBypasses(t *testing.T) {
	if code := serveWithRole(t, RoleAdmin, RequireAnyRole(RoleModerator)); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireAnyRole_DeniesUnlistedRole(t *testing.T) {
	if code := serveWithRole(t, RoleUser, RequireAnyRole(RoleModerator)); code != 403 {
		t.Fatalf("expected 403, got %d", code)
	}
}

func TestRequireAnyRole_MissingRole(t *testing.T) {
	if code := serveWithRole(t, "", RequireAnyRole(RoleUser)); code != 401 {
		t.Fatalf("expected 401, got %d", code)
	}
}
