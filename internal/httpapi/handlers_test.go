package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rtc-signaling/internal/auth"
	"rtc-signaling/internal/calls"

	"github.com/gin-gonic/gin"
)

func historyRouter(t *testing.T, repo calls.Repository, userID string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := Handlers{History: repo}
	r := gin.New()
	r.GET("/v1/calls/history", func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), auth.Identity{UserID: userID, Role: "user"})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}, h.GetCallHistory)
	return r
}

func seedRepo(t *testing.T) *calls.MemoryRepo {
	t.Helper()
	repo := calls.NewMemoryRepo()
	base := time.Unix(1700000000, 0).UTC()
	recs := []calls.Record{
		{ID: "r1", CallerID: "alice", CalleeID: "bob", Media: calls.MediaVideo, Status: calls.RecordCompleted, DurationSeconds: 42, CreatedAt: base},
		{ID: "r2", CallerID: "bob", CalleeID: "alice", Media: calls.MediaAudio, Status: calls.RecordMissed, CreatedAt: base.Add(time.Minute)},
		{ID: "r3", CallerID: "carol", CalleeID: "dave", Media: calls.MediaAudio, Status: calls.RecordDeclined, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, rec := range recs {
		if err := repo.Create(context.Background(), rec); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return repo
}

func TestGetCallHistory_FiltersToUser(t *testing.T) {
	r := historyRouter(t, seedRepo(t), "alice")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/calls/history", nil)
	r.ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Records []calls.Record `json:"records"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Records) != 2 {
		t.Fatalf("expected 2 records for alice, got %d", len(body.Records))
	}
	// Newest first.
	if body.Records[0].ID != "r2" {
		t.Fatalf("expected newest record first, got %s", body.Records[0].ID)
	}
}

func TestGetCallHistory_RejectsBadLimit(t *testing.T) {
	r := historyRouter(t, seedRepo(t), "alice")

	for _, q := range []string{"limit=0", "limit=-3", "limit=abc"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/calls/history?"+q, nil)
		r.ServeHTTP(w, req)
		if w.Code != 400 {
			t.Fatalf("expected 400 for %q, got %d", q, w.Code)
		}
	}
}

func TestGetCallHistory_RequiresIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := Handlers{History: calls.NewMemoryRepo()}
	r := gin.New()
	r.GET("/v1/calls/history", h.GetCallHistory)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/calls/history", nil)
	r.ServeHTTP(w, req)
	if w.Code != 401 {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}
