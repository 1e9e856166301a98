package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baharkarakas/broker-ledger/internal/auth"
	"github.com/baharkarakas/broker-ledger/internal/models"
)

func actorEcho(t *testing.T, want *models.Actor) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a, ok := ActorFrom(r.Context())
		require.True(t, ok)
		*want = a
		w.WriteHeader(http.StatusNoContent)
	})
}

func do(h http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuth_JWT(t *testing.T) {
	tm := auth.NewTokenManager("a-secret", "r-secret", "broker-ledger", time.Minute, time.Hour)
	access, refresh, _, err := tm.GeneratePair(models.Actor{UserID: "u-1", Role: models.RoleProvider})
	require.NoError(t, err)

	var got models.Actor
	h := NewAuthMiddleware(tm, "prod").Auth(actorEcho(t, &got))

	assert.Equal(t, http.StatusNoContent, do(h, access).Code)
	assert.Equal(t, models.Actor{UserID: "u-1", Role: models.RoleProvider}, got)

	assert.Equal(t, http.StatusUnauthorized, do(h, refresh).Code)
	assert.Equal(t, http.StatusUnauthorized, do(h, "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(h, "dev-u-1").Code, "dev tokens are off outside dev")
}

func TestAuth_DevTokens(t *testing.T) {
	var got models.Actor
	h := NewAuthMiddleware(nil, "dev").Auth(actorEcho(t, &got))

	require.Equal(t, http.StatusNoContent, do(h, "dev-c1").Code)
	assert.Equal(t, models.Actor{UserID: "c1", Role: models.RoleClient}, got)

	require.Equal(t, http.StatusNoContent, do(h, "dev-a1:admin").Code)
	assert.Equal(t, models.RoleAdmin, got.Role)

	assert.Equal(t, http.StatusUnauthorized, do(h, "dev-a1:root").Code)
	assert.Equal(t, http.StatusUnauthorized, do(h, "dev-").Code)
}

func TestRequireRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := NewAuthMiddleware(nil, "dev").Auth(RequireRole(models.RoleAdmin)(ok))

	assert.Equal(t, http.StatusNoContent, do(h, "dev-a1:admin").Code)
	assert.Equal(t, http.StatusForbidden, do(h, "dev-c1").Code)

	rec := httptest.NewRecorder()
	RequireRole(models.RoleAdmin)(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(2)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, do(h, "").Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
	}))

	rec := do(h, "")
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(HeaderRequestID))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", seen)
}

func TestRecover(t *testing.T) {
	h := Recover(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic("boom") }))
	assert.Equal(t, http.StatusInternalServerError, do(h, "").Code)
}

func TestHTTPMetricsUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(HTTPMetrics)
	var pattern string
	r.Get("/requests/{id}", func(w http.ResponseWriter, r *http.Request) { pattern = routePattern(r) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/requests/42", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/requests/{id}", pattern)
}
