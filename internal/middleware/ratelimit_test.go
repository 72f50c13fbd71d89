package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/workpass/internal/cache"
	"github.com/charlesng35/workpass/internal/database/testutil"
)

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	store := newMemoryRateStore(func() time.Time { return now })

	r := gin.New()
	r.Use(RateLimit(store, "otp", 2, time.Minute))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for i := 0; i < 2; i++ {
		w := serve(r, http.MethodGet, "/ping", "")
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := serve(r, http.MethodGet, "/ping", "")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "60", w.Header().Get("Retry-After"))
	require.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	require.Equal(t, "RATE_LIMIT_EXCEEDED", decodeError(t, w).Code)

	now = now.Add(time.Minute)
	w = serve(r, http.MethodGet, "/ping", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimitScopesAreIndependent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := NewMemoryRateStore()

	r := gin.New()
	r.GET("/a", RateLimit(store, "a", 1, time.Minute), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/b", RateLimit(store, "b", 1, time.Minute), func(c *gin.Context) { c.Status(http.StatusOK) })

	require.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/a", "").Code)
	require.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/b", "").Code)
	require.Equal(t, http.StatusTooManyRequests, serve(r, http.MethodGet, "/a", "").Code)
}

func TestRateLimitWithDatabaseStore(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := NewCacheRateStore(cache.NewDatabaseStore(db))

	r := gin.New()
	r.Use(RateLimit(store, "login", 1, time.Minute))
	r.POST("/login", func(c *gin.Context) { c.Status(http.StatusOK) })

	require.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/login", "").Code)
	require.Equal(t, http.StatusTooManyRequests, serve(r, http.MethodPost, "/login", "").Code)
}

type brokenRateStore struct{}

func (brokenRateStore) Increment(context.Context, string, time.Duration) (int, time.Duration, error) {
	return 0, 0, errors.New("redis down")
}

func TestRateLimitFailsOpen(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RateLimit(brokenRateStore{}, "otp", 1, time.Minute))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
}
