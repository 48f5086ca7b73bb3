package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"social-custody-gateway/internal/adapter/http/middleware"
	redisStore "social-custody-gateway/internal/adapter/storage/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

// setupRateLimitRouter authenticates callers by the X-Test-Client header so
// the limiter can key on client id.
func setupRateLimitRouter(store *redisStore.RateLimitStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	rule := middleware.RateLimitRule{Limit: 3, Window: time.Minute}
	log := zerolog.Nop()

	fakeAuth := func(c *gin.Context) {
		if id := c.GetHeader("X-Test-Client"); id != "" {
			c.Set(middleware.CtxClientID, id)
		}
	}
	r.GET("/test", fakeAuth, middleware.RateLimiter(store, "tools_call", rule, log), func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	return r
}

func newStore(t *testing.T) (*redisStore.RateLimitStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redisStore.NewRateLimitStore(client), mr
}

func get(router *gin.Engine, client string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequestWithContext(context.Background(), "GET", "/test", nil)
	if client != "" {
		req.Header.Set("X-Test-Client", client)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_AllowsWithinLimit(t *testing.T) {
	store, _ := newStore(t)
	router := setupRateLimitRouter(store)

	for i := 0; i < 3; i++ {
		w := get(router, "")
		assert.Equal(t, 200, w.Code, "request %d should succeed", i+1)
		assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	store, _ := newStore(t)
	router := setupRateLimitRouter(store)

	for i := 0; i < 3; i++ {
		assert.Equal(t, 200, get(router, "bot-1").Code)
	}

	w := get(router, "bot-1")
	assert.Equal(t, 429, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), `"kind":"RateLimited"`)
}

func TestRateLimiter_KeysByClientID(t *testing.T) {
	store, _ := newStore(t)
	router := setupRateLimitRouter(store)

	for i := 0; i < 3; i++ {
		assert.Equal(t, 200, get(router, "bot-a").Code)
	}

	// bot-b has an independent counter.
	assert.Equal(t, 200, get(router, "bot-b").Code)
	assert.Equal(t, 429, get(router, "bot-a").Code)
}

func TestRateLimiter_StoreDownFailsOpen(t *testing.T) {
	store, mr := newStore(t)
	router := setupRateLimitRouter(store)
	mr.Close()

	w := get(router, "bot-1")
	assert.Equal(t, 200, w.Code)
	assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
}
