package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type stepClock struct {
	t time.Time
}

func (s *stepClock) now() time.Time { return s.t }

func newTestLimiter(t *testing.T, limit int, window time.Duration) (*RateLimiter, *stepClock) {
	t.Helper()
	clock := &stepClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(limit, window)
	rl.now = clock.now
	t.Cleanup(rl.Close)
	return rl, clock
}

func TestRateLimiter(t *testing.T) {
	t.Run("allows requests within limit", func(t *testing.T) {
		limiter, _ := newTestLimiter(t, 5, time.Minute)

		for i := range 5 {
			assert.True(t, limiter.Allow("client1"), "request %d should be allowed", i+1)
		}
	})

	t.Run("blocks requests exceeding limit", func(t *testing.T) {
		limiter, _ := newTestLimiter(t, 3, time.Minute)

		for range 3 {
			assert.True(t, limiter.Allow("client2"))
		}
		assert.False(t, limiter.Allow("client2"))
	})

	t.Run("separate limits per client", func(t *testing.T) {
		limiter, _ := newTestLimiter(t, 2, time.Minute)

		assert.True(t, limiter.Allow("clientA"))
		assert.True(t, limiter.Allow("clientA"))
		assert.False(t, limiter.Allow("clientA"))

		assert.True(t, limiter.Allow("clientB"))
		assert.True(t, limiter.Allow("clientB"))
	})

	t.Run("refills over the window", func(t *testing.T) {
		limiter, clock := newTestLimiter(t, 2, time.Minute)

		assert.True(t, limiter.Allow("client3"))
		assert.True(t, limiter.Allow("client3"))
		assert.False(t, limiter.Allow("client3"))

		clock.t = clock.t.Add(30 * time.Second)
		assert.True(t, limiter.Allow("client3"))
		assert.False(t, limiter.Allow("client3"))
	})

	t.Run("remaining", func(t *testing.T) {
		limiter, _ := newTestLimiter(t, 3, time.Minute)

		assert.Equal(t, 3, limiter.Remaining("fresh"))
		limiter.Allow("fresh")
		assert.Equal(t, 2, limiter.Remaining("fresh"))
	})

	t.Run("sweep drops idle clients", func(t *testing.T) {
		limiter, clock := newTestLimiter(t, 1, time.Minute)

		limiter.Allow("idle")
		clock.t = clock.t.Add(3 * time.Minute)
		limiter.sweep()

		limiter.mu.Lock()
		defer limiter.mu.Unlock()
		assert.Empty(t, limiter.clients)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	limiter, _ := newTestLimiter(t, 2, time.Minute)
	router := gin.New()
	router.Use(RateLimit(limiter))
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	first := send()
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusOK, send().Code)

	blocked := send()
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.Equal(t, "60", blocked.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"message":"Too many requests"}`, blocked.Body.String())
}
