package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func(seen *string) *gin.Engine {
		router := gin.New()
		router.Use(RequestID())
		router.GET("/test", func(c *gin.Context) {
			*seen = GetRequestID(c)
			c.Status(http.StatusOK)
		})
		return router
	}

	t.Run("generates an ID when none is sent", func(t *testing.T) {
		var seen string
		w := httptest.NewRecorder()
		newRouter(&seen).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		assert.Len(t, seen, 32)
		assert.Equal(t, seen, w.Header().Get(HeaderRequestID))
	})

	t.Run("reuses inbound ID", func(t *testing.T) {
		var seen string
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(HeaderRequestID, "req-123")
		w := httptest.NewRecorder()
		newRouter(&seen).ServeHTTP(w, req)

		assert.Equal(t, "req-123", seen)
		assert.Equal(t, "req-123", w.Header().Get(HeaderRequestID))
	})

	t.Run("replaces oversized inbound ID", func(t *testing.T) {
		var seen string
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(HeaderRequestID, strings.Repeat("a", MaxRequestIDLength+1))
		w := httptest.NewRecorder()
		newRouter(&seen).ServeHTTP(w, req)

		assert.Len(t, seen, 32)
	})
}

func TestGenerateRequestID_Unique(t *testing.T) {
	ids := make(map[string]struct{})
	for range 100 {
		ids[generateRequestID()] = struct{}{}
	}
	assert.Len(t, ids, 100)
}

func TestSecure(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(Secure())
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}
