package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestRouter(log *zap.Logger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(GinRequestIDKey, "req-123")
		c.Next()
	})
	router.Use(Recovery(log), GinMiddleware(log))
	return router
}

func TestGinMiddleware(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel zapcore.Level
	}{
		{"success logs info", http.StatusOK, zapcore.InfoLevel},
		{"client error logs warn", http.StatusUnauthorized, zapcore.WarnLevel},
		{"server error logs error", http.StatusInternalServerError, zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, recorded := observer.New(zapcore.DebugLevel)
			router := newTestRouter(zap.New(core))
			router.GET("/api/cron/daily-sync", func(c *gin.Context) {
				c.Status(tt.status)
			})

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/cron/daily-sync?x=1", nil)
			router.ServeHTTP(w, req)

			logs := recorded.FilterMessage("HTTP Request").All()
			require.Len(t, logs, 1)
			assert.Equal(t, tt.wantLevel, logs[0].Level)
			fields := logs[0].ContextMap()
			assert.Equal(t, "req-123", fields["request_id"])
			assert.Equal(t, "/api/cron/daily-sync", fields["path"])
			assert.Equal(t, "x=1", fields["query"])
		})
	}
}

func TestGinMiddleware_StoresLoggerInRequestContext(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	router := newTestRouter(zap.New(core))
	router.GET("/handler", func(c *gin.Context) {
		L(c.Request.Context()).Info("from handler")
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/handler", nil))

	logs := recorded.FilterMessage("from handler").All()
	require.Len(t, logs, 1)
	assert.Equal(t, "req-123", logs[0].ContextMap()["request_id"])
	assert.Equal(t, http.MethodGet, logs[0].ContextMap()["method"])
}

func TestRecovery(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	router := newTestRouter(zap.New(core))
	router.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"message":"Internal server error"}`, w.Body.String())
	assert.Equal(t, 1, recorded.FilterMessage("Panic recovered").Len())
}
