package handler

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/prostor/erpsync/internal/infrastructure/logger"
)

// HealthCheck probes one dependency
type HealthCheck func(ctx context.Context) error

// HealthHandler serves liveness and build information
type HealthHandler struct {
	BaseHandler
	name      string
	version   string
	startTime time.Time
	timeout   time.Duration
	checks    map[string]HealthCheck
	now       func() time.Time
}

// NewHealthHandler creates a HealthHandler. checks are run on every
// health request; a nil map means the service has no dependencies to probe.
func NewHealthHandler(name, version string, checks map[string]HealthCheck) *HealthHandler {
	if checks == nil {
		checks = map[string]HealthCheck{}
	}
	return &HealthHandler{
		name:      name,
		version:   version,
		startTime: time.Now(),
		timeout:   2 * time.Second,
		checks:    checks,
		now:       time.Now,
	}
}

// HealthResponse reports each dependency as "ok" or "error"
type HealthResponse struct {
	Status string            `json:"status"`
	Time   string            `json:"time"`
	Checks map[string]string `json:"checks"`
}

// InfoResponse describes the running binary
type InfoResponse struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

// Health runs every check and answers 503 when any fails
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := HealthResponse{
		Status: "healthy",
		Time:   h.now().UTC().Format(time.RFC3339),
		Checks: make(map[string]string, len(names)),
	}
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			logger.L(c.Request.Context()).Warn("Health check failed", zap.String("check", name), zap.Error(err))
			resp.Checks[name] = "error"
			resp.Status = "unhealthy"
			continue
		}
		resp.Checks[name] = "ok"
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

// Info returns name, version and uptime
func (h *HealthHandler) Info(c *gin.Context) {
	h.OK(c, InfoResponse{
		Name:      h.name,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    h.now().Sub(h.startTime).Round(time.Second).String(),
	})
}
