package router

import (
	"net/http"

	"github.com/prostor/erpsync/internal/interfaces/http/handler"
	"github.com/prostor/erpsync/internal/interfaces/http/middleware"
)

// SyncRoutes holds the trigger and history groups
type SyncRoutes struct {
	// Legacy keeps the scheduler-facing paths under /api
	Legacy *DomainGroup
	// Versioned is mounted under /api/<version>/sync
	Versioned *DomainGroup
}

// NewSyncRoutes wires the sync handler. The daily trigger admits the
// trusted scheduler header or the API key; cost updates and run history
// always require the API key.
func NewSyncRoutes(h *handler.SyncHandler, auth middleware.TriggerAuthConfig) SyncRoutes {
	dailyAuth := middleware.CronOrAPIKey(auth)
	keyAuth := middleware.APIKey(auth.APIKey)

	legacy := NewDomainGroup("sync-legacy", "/api")
	legacy.GET("/cron/daily-sync", dailyAuth, h.DailySync)
	legacy.POST("/update-costs", keyAuth, h.CostUpdate)

	versioned := NewDomainGroup("sync", "/sync")
	versioned.Match([]string{http.MethodGet, http.MethodPost}, "/daily", dailyAuth, h.DailySync)
	versioned.POST("/costs", keyAuth, h.CostUpdate)

	runs := versioned.Group("runs", "/runs")
	runs.Use(keyAuth)
	runs.GET("", h.ListRuns)
	runs.GET("/:id", h.GetRun)

	return SyncRoutes{Legacy: legacy, Versioned: versioned}
}

// Mount registers both groups on r
func (s SyncRoutes) Mount(r *Router) {
	r.RegisterRoot(s.Legacy)
	r.Register(s.Versioned)
}
