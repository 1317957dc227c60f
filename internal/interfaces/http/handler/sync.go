package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prostor/erpsync/internal/application/catalogsync"
	domain "github.com/prostor/erpsync/internal/domain/catalogsync"
	"github.com/prostor/erpsync/internal/infrastructure/logger"
	"github.com/prostor/erpsync/internal/interfaces/http/dto"
)

// SyncService is the orchestration surface the handlers drive
type SyncService interface {
	RunDailySync(ctx context.Context) (*catalogsync.DailySyncResult, error)
	RunCostUpdate(ctx context.Context) (*catalogsync.CostUpdateResult, error)
	ListRuns(ctx context.Context, limit int) ([]*domain.SyncRun, error)
	GetRun(ctx context.Context, id uuid.UUID) (*domain.SyncRun, error)
}

var _ SyncService = (*catalogsync.Service)(nil)

// SyncHandler triggers sync runs and serves their history
type SyncHandler struct {
	BaseHandler
	service SyncService
}

// NewSyncHandler creates a SyncHandler
func NewSyncHandler(service SyncService) *SyncHandler {
	return &SyncHandler{service: service}
}

// runContext keeps a run alive after the caller hangs up; the service
// bounds it with its own run timeout.
func runContext(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

// DailySync reconciles prices and product statuses
func (h *SyncHandler) DailySync(c *gin.Context) {
	ctx := runContext(c)
	log := logger.L(ctx)
	log.Info("Starting daily sync")

	result, err := h.service.RunDailySync(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrSyncInProgress) {
			log.Warn("Daily sync rejected, another run is active")
			h.Error(c, http.StatusConflict, dto.MessageSyncInProgress, err)
			return
		}
		log.Error("Failed to run daily sync", zap.Error(err))
		h.Error(c, http.StatusInternalServerError, dto.MessageDailySyncFailed, err)
		return
	}

	log.Info("Daily sync finished successfully",
		zap.Int("price_updates", result.PriceUpdates),
		zap.Int("status_updates", result.StatusUpdates),
	)
	h.OK(c, dto.NewDailySyncResponse(result))
}

// CostUpdate reconciles inventory item unit costs
func (h *SyncHandler) CostUpdate(c *gin.Context) {
	ctx := runContext(c)
	log := logger.L(ctx)

	result, err := h.service.RunCostUpdate(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrSyncInProgress) {
			log.Warn("Cost update rejected, another run is active")
			h.Error(c, http.StatusConflict, dto.MessageSyncInProgress, err)
			return
		}
		log.Error("Failed to update costs", zap.Error(err))
		h.Error(c, http.StatusInternalServerError, dto.MessageCostUpdateFailed, err)
		return
	}

	h.OK(c, dto.NewCostUpdateResponse(result))
}

// ListRunsQuery binds GET /sync/runs
type ListRunsQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

// ListRuns returns recent runs, newest first
func (h *SyncHandler) ListRuns(c *gin.Context) {
	var q ListRunsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.ValidationError(c, err)
		return
	}

	runs, err := h.service.ListRuns(c.Request.Context(), q.Limit)
	if err != nil {
		logger.L(c.Request.Context()).Error("Failed to list sync runs", zap.Error(err))
		h.Error(c, http.StatusInternalServerError, "Failed to list sync runs", err)
		return
	}
	h.OK(c, dto.NewSyncRunListResponse(runs))
}

// GetRun returns one run
func (h *SyncHandler) GetRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, dto.MessageInvalidRunID)
		return
	}

	run, err := h.service.GetRun(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrRunNotFound) {
			h.NotFound(c, dto.MessageRunNotFound)
			return
		}
		logger.L(c.Request.Context()).Error("Failed to load sync run", zap.String("run_id", id.String()), zap.Error(err))
		h.Error(c, http.StatusInternalServerError, "Failed to load sync run", err)
		return
	}
	h.OK(c, dto.NewSyncRunResponse(run))
}
