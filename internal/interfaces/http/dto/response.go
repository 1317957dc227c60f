// Package dto defines the JSON bodies of the sync HTTP surface.
package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/prostor/erpsync/internal/application/catalogsync"
	domain "github.com/prostor/erpsync/internal/domain/catalogsync"
)

// Response messages
const (
	MessageDailySyncCompleted = "Daily sync completed successfully."
	MessageDailySyncFailed    = "Failed to run daily sync"
	MessageCostUpdateStarted  = "Cost update process started."
	MessageNoCostUpdates      = "No cost updates required."
	MessageCostUpdateFailed   = "Failed to update costs"
	MessageSyncInProgress     = "Sync already in progress"
	MessageUnauthorized       = "Unauthorized"
	MessageRunNotFound        = "Sync run not found"
	MessageInvalidRunID       = "Invalid run ID"
	MessageTooManyRequests    = "Too many requests"
	MessageRequestTooLarge    = "Request body too large"
	MessageValidationFailed   = "Request validation failed"
)

// MessageResponse is the body of every failure
type MessageResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// NewErrorResponse builds a failure body from err
func NewErrorResponse(message string, err error) MessageResponse {
	resp := MessageResponse{Message: message}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}

// ValidationDetail describes one rejected field
type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrorResponse is returned when query or body binding fails
type ValidationErrorResponse struct {
	Message   string             `json:"message"`
	RequestID string             `json:"requestId,omitempty"`
	Details   []ValidationDetail `json:"details"`
}

// UpdateCounts is the number of price and status changes submitted
type UpdateCounts struct {
	Prices   int `json:"prices"`
	Statuses int `json:"statuses"`
}

// DailySyncResponse is returned by the daily sync trigger
type DailySyncResponse struct {
	Message    string                 `json:"message"`
	RunID      string                 `json:"runId,omitempty"`
	Updates    UpdateCounts           `json:"updates"`
	Operations []domain.BulkOperation `json:"operations"`
}

// NewDailySyncResponse converts a daily sync result
func NewDailySyncResponse(result *catalogsync.DailySyncResult) DailySyncResponse {
	resp := DailySyncResponse{
		Message:    MessageDailySyncCompleted,
		Operations: []domain.BulkOperation{},
	}
	if result == nil {
		return resp
	}
	resp.RunID = runID(result.RunID)
	resp.Updates = UpdateCounts{Prices: result.PriceUpdates, Statuses: result.StatusUpdates}
	if len(result.Operations) > 0 {
		resp.Operations = result.Operations
	}
	return resp
}

// CostUpdateResponse is returned by the cost update trigger. Operation is
// omitted when nothing changed.
type CostUpdateResponse struct {
	Message          string                `json:"message"`
	RunID            string                `json:"runId,omitempty"`
	Operation        *domain.BulkOperation `json:"operation,omitempty"`
	UpdatesCount     int                   `json:"updatesCount"`
	NotFoundBarcodes []string              `json:"notFoundBarcodes"`
}

// NewCostUpdateResponse converts a cost update result
func NewCostUpdateResponse(result *catalogsync.CostUpdateResult) CostUpdateResponse {
	resp := CostUpdateResponse{
		Message:          MessageNoCostUpdates,
		NotFoundBarcodes: []string{},
	}
	if result == nil {
		return resp
	}
	resp.RunID = runID(result.RunID)
	resp.UpdatesCount = result.UpdatesCount
	if result.Operation != nil {
		resp.Message = MessageCostUpdateStarted
		resp.Operation = result.Operation
	}
	for _, b := range result.NotFoundBarcodes {
		resp.NotFoundBarcodes = append(resp.NotFoundBarcodes, b.String())
	}
	return resp
}

// SyncRunResponse is one entry of the run history
type SyncRunResponse struct {
	ID                string                 `json:"id"`
	Kind              string                 `json:"kind"`
	Status            string                 `json:"status"`
	PriceUpdates      int                    `json:"priceUpdates"`
	StatusUpdates     int                    `json:"statusUpdates"`
	CostUpdates       int                    `json:"costUpdates"`
	UnmatchedBarcodes int                    `json:"unmatchedBarcodes"`
	Operations        []domain.BulkOperation `json:"operations"`
	Error             string                 `json:"error,omitempty"`
	StartedAt         time.Time              `json:"startedAt"`
	FinishedAt        *time.Time             `json:"finishedAt,omitempty"`
	DurationMs        int64                  `json:"durationMs"`
}

// NewSyncRunResponse converts a stored run
func NewSyncRunResponse(run *domain.SyncRun) SyncRunResponse {
	ops := run.Operations
	if ops == nil {
		ops = []domain.BulkOperation{}
	}
	return SyncRunResponse{
		ID:                run.ID.String(),
		Kind:              run.Kind.String(),
		Status:            string(run.Status),
		PriceUpdates:      run.PriceUpdates,
		StatusUpdates:     run.StatusUpdates,
		CostUpdates:       run.CostUpdates,
		UnmatchedBarcodes: run.UnmatchedBarcodes,
		Operations:        ops,
		Error:             run.Error,
		StartedAt:         run.StartedAt,
		FinishedAt:        run.FinishedAt,
		DurationMs:        run.Duration().Milliseconds(),
	}
}

// SyncRunListResponse wraps the run history
type SyncRunListResponse struct {
	Runs  []SyncRunResponse `json:"runs"`
	Count int               `json:"count"`
}

// NewSyncRunListResponse converts a page of runs
func NewSyncRunListResponse(runs []*domain.SyncRun) SyncRunListResponse {
	items := make([]SyncRunResponse, 0, len(runs))
	for _, run := range runs {
		items = append(items, NewSyncRunResponse(run))
	}
	return SyncRunListResponse{Runs: items, Count: len(items)}
}

func runID(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}
