package catalogsync

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// RunKind / RunStatus
// ---------------------------------------------------------------------------

// RunKind names the workflow a SyncRun executed
type RunKind string

const (
	// RunKindDaily reconciles prices and product availability
	RunKindDaily RunKind = "daily"
	// RunKindCosts reconciles inventory item unit costs
	RunKindCosts RunKind = "costs"
)

// IsValid returns true if the run kind is known
func (k RunKind) IsValid() bool {
	return k == RunKindDaily || k == RunKindCosts
}

// String returns the string representation of RunKind
func (k RunKind) String() string {
	return string(k)
}

// RunStatus is the lifecycle state of a SyncRun
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// IsTerminal returns true once the run has finished
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusSucceeded || s == RunStatusFailed
}

// ---------------------------------------------------------------------------
// SyncRun
// ---------------------------------------------------------------------------

// SyncRun records one orchestrated synchronization
type SyncRun struct {
	ID                uuid.UUID
	Kind              RunKind
	Status            RunStatus
	PriceUpdates      int
	StatusUpdates     int
	CostUpdates       int
	UnmatchedBarcodes int
	Operations        []BulkOperation
	Error             string
	StartedAt         time.Time
	FinishedAt        *time.Time
}

// NewSyncRun starts a run of the given kind
func NewSyncRun(kind RunKind, startedAt time.Time) (*SyncRun, error) {
	if !kind.IsValid() {
		return nil, ErrInvalidRunKind
	}
	return &SyncRun{
		ID:        uuid.New(),
		Kind:      kind,
		Status:    RunStatusRunning,
		StartedAt: startedAt,
	}, nil
}

// AddOperation records a bulk operation submitted during the run
func (r *SyncRun) AddOperation(op BulkOperation) {
	r.Operations = append(r.Operations, op)
}

// Succeed closes the run successfully
func (r *SyncRun) Succeed(at time.Time) error {
	if r.Status.IsTerminal() {
		return ErrRunAlreadyClosed
	}
	r.Status = RunStatusSucceeded
	r.FinishedAt = &at
	return nil
}

// Fail closes the run with the error that aborted it
func (r *SyncRun) Fail(cause error, at time.Time) error {
	if r.Status.IsTerminal() {
		return ErrRunAlreadyClosed
	}
	r.Status = RunStatusFailed
	if cause != nil {
		r.Error = cause.Error()
	}
	r.FinishedAt = &at
	return nil
}

// Duration returns how long the run took, or zero while it is running
func (r *SyncRun) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// RunRepository persists sync runs
type RunRepository interface {
	Save(ctx context.Context, run *SyncRun) error
	FindByID(ctx context.Context, id uuid.UUID) (*SyncRun, error)
	ListRecent(ctx context.Context, limit int) ([]*SyncRun, error)
}
