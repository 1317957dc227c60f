package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/prostor/erpsync/internal/domain/catalogsync"
)

// Ensure GormSyncRunRepository implements catalogsync.RunRepository
var _ catalogsync.RunRepository = (*GormSyncRunRepository)(nil)

// SyncRunModel is the GORM model for the sync_runs table
type SyncRunModel struct {
	ID                uuid.UUID                   `gorm:"type:uuid;primaryKey"`
	Kind              string                      `gorm:"type:varchar(16);not null;index:idx_sync_runs_kind_started,priority:1"`
	Status            string                      `gorm:"type:varchar(16);not null"`
	PriceUpdates      int                         `gorm:"not null;default:0"`
	StatusUpdates     int                         `gorm:"not null;default:0"`
	CostUpdates       int                         `gorm:"not null;default:0"`
	UnmatchedBarcodes int                         `gorm:"not null;default:0"`
	Operations        []catalogsync.BulkOperation `gorm:"type:jsonb;serializer:json"`
	Error             string                      `gorm:"type:text"`
	StartedAt         time.Time                   `gorm:"not null;index;index:idx_sync_runs_kind_started,priority:2"`
	FinishedAt        *time.Time
}

// TableName returns the table name for the model
func (SyncRunModel) TableName() string {
	return "sync_runs"
}

// ToEntity converts the model to a domain entity
func (m *SyncRunModel) ToEntity() *catalogsync.SyncRun {
	return &catalogsync.SyncRun{
		ID:                m.ID,
		Kind:              catalogsync.RunKind(m.Kind),
		Status:            catalogsync.RunStatus(m.Status),
		PriceUpdates:      m.PriceUpdates,
		StatusUpdates:     m.StatusUpdates,
		CostUpdates:       m.CostUpdates,
		UnmatchedBarcodes: m.UnmatchedBarcodes,
		Operations:        m.Operations,
		Error:             m.Error,
		StartedAt:         m.StartedAt,
		FinishedAt:        m.FinishedAt,
	}
}

// SyncRunModelFromEntity creates a model from a domain entity
func SyncRunModelFromEntity(e *catalogsync.SyncRun) *SyncRunModel {
	return &SyncRunModel{
		ID:                e.ID,
		Kind:              string(e.Kind),
		Status:            string(e.Status),
		PriceUpdates:      e.PriceUpdates,
		StatusUpdates:     e.StatusUpdates,
		CostUpdates:       e.CostUpdates,
		UnmatchedBarcodes: e.UnmatchedBarcodes,
		Operations:        e.Operations,
		Error:             e.Error,
		StartedAt:         e.StartedAt,
		FinishedAt:        e.FinishedAt,
	}
}

// GormSyncRunRepository stores sync runs with GORM
type GormSyncRunRepository struct {
	db *gorm.DB
}

// NewGormSyncRunRepository creates a new sync run repository
func NewGormSyncRunRepository(db *gorm.DB) *GormSyncRunRepository {
	return &GormSyncRunRepository{db: db}
}

// Save inserts the run or overwrites the stored copy with the same ID
func (r *GormSyncRunRepository) Save(ctx context.Context, run *catalogsync.SyncRun) error {
	model := SyncRunModelFromEntity(run)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(model).Error
	if err != nil {
		return fmt.Errorf("failed to save sync run %s: %w", run.ID, err)
	}
	return nil
}

// FindByID retrieves a run by its ID
func (r *GormSyncRunRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalogsync.SyncRun, error) {
	var model SyncRunModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, catalogsync.ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to find sync run %s: %w", id, err)
	}
	return model.ToEntity(), nil
}

// ListRecent returns up to limit runs, newest first
func (r *GormSyncRunRepository) ListRecent(ctx context.Context, limit int) ([]*catalogsync.SyncRun, error) {
	var models []SyncRunModel
	err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Order("id").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}

	runs := make([]*catalogsync.SyncRun, len(models))
	for i := range models {
		runs[i] = models[i].ToEntity()
	}
	return runs, nil
}
