package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/prostor/erpsync/internal/domain/catalogsync"
)

func setupSyncRunTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&SyncRunModel{})
	require.NoError(t, err)

	return db
}

func newTestRun(t *testing.T, kind catalogsync.RunKind, startedAt time.Time) *catalogsync.SyncRun {
	run, err := catalogsync.NewSyncRun(kind, startedAt)
	require.NoError(t, err)
	return run
}

func TestGormSyncRunRepository_Save(t *testing.T) {
	repo := NewGormSyncRunRepository(setupSyncRunTestDB(t))
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC)

	t.Run("saves a running run", func(t *testing.T) {
		run := newTestRun(t, catalogsync.RunKindDaily, started)

		require.NoError(t, repo.Save(ctx, run))

		found, err := repo.FindByID(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, run.ID, found.ID)
		assert.Equal(t, catalogsync.RunKindDaily, found.Kind)
		assert.Equal(t, catalogsync.RunStatusRunning, found.Status)
		assert.Nil(t, found.FinishedAt)
		assert.True(t, started.Equal(found.StartedAt))
	})

	t.Run("second save overwrites the first", func(t *testing.T) {
		run := newTestRun(t, catalogsync.RunKindDaily, started)
		require.NoError(t, repo.Save(ctx, run))

		run.PriceUpdates = 3
		run.StatusUpdates = 1
		run.AddOperation(catalogsync.BulkOperation{ID: "gid://shopify/BulkOperation/1", Status: "CREATED"})
		run.AddOperation(catalogsync.BulkOperation{ID: "gid://shopify/BulkOperation/2", Status: "CREATED"})
		require.NoError(t, run.Succeed(started.Add(90*time.Second)))
		require.NoError(t, repo.Save(ctx, run))

		found, err := repo.FindByID(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, catalogsync.RunStatusSucceeded, found.Status)
		assert.Equal(t, 3, found.PriceUpdates)
		assert.Equal(t, 1, found.StatusUpdates)
		require.Len(t, found.Operations, 2)
		assert.Equal(t, "gid://shopify/BulkOperation/2", found.Operations[1].ID)
		require.NotNil(t, found.FinishedAt)
		assert.Equal(t, 90*time.Second, found.Duration())
	})

	t.Run("failed run keeps its error", func(t *testing.T) {
		run := newTestRun(t, catalogsync.RunKindCosts, started)
		run.UnmatchedBarcodes = 7
		require.NoError(t, run.Fail(errors.New("erp: feed request failed"), started.Add(time.Second)))
		require.NoError(t, repo.Save(ctx, run))

		found, err := repo.FindByID(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, catalogsync.RunStatusFailed, found.Status)
		assert.Equal(t, "erp: feed request failed", found.Error)
		assert.Equal(t, 7, found.UnmatchedBarcodes)
	})
}

func TestGormSyncRunRepository_FindByID(t *testing.T) {
	repo := NewGormSyncRunRepository(setupSyncRunTestDB(t))

	_, err := repo.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, catalogsync.ErrRunNotFound)
}

func TestGormSyncRunRepository_ListRecent(t *testing.T) {
	repo := NewGormSyncRunRepository(setupSyncRunTestDB(t))
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		kind := catalogsync.RunKindDaily
		if i%2 == 1 {
			kind = catalogsync.RunKindCosts
		}
		run := newTestRun(t, kind, base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, repo.Save(ctx, run))
		ids = append(ids, run.ID)
	}

	t.Run("newest first", func(t *testing.T) {
		runs, err := repo.ListRecent(ctx, 10)
		require.NoError(t, err)
		require.Len(t, runs, 5)
		assert.Equal(t, ids[4], runs[0].ID)
		assert.Equal(t, ids[0], runs[4].ID)
	})

	t.Run("respects limit", func(t *testing.T) {
		runs, err := repo.ListRecent(ctx, 2)
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, ids[4], runs[0].ID)
		assert.Equal(t, ids[3], runs[1].ID)
	})

	t.Run("empty table", func(t *testing.T) {
		empty := NewGormSyncRunRepository(setupSyncRunTestDB(t))
		runs, err := empty.ListRecent(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, runs)
	})
}
