package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prostor/erpsync/internal/domain/catalogsync"
	"github.com/prostor/erpsync/internal/infrastructure/persistence"
)

func TestSyncRunRepository_Integration(t *testing.T) {
	testDB := NewSharedTestDB(t)
	testDB.Truncate("sync_runs")
	repo := persistence.NewGormSyncRunRepository(testDB.DB)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 3, 30, 0, 0, time.UTC)

	t.Run("Save and FindByID", func(t *testing.T) {
		run, err := catalogsync.NewSyncRun(catalogsync.RunKindDaily, base)
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, run))

		found, err := repo.FindByID(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, catalogsync.RunStatusRunning, found.Status)
		assert.Nil(t, found.FinishedAt)
		assert.True(t, base.Equal(found.StartedAt))
	})

	t.Run("Save overwrites a finished run", func(t *testing.T) {
		run, err := catalogsync.NewSyncRun(catalogsync.RunKindDaily, base.Add(time.Minute))
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, run))

		run.PriceUpdates = 12
		run.StatusUpdates = 3
		run.AddOperation(catalogsync.BulkOperation{ID: "gid://shopify/BulkOperation/1", Status: "CREATED"})
		run.AddOperation(catalogsync.BulkOperation{ID: "gid://shopify/BulkOperation/2", Status: "CREATED"})
		require.NoError(t, run.Succeed(base.Add(3*time.Minute)))
		require.NoError(t, repo.Save(ctx, run))

		found, err := repo.FindByID(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, catalogsync.RunStatusSucceeded, found.Status)
		assert.Equal(t, 12, found.PriceUpdates)
		assert.Equal(t, 3, found.StatusUpdates)
		assert.Equal(t, run.Operations, found.Operations)
		require.NotNil(t, found.FinishedAt)
		assert.Equal(t, 2*time.Minute, found.Duration())
	})

	t.Run("failed run keeps its error", func(t *testing.T) {
		run, err := catalogsync.NewSyncRun(catalogsync.RunKindCosts, base.Add(2*time.Minute))
		require.NoError(t, err)
		run.UnmatchedBarcodes = 4
		require.NoError(t, run.Fail(errors.New("fetch erp costs: status 502"), base.Add(150*time.Second)))
		require.NoError(t, repo.Save(ctx, run))

		found, err := repo.FindByID(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, catalogsync.RunStatusFailed, found.Status)
		assert.Equal(t, "fetch erp costs: status 502", found.Error)
		assert.Equal(t, 4, found.UnmatchedBarcodes)
	})

	t.Run("FindByID missing", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, catalogsync.ErrRunNotFound)
	})

	t.Run("ListRecent newest first", func(t *testing.T) {
		runs, err := repo.ListRecent(ctx, 2)
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, catalogsync.RunKindCosts, runs[0].Kind)
		assert.True(t, runs[0].StartedAt.After(runs[1].StartedAt))

		all, err := repo.ListRecent(ctx, 100)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})
}

func TestSyncRunMigration_RejectsUnknownKind(t *testing.T) {
	testDB := NewSharedTestDB(t)

	err := testDB.DB.Exec(
		`INSERT INTO sync_runs (id, kind, status, started_at) VALUES (?, 'weekly', 'running', now())`,
		uuid.New(),
	).Error

	require.Error(t, err)
	assert.Contains(t, err.Error(), "chk_sync_runs_kind")
}
