package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	catalogsync "github.com/prostor/erpsync/internal/application/catalogsync"
	domain "github.com/prostor/erpsync/internal/domain/catalogsync"
	"github.com/prostor/erpsync/internal/interfaces/http/dto"
	"github.com/prostor/erpsync/internal/interfaces/http/handler"
)

type MockSyncService struct {
	mock.Mock
}

func (m *MockSyncService) RunDailySync(ctx context.Context) (*catalogsync.DailySyncResult, error) {
	args := m.Called(ctx)
	res, _ := args.Get(0).(*catalogsync.DailySyncResult)
	return res, args.Error(1)
}

func (m *MockSyncService) RunCostUpdate(ctx context.Context) (*catalogsync.CostUpdateResult, error) {
	args := m.Called(ctx)
	res, _ := args.Get(0).(*catalogsync.CostUpdateResult)
	return res, args.Error(1)
}

func (m *MockSyncService) ListRuns(ctx context.Context, limit int) ([]*domain.SyncRun, error) {
	args := m.Called(ctx, limit)
	runs, _ := args.Get(0).([]*domain.SyncRun)
	return runs, args.Error(1)
}

func (m *MockSyncService) GetRun(ctx context.Context, id uuid.UUID) (*domain.SyncRun, error) {
	args := m.Called(ctx, id)
	run, _ := args.Get(0).(*domain.SyncRun)
	return run, args.Error(1)
}

type harness struct {
	svc      *MockSyncService
	loads    int
	releases int
}

func (h *harness) load(context.Context) (handler.SyncService, func(), error) {
	h.loads++
	return h.svc, func() { h.releases++ }, nil
}

func execute(t *testing.T, load serviceLoader, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(load)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestDailyCommand(t *testing.T) {
	h := &harness{svc: new(MockSyncService)}
	runID := uuid.New()
	h.svc.On("RunDailySync", mock.Anything).Return(&catalogsync.DailySyncResult{
		RunID:         runID,
		PriceUpdates:  3,
		StatusUpdates: 1,
		Operations:    []domain.BulkOperation{{ID: "gid://shopify/BulkOperation/1", Status: "CREATED"}},
	}, nil)

	out, err := execute(t, h.load, "daily")
	require.NoError(t, err)

	var resp dto.DailySyncResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, dto.MessageDailySyncCompleted, resp.Message)
	assert.Equal(t, runID.String(), resp.RunID)
	assert.Equal(t, dto.UpdateCounts{Prices: 3, Statuses: 1}, resp.Updates)
	assert.Len(t, resp.Operations, 1)
	assert.Equal(t, 1, h.releases)
	h.svc.AssertExpectations(t)
}

func TestDailyCommand_Failure(t *testing.T) {
	h := &harness{svc: new(MockSyncService)}
	h.svc.On("RunDailySync", mock.Anything).Return(nil, domain.ErrSyncInProgress)

	_, err := execute(t, h.load, "daily")

	assert.ErrorIs(t, err, domain.ErrSyncInProgress)
	assert.Equal(t, 1, h.releases)
}

func TestCostsCommand(t *testing.T) {
	h := &harness{svc: new(MockSyncService)}
	h.svc.On("RunCostUpdate", mock.Anything).Return(&catalogsync.CostUpdateResult{
		RunID:            uuid.New(),
		NotFoundBarcodes: []domain.Barcode{"4601234567890"},
	}, nil)

	out, err := execute(t, h.load, "costs")
	require.NoError(t, err)

	var resp dto.CostUpdateResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, dto.MessageNoCostUpdates, resp.Message)
	assert.Nil(t, resp.Operation)
	assert.Equal(t, []string{"4601234567890"}, resp.NotFoundBarcodes)
}

func TestRunsCommand(t *testing.T) {
	h := &harness{svc: new(MockSyncService)}
	started := time.Date(2026, 3, 1, 3, 30, 0, 0, time.UTC)
	run, err := domain.NewSyncRun(domain.RunKindDaily, started)
	require.NoError(t, err)
	require.NoError(t, run.Succeed(started.Add(90*time.Second)))
	h.svc.On("ListRuns", mock.Anything, 5).Return([]*domain.SyncRun{run}, nil)

	out, err := execute(t, h.load, "runs", "--limit", "5")
	require.NoError(t, err)

	var resp dto.SyncRunListResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, run.ID.String(), resp.Runs[0].ID)
	assert.Equal(t, int64(90000), resp.Runs[0].DurationMs)
}

func TestRunsCommand_RejectsLimitBeforeLoading(t *testing.T) {
	for _, limit := range []string{"0", "101"} {
		t.Run(limit, func(t *testing.T) {
			h := &harness{svc: new(MockSyncService)}

			_, err := execute(t, h.load, "runs", "--limit", limit)

			require.Error(t, err)
			assert.Contains(t, err.Error(), "--limit")
			assert.Zero(t, h.loads)
		})
	}
}

func TestRunCommand(t *testing.T) {
	t.Run("invalid id", func(t *testing.T) {
		h := &harness{svc: new(MockSyncService)}

		_, err := execute(t, h.load, "run", "not-a-uuid")

		require.Error(t, err)
		assert.Zero(t, h.loads)
	})

	t.Run("not found", func(t *testing.T) {
		h := &harness{svc: new(MockSyncService)}
		id := uuid.New()
		h.svc.On("GetRun", mock.Anything, id).Return(nil, domain.ErrRunNotFound)

		_, err := execute(t, h.load, "run", id.String())

		assert.ErrorIs(t, err, domain.ErrRunNotFound)
	})
}

func TestLoaderError(t *testing.T) {
	loadErr := errors.New("config invalid")
	load := func(context.Context) (handler.SyncService, func(), error) {
		return nil, nil, loadErr
	}

	_, err := execute(t, load, "costs")

	assert.ErrorIs(t, err, loadErr)
}
