package catalogsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/prostor/erpsync/internal/domain/catalogsync"
	"github.com/prostor/erpsync/internal/infrastructure/logger"
	"github.com/prostor/erpsync/internal/infrastructure/telemetry"
)

// Lock keys and defaults
const (
	DailyLockKey    = "erpsync:lock:daily"
	CostsLockKey    = "erpsync:lock:costs"
	DefaultLockTTL  = 30 * time.Minute
	maxLoggedMisses = 20
)

// Metrics receives run-level measurements
type Metrics interface {
	RecordRun(ctx context.Context, kind, status string, d time.Duration)
	RecordChanges(ctx context.Context, kind string, n int)
	RecordUnmatched(ctx context.Context, n int)
	RecordDiscountsAboveBase(ctx context.Context, n int)
}

// DailySyncResult summarizes a price and availability run
type DailySyncResult struct {
	RunID         uuid.UUID
	PriceUpdates  int
	StatusUpdates int
	Operations    []catalogsync.BulkOperation
}

// CostUpdateResult summarizes a cost run. Operation is nil when nothing changed.
type CostUpdateResult struct {
	RunID            uuid.UUID
	Operation        *catalogsync.BulkOperation
	UpdatesCount     int
	NotFoundBarcodes []catalogsync.Barcode
}

// Service orchestrates fetch, reconcile and submit for both sync workflows
type Service struct {
	source     catalogsync.SourceReader
	catalog    catalogsync.CatalogReader
	bulk       catalogsync.BulkSubmitter
	runs       catalogsync.RunRepository
	lock       catalogsync.RunLock
	metrics    Metrics
	logger     *zap.Logger
	now        func() time.Time
	runTimeout time.Duration
	lockTTL    time.Duration
}

// Option configures a Service
type Option func(*Service)

// WithRunRepository persists every run
func WithRunRepository(repo catalogsync.RunRepository) Option {
	return func(s *Service) {
		s.runs = repo
	}
}

// WithRunLock prevents overlapping runs of the same kind
func WithRunLock(lock catalogsync.RunLock) Option {
	return func(s *Service) {
		s.lock = lock
	}
}

// WithMetrics records run metrics
func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock replaces the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithRunTimeout bounds each run; zero leaves runs unbounded
func WithRunTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.runTimeout = d
	}
}

// WithLockTTL sets how long a run lock survives a crashed holder
func WithLockTTL(d time.Duration) Option {
	return func(s *Service) {
		s.lockTTL = d
	}
}

// NewService creates a Service
func NewService(
	source catalogsync.SourceReader,
	catalog catalogsync.CatalogReader,
	bulk catalogsync.BulkSubmitter,
	opts ...Option,
) *Service {
	s := &Service{
		source:  source,
		catalog: catalog,
		bulk:    bulk,
		logger:  zap.NewNop(),
		now:     time.Now,
		lockTTL: DefaultLockTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ---------------------------------------------------------------------------
// Daily sync
// ---------------------------------------------------------------------------

// RunDailySync brings storefront prices and product statuses in line with
// the ERP. Price and status submissions run concurrently; a failure in one
// does not cancel the other. The returned result is non-nil whenever the
// reconciliation step was reached, even if a submission failed.
func (s *Service) RunDailySync(ctx context.Context) (*DailySyncResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "catalog_sync.daily",
		telemetry.WithAttribute(telemetry.SpanAttrRunKind, catalogsync.RunKindDaily.String()))
	defer span.End()

	var result *DailySyncResult
	err := s.execute(ctx, catalogsync.RunKindDaily, DailyLockKey, func(ctx context.Context, run *catalogsync.SyncRun) error {
		var err error
		result, err = s.runDaily(ctx, run)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
	}
	return result, err
}

func (s *Service) runDaily(ctx context.Context, run *catalogsync.SyncRun) (*DailySyncResult, error) {
	log := logger.Enrich(ctx, s.logger)

	var (
		records  catalogsync.SourceRecords
		products []catalogsync.RemoteProduct
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if records, err = s.source.FetchProductData(gctx); err != nil {
			return fmt.Errorf("fetch erp product data: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if products, err = s.catalog.FetchProducts(gctx); err != nil {
			return fmt.Errorf("fetch storefront products: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	changes := catalogsync.ReconcileCatalog(records, products)
	run.PriceUpdates = len(changes.Prices)
	run.StatusUpdates = len(changes.Statuses)
	result := &DailySyncResult{
		RunID:         run.ID,
		PriceUpdates:  len(changes.Prices),
		StatusUpdates: len(changes.Statuses),
		Operations:    []catalogsync.BulkOperation{},
	}
	log.Info("Reconciled catalog",
		zap.Int("erp_barcodes", len(records)),
		zap.Int("products", len(products)),
		zap.Int("price_updates", result.PriceUpdates),
		zap.Int("status_updates", result.StatusUpdates),
	)

	if n := len(changes.DiscountsAboveBase); n > 0 {
		sample := changes.DiscountsAboveBase
		if len(sample) > maxLoggedMisses {
			sample = sample[:maxLoggedMisses]
		}
		log.Warn("ERP discount price above base price, applying as is",
			zap.Int("count", n),
			zap.Stringers("sample", sample),
		)
		if s.metrics != nil {
			s.metrics.RecordDiscountsAboveBase(ctx, n)
		}
	}

	if changes.IsEmpty() {
		log.Info("Catalog already in sync")
		return result, nil
	}

	var (
		g2                  errgroup.Group
		priceOp, statusOp   *catalogsync.BulkOperation
		priceErr, statusErr error
	)
	if len(changes.Prices) > 0 {
		g2.Go(func() error {
			priceOp, priceErr = s.bulk.SubmitPriceChanges(ctx, changes.Prices)
			if priceErr != nil {
				priceErr = fmt.Errorf("submit price changes: %w", priceErr)
			}
			return priceErr
		})
	}
	if len(changes.Statuses) > 0 {
		g2.Go(func() error {
			statusOp, statusErr = s.bulk.SubmitStatusChanges(ctx, changes.Statuses)
			if statusErr != nil {
				statusErr = fmt.Errorf("submit status changes: %w", statusErr)
			}
			return statusErr
		})
	}
	_ = g2.Wait()

	if priceOp != nil {
		s.recordOperation(ctx, run, result, catalogsync.ChangeKindPrice, *priceOp, len(changes.Prices))
	}
	if statusOp != nil {
		s.recordOperation(ctx, run, result, catalogsync.ChangeKindStatus, *statusOp, len(changes.Statuses))
	}
	return result, errors.Join(priceErr, statusErr)
}

func (s *Service) recordOperation(ctx context.Context, run *catalogsync.SyncRun, result *DailySyncResult, kind catalogsync.ChangeKind, op catalogsync.BulkOperation, n int) {
	run.AddOperation(op)
	result.Operations = append(result.Operations, op)
	if s.metrics != nil {
		s.metrics.RecordChanges(ctx, kind.String(), n)
	}
}

// ---------------------------------------------------------------------------
// Cost update
// ---------------------------------------------------------------------------

// RunCostUpdate copies ERP unit costs onto storefront inventory items.
// ERP barcodes without a storefront variant are reported in
// NotFoundBarcodes and do not fail the run.
func (s *Service) RunCostUpdate(ctx context.Context) (*CostUpdateResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "catalog_sync.costs",
		telemetry.WithAttribute(telemetry.SpanAttrRunKind, catalogsync.RunKindCosts.String()))
	defer span.End()

	var result *CostUpdateResult
	err := s.execute(ctx, catalogsync.RunKindCosts, CostsLockKey, func(ctx context.Context, run *catalogsync.SyncRun) error {
		var err error
		result, err = s.runCosts(ctx, run)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
	}
	return result, err
}

func (s *Service) runCosts(ctx context.Context, run *catalogsync.SyncRun) (*CostUpdateResult, error) {
	log := logger.Enrich(ctx, s.logger)

	var (
		costs map[catalogsync.Barcode]decimal.Decimal
		index catalogsync.CostIndex
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if costs, err = s.source.FetchCosts(gctx); err != nil {
			return fmt.Errorf("fetch erp costs: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if index, err = s.catalog.FetchVariantCosts(gctx); err != nil {
			return fmt.Errorf("fetch storefront variant costs: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	changes := catalogsync.ReconcileCosts(costs, index)
	run.CostUpdates = len(changes.Changes)
	run.UnmatchedBarcodes = len(changes.Unmatched)
	result := &CostUpdateResult{
		RunID:            run.ID,
		UpdatesCount:     len(changes.Changes),
		NotFoundBarcodes: changes.Unmatched,
	}
	if result.NotFoundBarcodes == nil {
		result.NotFoundBarcodes = []catalogsync.Barcode{}
	}

	if n := len(changes.Unmatched); n > 0 {
		sample := changes.Unmatched
		if len(sample) > maxLoggedMisses {
			sample = sample[:maxLoggedMisses]
		}
		log.Warn("ERP barcodes not found in storefront",
			zap.Int("count", n),
			zap.Stringers("sample", sample),
		)
		if s.metrics != nil {
			s.metrics.RecordUnmatched(ctx, n)
		}
	}
	log.Info("Reconciled costs",
		zap.Int("erp_barcodes", len(costs)),
		zap.Int("storefront_barcodes", len(index)),
		zap.Int("cost_updates", result.UpdatesCount),
	)

	if len(changes.Changes) == 0 {
		return result, nil
	}

	op, err := s.bulk.SubmitCostChanges(ctx, changes.Changes)
	if err != nil {
		return result, fmt.Errorf("submit cost changes: %w", err)
	}
	run.AddOperation(*op)
	result.Operation = op
	if s.metrics != nil {
		s.metrics.RecordChanges(ctx, catalogsync.ChangeKindCost.String(), len(changes.Changes))
	}
	return result, nil
}

// ---------------------------------------------------------------------------
// Run lifecycle
// ---------------------------------------------------------------------------

func (s *Service) execute(ctx context.Context, kind catalogsync.RunKind, lockKey string, body func(context.Context, *catalogsync.SyncRun) error) error {
	if s.lock != nil {
		token, err := s.lock.Acquire(ctx, lockKey, s.lockTTL)
		if err != nil {
			return err
		}
		defer func() {
			// a cancelled run still frees the lock
			if err := s.lock.Release(context.WithoutCancel(ctx), lockKey, token); err != nil {
				s.logger.Warn("Failed to release run lock", zap.String("key", lockKey), zap.Error(err))
			}
		}()
	}

	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	run, err := catalogsync.NewSyncRun(kind, s.now())
	if err != nil {
		return err
	}
	ctx = logger.WithRunID(ctx, run.ID.String())
	telemetry.SetAttributes(trace.SpanFromContext(ctx), telemetry.SpanAttrRunID, run.ID.String())
	s.logger.Info("Sync run started", zap.String("run_id", run.ID.String()), zap.String("kind", kind.String()))
	s.saveRun(ctx, run)

	runErr := body(ctx, run)
	if runErr != nil {
		_ = run.Fail(runErr, s.now())
		s.logger.Error("Sync run failed",
			zap.String("run_id", run.ID.String()),
			zap.String("kind", kind.String()),
			zap.Error(runErr),
		)
	} else {
		_ = run.Succeed(s.now())
		s.logger.Info("Sync run finished",
			zap.String("run_id", run.ID.String()),
			zap.String("kind", kind.String()),
			zap.Duration("duration", run.Duration()),
		)
	}
	s.saveRun(context.WithoutCancel(ctx), run)
	if s.metrics != nil {
		s.metrics.RecordRun(ctx, kind.String(), string(run.Status), run.Duration())
	}
	return runErr
}

// saveRun persists run state; history is advisory so failures are only logged
func (s *Service) saveRun(ctx context.Context, run *catalogsync.SyncRun) {
	if s.runs == nil {
		return
	}
	if err := s.runs.Save(ctx, run); err != nil {
		s.logger.Warn("Failed to save sync run", zap.String("run_id", run.ID.String()), zap.Error(err))
	}
}

// ---------------------------------------------------------------------------
// Run history
// ---------------------------------------------------------------------------

// ListRuns returns the most recent runs, newest first
func (s *Service) ListRuns(ctx context.Context, limit int) ([]*catalogsync.SyncRun, error) {
	if s.runs == nil {
		return []*catalogsync.SyncRun{}, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.runs.ListRecent(ctx, limit)
}

// GetRun returns one run by id
func (s *Service) GetRun(ctx context.Context, id uuid.UUID) (*catalogsync.SyncRun, error) {
	if s.runs == nil {
		return nil, catalogsync.ErrRunNotFound
	}
	return s.runs.FindByID(ctx, id)
}
