package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/prostor/erpsync/internal/domain/catalogsync"
)

// JobFunc is the work a trigger runs
type JobFunc func(ctx context.Context) error

// DailyTriggerConfig holds configuration for the daily trigger
type DailyTriggerConfig struct {
	// Hour and Minute are the wall-clock run time in Location (24h format)
	Hour     int
	Minute   int
	Location *time.Location
	// Timeout bounds a single run (0 = no bound)
	Timeout time.Duration
}

// DailyTrigger runs a job once a day at a fixed wall-clock time
type DailyTrigger struct {
	config DailyTriggerConfig
	job    JobFunc
	logger *zap.Logger
	now    func() time.Time
	after  func(time.Duration) <-chan time.Time

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// DailyTriggerOption configures a DailyTrigger
type DailyTriggerOption func(*DailyTrigger)

// WithClock replaces the time source and timer, for tests
func WithClock(now func() time.Time, after func(time.Duration) <-chan time.Time) DailyTriggerOption {
	return func(t *DailyTrigger) {
		t.now = now
		t.after = after
	}
}

// NewDailyTrigger creates a new daily trigger
func NewDailyTrigger(config DailyTriggerConfig, job JobFunc, logger *zap.Logger, opts ...DailyTriggerOption) (*DailyTrigger, error) {
	if config.Hour < 0 || config.Hour > 23 || config.Minute < 0 || config.Minute > 59 {
		return nil, fmt.Errorf("%w: run time %02d:%02d", ErrInvalidConfig, config.Hour, config.Minute)
	}
	if job == nil {
		return nil, fmt.Errorf("%w: job is required", ErrInvalidConfig)
	}
	if config.Location == nil {
		config.Location = time.UTC
	}

	t := &DailyTrigger{
		config: config,
		job:    job,
		logger: logger,
		now:    time.Now,
		after:  time.After,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// NextRun returns the first scheduled run strictly after now
func (t *DailyTrigger) NextRun(now time.Time) time.Time {
	local := now.In(t.config.Location)
	next := time.Date(local.Year(), local.Month(), local.Day(), t.config.Hour, t.config.Minute, 0, 0, t.config.Location)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, t.config.Hour, t.config.Minute, 0, 0, t.config.Location)
	}
	return next
}

// Start starts the trigger loop
func (t *DailyTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.isRunning {
		return nil
	}
	t.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Daily trigger started",
		zap.Int("hour", t.config.Hour),
		zap.Int("minute", t.config.Minute),
		zap.String("location", t.config.Location.String()),
		zap.Time("next_run", t.NextRun(t.now())),
	)
	return nil
}

// Stop stops the trigger and waits for an in-flight run to return
func (t *DailyTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	cancel := t.cancel
	t.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Daily trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *DailyTrigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	for {
		now := t.now()
		wait := t.NextRun(now).Sub(now)

		select {
		case <-ctx.Done():
			return
		case <-t.after(wait):
			t.trigger(ctx)
		}
	}
}

func (t *DailyTrigger) trigger(ctx context.Context) {
	if t.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.Timeout)
		defer cancel()
	}

	start := t.now()
	t.logger.Info("Scheduled sync triggered")
	err := t.job(ctx)
	elapsed := t.now().Sub(start)

	switch {
	case err == nil:
		t.logger.Info("Scheduled sync completed", zap.Duration("elapsed", elapsed))
	case errors.Is(err, catalogsync.ErrSyncInProgress):
		t.logger.Warn("Scheduled sync skipped, another run is active")
	default:
		t.logger.Error("Scheduled sync failed", zap.Duration("elapsed", elapsed), zap.Error(err))
	}
}
