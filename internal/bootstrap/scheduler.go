package bootstrap

import (
	"context"

	"go.uber.org/zap"

	"github.com/prostor/erpsync/internal/infrastructure/logger"
	"github.com/prostor/erpsync/internal/infrastructure/scheduler"
)

// Scheduler returns the in-process daily trigger, or nil when disabled
func (a *App) Scheduler() (*scheduler.DailyTrigger, error) {
	if !a.Config.Scheduler.Enabled {
		return nil, nil
	}
	return scheduler.NewDailyTrigger(SchedulerConfig(a.Config), a.dailyJob, a.Logger)
}

func (a *App) dailyJob(ctx context.Context) error {
	result, err := a.Service.RunDailySync(ctx)
	if err != nil {
		return err
	}
	logger.L(ctx).Info("Scheduled daily sync submitted",
		zap.String("run_id", result.RunID.String()),
		zap.Int("price_updates", result.PriceUpdates),
		zap.Int("status_updates", result.StatusUpdates),
		zap.Int("operations", len(result.Operations)),
	)
	return nil
}
