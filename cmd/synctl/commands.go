package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/prostor/erpsync/internal/bootstrap"
	"github.com/prostor/erpsync/internal/infrastructure/config"
	"github.com/prostor/erpsync/internal/infrastructure/logger"
	"github.com/prostor/erpsync/internal/interfaces/http/dto"
	"github.com/prostor/erpsync/internal/interfaces/http/handler"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 100
)

// serviceLoader opens the sync service; the returned func releases it
type serviceLoader func(ctx context.Context) (handler.SyncService, func(), error)

func loadService(ctx context.Context) (handler.SyncService, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log, err := bootstrap.NewLogger(&cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		_ = logger.Sync(log)
		return nil, nil, err
	}
	release := func() {
		if err := app.Close(context.WithoutCancel(ctx)); err != nil {
			app.Logger.Warn("Failed to release resources", zap.Error(err))
		}
		_ = logger.Sync(app.Logger)
	}
	return app.Service, release, nil
}

func newRootCmd(load serviceLoader) *cobra.Command {
	root := &cobra.Command{
		Use:           "synctl",
		Short:         "Run ERP to Shopify sync workflows and inspect their history",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newDailyCmd(load),
		newCostsCmd(load),
		newRunsCmd(load),
		newRunCmd(load),
	)
	return root
}

func withService(load serviceLoader, fn func(cmd *cobra.Command, svc handler.SyncService) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		svc, release, err := load(cmd.Context())
		if err != nil {
			return err
		}
		defer release()
		return fn(cmd, svc)
	}
}

func newDailyCmd(load serviceLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "daily",
		Short: "Reconcile prices and product statuses and submit bulk updates",
		Args:  cobra.NoArgs,
		RunE: withService(load, func(cmd *cobra.Command, svc handler.SyncService) error {
			result, err := svc.RunDailySync(cmd.Context())
			if err != nil {
				return fmt.Errorf("daily sync: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), dto.NewDailySyncResponse(result))
		}),
	}
}

func newCostsCmd(load serviceLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "costs",
		Short: "Reconcile unit costs and submit a bulk update",
		Args:  cobra.NoArgs,
		RunE: withService(load, func(cmd *cobra.Command, svc handler.SyncService) error {
			result, err := svc.RunCostUpdate(cmd.Context())
			if err != nil {
				return fmt.Errorf("cost update: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), dto.NewCostUpdateResponse(result))
		}),
	}
}

func newRunsCmd(load serviceLoader) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent sync runs, newest first",
		Args:  cobra.NoArgs,
		PreRunE: func(*cobra.Command, []string) error {
			if limit < 1 || limit > maxRunsLimit {
				return fmt.Errorf("--limit must be between 1 and %d", maxRunsLimit)
			}
			return nil
		},
		RunE: withService(load, func(cmd *cobra.Command, svc handler.SyncService) error {
			runs, err := svc.ListRuns(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), dto.NewSyncRunListResponse(runs))
		}),
	}
	cmd.Flags().IntVar(&limit, "limit", defaultRunsLimit, "maximum number of runs to show")
	return cmd
}

func newRunCmd(load serviceLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "run <id>",
		Short: "Show one sync run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return errors.New("run id must be a UUID")
			}
			return withService(load, func(cmd *cobra.Command, svc handler.SyncService) error {
				run, err := svc.GetRun(cmd.Context(), id)
				if err != nil {
					return fmt.Errorf("get run: %w", err)
				}
				return printJSON(cmd.OutOrStdout(), dto.NewSyncRunResponse(run))
			})(cmd, args)
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
