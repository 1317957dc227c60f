package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/prostor/erpsync/internal/bootstrap"
	"github.com/prostor/erpsync/internal/infrastructure/config"
	"github.com/prostor/erpsync/internal/infrastructure/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := bootstrap.NewLogger(&cfg.Log)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting ERP sync service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", bootstrap.Version),
		zap.String("shopify_api_version", cfg.Shopify.APIVersion),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize application", zap.Error(err))
	}
	log = app.Logger

	engine, stopEngine, err := app.Engine()
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	trigger, err := app.Scheduler()
	if err != nil {
		log.Fatal("Failed to create daily trigger", zap.Error(err))
	}
	if trigger != nil {
		if err := trigger.Start(ctx); err != nil {
			log.Fatal("Failed to start daily trigger", zap.Error(err))
		}
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	exitCode := 0
	select {
	case <-ctx.Done():
		log.Info("Shutting down server...")
	case err := <-serveErr:
		log.Error("Server failed", zap.Error(err))
		exitCode = 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if trigger != nil {
		if err := trigger.Stop(shutdownCtx); err != nil {
			log.Warn("Daily trigger did not stop cleanly", zap.Error(err))
		}
	}
	stopEngine()
	if err := app.Close(shutdownCtx); err != nil {
		log.Warn("Failed to release resources", zap.Error(err))
	}

	log.Info("Server exited", zap.Int("exit_code", exitCode))
	if exitCode != 0 {
		_ = logger.Sync(log)
		os.Exit(exitCode)
	}
}
