package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"orcamento/internal/cli"
	apphttp "orcamento/internal/http"
	applog "orcamento/internal/log"
	"orcamento/internal/scheduler"
	"orcamento/internal/services"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentApp)
	settings := cli.LoadSettings(logger, cfg.SettingsFile)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	manager, store, err := cli.OpenLedger(startCtx, logger, cfg, settings)
	cancelStart()
	if err != nil {
		logger.Error("Failed to open ledger", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	svc := services.NewLedgerService(manager, cli.ConnectPublisher(logger, cfg))
	sweeper := scheduler.NewOverdueSweepService(manager, cfg.OverdueSweepCron)

	opts := []apphttp.Option{
		apphttp.WithLogger(logger.WithComponent(applog.ComponentHTTP)),
		apphttp.WithOverdueSweeper(sweeper),
	}
	if store.Ready != nil {
		opts = append(opts, apphttp.WithReadinessCheck(store.Ready))
	}
	srv := apphttp.NewServer(":"+cfg.Port, svc, opts...)
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) error {
		return errors.Join(
			srv.Shutdown(ctx),
			svc.Close(),
			store.Close(),
		)
	})

	if err := sweeper.Start(ctx); err != nil {
		logger.Error("Failed to start overdue sweep", applog.FieldError, err)
		os.Exit(1)
	}

	logger.Info("Starting orcamento server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"period", manager.Period().String())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
