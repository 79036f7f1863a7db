package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"orcamento/internal/amqp"
	"orcamento/internal/backend"
	"orcamento/internal/cli"
	applog "orcamento/internal/log"
	"orcamento/internal/notify"
	"orcamento/internal/services"
	"orcamento/internal/sheets"
	gsheet "orcamento/internal/sheets/google"
	"orcamento/internal/worker"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentWorker)
	logger.Info("Starting orcamento-worker")
	settings := cli.LoadSettings(logger, cfg.SettingsFile)

	// The worker reads the months the server archived, so both must share
	// the database.
	if backend.BackendType(cfg.DataBackend) != backend.SQLiteBackend {
		logger.Error("orcamento-worker needs DATA_BACKEND=sqlite", "backend", cfg.DataBackend)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	store, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to open store", applog.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer store.Close()

	var (
		writer  sheets.HistoryWriter
		deleter sheets.HistoryDeleter
	)
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.NewFromEnv(ctx)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
			os.Exit(1)
		}
		writer, deleter = client, client
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	var notifier worker.Notifier
	mailer, err := notify.NewMailer(notify.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		To:       cfg.ReportEmailTo,
		Currency: settings.Currency,
	})
	switch {
	case errors.Is(err, notify.ErrNotConfigured):
		logger.Info("Email notifications disabled - no SMTP_HOST provided")
	case err != nil:
		logger.Error("Failed to initialize mailer", applog.FieldError, err)
		os.Exit(1)
	default:
		notifier = mailer
		logger.Info("Email notifications enabled", "recipients", len(cfg.ReportEmailTo))
	}

	archiver := worker.NewArchiveWorker(store.Store, cfg.ArchiveDir, writer, deleter, notifier, cfg.ExportBatchSize)

	// Months closed while the worker was down.
	logger.Info("Performing startup export check...")
	if err := archiver.StartupExportCheck(ctx); err != nil {
		logger.Error("Failed startup export check", applog.FieldError, err)
	}

	processor := services.NewExportProcessor(store.Store, archiver, services.ExportProcessorConfig{
		PollInterval: cfg.ArchiveBackfillInterval,
		BatchSize:    cfg.ExportBatchSize,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := processor.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return processor.Stop(stopCtx)
	})

	// SIGHUP gives months skipped after repeated failures another round.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-hup:
				failed := processor.Failed()
				logger.Info("Retrying skipped exports", "month_ids", failed)
				processor.RetryFailed()
			}
		}
	})

	if cfg.AMQPURL != "" {
		consumer, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		defer consumer.Close()

		g.Go(func() error {
			err := consumer.ConsumeMonthEvents(gctx, archiver.HandleMonthEvent)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		logger.Info("Skipping AMQP message consumption - relying on periodic backfill")
	}

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", applog.FieldError, err)
		_ = store.Close()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
