// Package cli holds the start-up steps shared by cmd/orcamento,
// cmd/orcamento-worker and cmd/orcamentoctl.
package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"orcamento/internal/amqp"
	"orcamento/internal/backend"
	"orcamento/internal/config"
	"orcamento/internal/core"
	"orcamento/internal/ledger"
	applog "orcamento/internal/log"
	"orcamento/internal/services"
)

// LoadEnvFile loads the .env file (or the given files) for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile(files ...string) {
	_ = godotenv.Load(files...)
}

// SetupLogger installs the process logger at the configured level. An
// unparsable level falls back to info.
func SetupLogger(component string, cfg *config.Config) *applog.Logger {
	level, err := cfg.SlogLevel()
	logger := applog.Setup(component, level)
	if err != nil {
		logger.Warn("Using info log level", applog.FieldError, err)
	}
	return logger
}

// LoadAndValidateConfig loads .env and the environment, sets up logging and
// validates the result. Exits the process on validation failure.
func LoadAndValidateConfig(component string) (*config.Config, *applog.Logger) {
	LoadEnvFile()
	cfg := config.Load()
	logger := SetupLogger(component, cfg)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	return cfg, logger
}

// LoadSettings reads the settings file. Exits the process when it is malformed.
func LoadSettings(logger *applog.Logger, path string) core.Settings {
	settings, err := config.LoadSettings(path)
	if err != nil {
		logger.Error("Failed to load settings", applog.FieldError, err, "path", path)
		os.Exit(1)
	}
	return settings
}

// OpenLedger creates the configured store and loads the ledger from it.
// The caller owns the returned backend and must Close it.
func OpenLedger(ctx context.Context, logger *applog.Logger, cfg *config.Config, settings core.Settings) (*ledger.Manager, *backend.BackendResult, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, nil, err
	}
	m, err := backend.NewManager(ctx, res.Store, settings, cfg.SeedDemoData)
	if err != nil {
		return nil, nil, errors.Join(err, res.Close())
	}
	return m, res, nil
}

// ConnectPublisher returns the AMQP month event publisher, or nil when AMQP
// is disabled or unreachable. Month events are then skipped and the worker's
// backfill picks the months up later.
func ConnectPublisher(logger *applog.Logger, cfg *config.Config) services.MonthEventPublisher {
	if cfg.AMQPURL == "" {
		logger.Info("AMQP disabled - no AMQP_URL provided")
		return nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, continuing without month events", applog.FieldError, err)
		return nil
	}
	logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// The returned context is cancelled on SIGINT or SIGTERM; cleanup then runs
// with timeout and the channel closes once it returned.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(ctx context.Context) error) (context.Context, <-chan struct{}) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		defer close(done)
		<-ctx.Done()
		stop()
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if cleanup != nil {
			if err := cleanup(shutdownCtx); err != nil {
				logger.Error("Shutdown cleanup failed", applog.FieldError, err)
			}
		}
		if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
			logger.Warn("Shutdown timeout reached")
			return
		}
		logger.Info("Shutdown complete")
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup finished.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
