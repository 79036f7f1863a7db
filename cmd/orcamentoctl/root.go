package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"orcamento/internal/backend"
	"orcamento/internal/cli"
	"orcamento/internal/config"
	"orcamento/internal/core"
	applog "orcamento/internal/log"
	"orcamento/internal/services"
)

// app is the state shared by every command: flags plus the ledger opened
// before the command runs.
type app struct {
	cfg          config.Config
	dbPath       string
	settingsPath string
	verbose      bool

	ledger *services.LedgerService
	store  *backend.BackendResult
}

func newRootCmd(cfg config.Config) *cobra.Command {
	a := &app{cfg: cfg}

	root := &cobra.Command{
		Use:               "orcamentoctl",
		Short:             "Month ledger administration",
		Long:              "Inspect and maintain the orcamento ledger stored in SQLite: summaries, month closing, history and exports.",
		SilenceUsage:      true,
		PersistentPreRunE: a.open,
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.close()
		},
	}

	root.PersistentFlags().StringVar(&a.dbPath, "db", cfg.SQLiteDBPath, "SQLite database path")
	root.PersistentFlags().StringVar(&a.settingsPath, "settings", cfg.SettingsFile, "Settings TOML file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Log at info level")

	root.AddCommand(
		newSummaryCmd(a),
		newCloseMonthCmd(a),
		newHistoryCmd(a),
		newExportCmd(a),
		newSettingsCmd(a),
	)
	return root
}

func (a *app) open(cmd *cobra.Command, _ []string) error {
	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelInfo
	}
	logger := applog.New(applog.Config{Level: level, Component: applog.ComponentCLI, Output: cmd.ErrOrStderr()})
	applog.SetDefault(logger)

	settings, err := config.LoadSettings(a.settingsPath)
	if err != nil {
		return err
	}

	cfg := a.cfg
	cfg.DataBackend = string(backend.SQLiteBackend)
	cfg.SQLiteDBPath = a.dbPath
	cfg.SeedDemoData = false

	m, store, err := cli.OpenLedger(cmd.Context(), logger, &cfg, settings)
	if err != nil {
		return fmt.Errorf("open ledger %s: %w", a.dbPath, err)
	}
	a.store = store
	a.ledger = services.NewLedgerService(m, cli.ConnectPublisher(logger, &cfg))
	return nil
}

func (a *app) close() error {
	if a.ledger != nil {
		if err := a.ledger.Close(); err != nil {
			return err
		}
	}
	return a.store.Close()
}

// money formats an amount in the configured currency.
func (a *app) money(m core.Money) string {
	return m.Format(a.ledger.Settings().Currency)
}

func main() {
	cli.LoadEnvFile()
	if err := newRootCmd(*config.Load()).Execute(); err != nil {
		os.Exit(1)
	}
}
