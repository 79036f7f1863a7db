package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"orcamento/internal/report"
)

func newExportCmd(a *app) *cobra.Command {
	var dir string
	var stdout bool

	write := func(cmd *cobra.Command, name string, doc any) error {
		if stdout {
			return report.Encode(cmd.OutOrStdout(), doc)
		}
		path := filepath.Join(dir, name)
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		if err := report.Encode(f, doc); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  Exportado: %s\n", path)
		return nil
	}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write report or history JSON documents",
	}
	cmd.PersistentFlags().StringVarP(&dir, "dir", "o", ".", "Output directory")
	cmd.PersistentFlags().BoolVar(&stdout, "stdout", false, "Print the document instead of writing a file")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "report",
			Short: "Report of the working month with the history",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				now := a.ledger.Now()
				doc := report.BuildReport(a.ledger.Working(), a.ledger.History(), now)
				return write(cmd, report.ReportFilename(a.ledger.Period()), doc)
			},
		},
		&cobra.Command{
			Use:   "history",
			Short: "Every closed month with aggregates",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				now := a.ledger.Now()
				return write(cmd, report.HistoryFilename(now), report.BuildHistory(a.ledger.History(), now))
			},
		},
	)
	return cmd
}
