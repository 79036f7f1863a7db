package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"orcamento/internal/config"
)

func newSettingsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Ledger settings",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective settings as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return showSettings(cmd.OutOrStdout(), a)
		},
	})
	return cmd
}

func showSettings(w io.Writer, a *app) error {
	fmt.Fprintf(w, "# %s\n", a.settingsPath)
	return config.EncodeSettings(w, a.ledger.Settings())
}
