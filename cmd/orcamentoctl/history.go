package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"orcamento/internal/ledger"
)

var errNotConfirmed = errors.New("refusing to delete without --yes")

func newHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Closed months",
	}
	cmd.AddCommand(newHistoryListCmd(a), newHistoryDeleteCmd(a))
	return cmd
}

func newHistoryListCmd(a *app) *cobra.Command {
	var query, filter string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List closed months, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := ledger.ParseHistoryFilter(filter)
			if err != nil {
				return err
			}
			months := a.ledger.SearchHistory(query, f)
			out := cmd.OutOrStdout()
			if len(months) == 0 {
				fmt.Fprintln(out, "  Nenhum mês fechado encontrado.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tMÊS\tRENDA\tGASTOS\tRESTANTE\tFECHADO EM")
			for _, m := range months {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					m.ID, m.Month, a.money(m.Income), a.money(m.Expenses), a.money(m.Remaining),
					m.ClosedAt.Local().Format("02/01/2006 15:04"))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "Match month label or notes")
	cmd.Flags().StringVar(&filter, "filter", "all", "all, positive, negative, high or low")
	return cmd
}

func newHistoryDeleteCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a closed month permanently",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.ledger.Month(args[0])
			if err != nil {
				return err
			}
			if !yes {
				return fmt.Errorf("%w: %s (%s)", errNotConfirmed, m.Month, m.ID)
			}
			if err := a.ledger.DeleteHistoricalMonth(cmd.Context(), m.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  Excluído: %s\n", m.Month)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm the deletion")
	return cmd
}
