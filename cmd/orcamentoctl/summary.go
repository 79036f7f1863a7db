package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"orcamento/internal/core"
	"orcamento/internal/ledger"
)

func newSummaryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Totals and alerts of the working month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := a.ledger.Summary()
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "  Mês:        %s\n", s.Label)
			fmt.Fprintf(out, "  Renda:      %s\n", a.money(s.TotalIncome))
			fmt.Fprintf(out, "  Estimado:   %s\n", a.money(s.TotalEstimated))
			fmt.Fprintf(out, "  Gasto:      %s (%s%% da renda)\n", a.money(s.TotalSpent), s.BudgetPercentage.StringFixed(1))
			fmt.Fprintf(out, "  Fixas:      %s\n", a.money(s.TotalFixed))
			fmt.Fprintf(out, "  Cartões:    %s\n", a.money(s.TotalCards))
			fmt.Fprintf(out, "  Restante:   %s\n", a.money(s.Remaining))
			if s.TopCategory != nil {
				fmt.Fprintf(out, "  Maior gasto: %s (%s)\n", s.TopCategory.Category, a.money(s.TopCategory.Spent))
			}
			if len(s.Alerts) > 0 {
				fmt.Fprintln(out)
				for _, alert := range s.Alerts {
					fmt.Fprintf(out, "  [%s] %s\n", alert.Level, alert.Message)
				}
			}
			if due := ledger.DueItems(a.ledger.Working(), a.ledger.Now()); len(due) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "  Vencimentos:")
				for _, item := range due {
					fmt.Fprintf(out, "    %s  %-24s %s  (%s)\n",
						item.DueDate.Format("02/01"), item.Description, a.money(item.Value), item.DueLabel)
				}
			}
			return nil
		},
	}
}

func newCloseMonthCmd(a *app) *cobra.Command {
	var notes string
	cmd := &cobra.Command{
		Use:   "close-month",
		Short: "Archive the working month and start the next one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			closed := a.ledger.CloseMonth
			if cmd.Flags().Changed("notes") {
				closed = func(ctx context.Context) (core.MonthlyData, error) {
					return a.ledger.CloseMonthWithNotes(ctx, notes)
				}
			}
			snap, err := closed(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "  Fechado: %s (%s)\n", snap.Month, snap.ID)
			fmt.Fprintf(out, "  Renda %s, gastos %s, restante %s\n", a.money(snap.Income), a.money(snap.Expenses), a.money(snap.Remaining))
			fmt.Fprintf(out, "  Próximo mês: %s\n", a.ledger.Period().Label())
			return nil
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "Notes stored with the closed month (replaces the draft notes)")
	return cmd
}
