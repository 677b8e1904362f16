package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"distill/internal/config"
	"distill/internal/ledger"
	"distill/internal/store"
)

func newCostCommand(cmdCtx *commandContext) *cobra.Command {
	var period string
	var showEntries bool

	cmd := &cobra.Command{
		Use:   "cost",
		Short: "Report recorded spend against the monthly budget",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withStore(func(cfg *config.Config, st *store.Store) error {
				costs := ledger.NewCostLedger(st, cfg.Budget)
				ctx := cmd.Context()
				out := cmd.OutOrStdout()

				periodKey := period
				if periodKey == "" {
					periodKey = ledger.CurrentPeriodKey()
				}

				snap, err := costs.Current(ctx, periodKey)
				if err != nil {
					return err
				}
				totals, err := costs.Totals(ctx)
				if err != nil {
					return err
				}

				fmt.Fprintf(out, "Period %s: $%.4f", snap.PeriodKey, snap.PeriodTotalUSD)
				if snap.CeilingUSD > 0 {
					remaining := snap.CeilingUSD - snap.PeriodTotalUSD
					if remaining < 0 {
						remaining = 0
					}
					fmt.Fprintf(out, " of $%.2f ceiling ($%.4f remaining)", snap.CeilingUSD, remaining)
				}
				fmt.Fprintln(out)
				if snap.OverWarnThreshold() {
					fmt.Fprintf(out, "Warning: spend has crossed the $%.2f warning threshold\n", snap.WarnAtUSD)
				}
				fmt.Fprintf(out, "All-time total: $%.4f\n\n", snap.GrandTotalUSD)

				if len(totals) > 0 {
					rows := make([][]string, 0, len(totals))
					for _, total := range totals {
						rows = append(rows, []string{
							total.PeriodKey,
							strconv.Itoa(total.Items),
							total.LastEntryAt.Format("2006-01-02 15:04"),
							fmt.Sprintf("$%.4f", total.TotalUSD),
						})
					}
					fmt.Fprintln(out, renderTable(
						[]string{"Period", "Calls", "Last entry", "Cost"},
						rows,
						[]columnAlignment{alignLeft, alignRight, alignLeft, alignRight},
					))
				}

				if showEntries {
					entries, err := costs.Entries(ctx, periodKey)
					if err != nil {
						return err
					}
					if len(entries) == 0 {
						fmt.Fprintln(out, "No entries for this period")
						return nil
					}
					rows := make([][]string, 0, len(entries))
					for _, entry := range entries {
						rows = append(rows, []string{
							entry.CreatedAt.Format("2006-01-02 15:04"),
							entry.VideoID,
							truncate(entry.Title, 40),
							entry.Model,
							fmt.Sprintf("%d/%d", entry.InputTokens, entry.OutputTokens),
							fmt.Sprintf("%dms", entry.LatencyMS),
							fmt.Sprintf("$%.4f", entry.CostUSD),
						})
					}
					fmt.Fprintln(out, renderTable(
						[]string{"When", "Video", "Title", "Model", "Tokens in/out", "Latency", "Cost"},
						rows,
						[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight},
					))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&period, "period", "", "Period to report (YYYY-MM, defaults to the current month)")
	cmd.Flags().BoolVar(&showEntries, "entries", false, "List individual cost entries for the period")
	return cmd
}
