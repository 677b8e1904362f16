package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"distill/internal/config"
	"distill/internal/ledger"
	"distill/internal/store"
)

func newFailuresCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "failures",
		Short: "List videos currently in the failure ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withStore(func(cfg *config.Config, st *store.Store) error {
				failures := ledger.NewFailureLedger(st)
				entries, err := failures.List(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "Failure ledger is empty")
					return nil
				}

				rows := make([][]string, 0, len(entries))
				for _, entry := range entries {
					rows = append(rows, []string{
						entry.VideoID,
						truncate(entry.Title, 40),
						entry.Stage,
						entry.ErrorKind,
						strconv.Itoa(entry.AttemptCount),
						entry.LastAttemptAt.Format("2006-01-02 15:04"),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Video", "Title", "Stage", "Kind", "Attempts", "Last attempt"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				fmt.Fprintln(out, "Run `distill retry` to reprocess these videos.")
				return nil
			})
		},
	}
}
