package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"distill/internal/config"
	"distill/internal/ledger"
	"distill/internal/pipeline"
	"distill/internal/store"
)

func newRetryCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry",
		Short: "Reprocess every video in the failure ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withPipeline(pipelineSettings{}, func(ctx context.Context, cfg *config.Config, orchestrator *pipeline.Orchestrator, _ *store.Store, _ *ledger.CostLedger) error {
				result, err := orchestrator.ReprocessFailed(ctx)
				if err != nil {
					return err
				}
				if result.Requested == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Failure ledger is empty")
					return nil
				}
				printBatchResult(cmd.OutOrStdout(), result)
				return nil
			})
		},
	}
}
