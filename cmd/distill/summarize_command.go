package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"distill/internal/config"
	"distill/internal/ledger"
	"distill/internal/pipeline"
	"distill/internal/store"
)

func newSummarizeCommand(cmdCtx *commandContext) *cobra.Command {
	var all bool
	var tag string
	var template string
	var force bool
	var noValidate bool

	cmd := &cobra.Command{
		Use:   "summarize [video-id...]",
		Short: "Distill summaries for already-extracted videos",
		Long: `Summarize re-runs the pipeline over videos already in the catalog.
Videos with an existing summary are skipped unless --force is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			selectors := 0
			if len(args) > 0 {
				selectors++
			}
			if all {
				selectors++
			}
			if tag != "" {
				selectors++
			}
			if selectors == 0 {
				return errors.New("provide video ids, --all, or --tag")
			}
			if selectors > 1 {
				return errors.New("video ids, --all, and --tag are mutually exclusive")
			}

			settings := pipelineSettings{force: force, noValidate: noValidate, template: template}
			return cmdCtx.withPipeline(settings, func(ctx context.Context, cfg *config.Config, orchestrator *pipeline.Orchestrator, st *store.Store, costs *ledger.CostLedger) error {
				ids := append([]string(nil), args...)
				switch {
				case all:
					videos, err := st.ListVideos(ctx)
					if err != nil {
						return fmt.Errorf("list videos: %w", err)
					}
					for _, video := range videos {
						ids = append(ids, video.ID)
					}
				case tag != "":
					tagged, err := st.ListVideoIDsByTag(ctx, tag)
					if err != nil {
						return fmt.Errorf("list videos by tag: %w", err)
					}
					ids = tagged
				}
				if len(ids) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No matching videos")
					return nil
				}

				result := orchestrator.ProcessBatch(ctx, ids)
				printBatchResult(cmd.OutOrStdout(), result)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Summarize every video in the catalog")
	cmd.Flags().StringVar(&tag, "tag", "", "Summarize videos carrying this tag")
	cmd.Flags().StringVar(&template, "template", "", "Force a prompt template (tech, finance, general)")
	cmd.Flags().BoolVar(&force, "force", false, "Reprocess videos that already have a summary")
	cmd.Flags().BoolVar(&noValidate, "no-validate", false, "Skip readability validation")
	return cmd
}
