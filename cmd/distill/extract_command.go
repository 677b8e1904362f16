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

func newExtractCommand(cmdCtx *commandContext) *cobra.Command {
	var playlistID string
	var channelID string
	var limit int
	var noDistill bool

	cmd := &cobra.Command{
		Use:   "extract [video-id...]",
		Short: "Extract, distill, and persist videos",
		Long: `Extract runs the full pipeline for each video: metadata, transcript,
classification, distillation, validation, and persistence. Videos can be
named directly, or resolved from a playlist or a channel's uploads.
With --no-distill only the extracted record is persisted; summaries can be
generated later with "distill summarize".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && playlistID == "" && channelID == "" {
				return errors.New("provide video ids, --playlist, or --channel")
			}
			return cmdCtx.withPipeline(pipelineSettings{extractOnly: noDistill}, func(ctx context.Context, cfg *config.Config, orchestrator *pipeline.Orchestrator, _ *store.Store, costs *ledger.CostLedger) error {
				ids := append([]string(nil), args...)

				extractor := cmdCtx.newExtractor(cfg)
				if playlistID != "" {
					playlistIDs, err := extractor.ListPlaylistItems(ctx, playlistID, limit)
					if err != nil {
						return fmt.Errorf("list playlist: %w", err)
					}
					ids = append(ids, playlistIDs...)
				}
				if channelID != "" {
					channelIDs, err := extractor.ListChannelUploads(ctx, channelID, limit)
					if err != nil {
						return fmt.Errorf("list channel uploads: %w", err)
					}
					ids = append(ids, channelIDs...)
				}
				if len(ids) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Nothing to process")
					return nil
				}

				result := orchestrator.ProcessBatch(ctx, ids)
				printBatchResult(cmd.OutOrStdout(), result)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&playlistID, "playlist", "", "Process every video in this playlist")
	cmd.Flags().StringVar(&channelID, "channel", "", "Process this channel's uploads")
	cmd.Flags().IntVar(&limit, "limit", 0, "Stop after this many videos from a playlist or channel (0 = all)")
	cmd.Flags().BoolVar(&noDistill, "no-distill", false, "Persist metadata and transcript without generating a summary")
	return cmd
}
