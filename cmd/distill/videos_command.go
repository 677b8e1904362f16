package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"distill/internal/config"
	"distill/internal/store"
)

func newVideosCommand(cmdCtx *commandContext) *cobra.Command {
	videosCmd := &cobra.Command{
		Use:   "videos",
		Short: "Inspect the extracted video catalog",
	}
	videosCmd.AddCommand(newVideosListCommand(cmdCtx))
	videosCmd.AddCommand(newVideosShowCommand(cmdCtx))
	return videosCmd
}

func newVideosListCommand(cmdCtx *commandContext) *cobra.Command {
	var tag string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List extracted videos",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withStore(func(cfg *config.Config, st *store.Store) error {
				ctx := cmd.Context()
				videos, err := st.ListVideos(ctx)
				if err != nil {
					return err
				}
				if tag != "" {
					ids, err := st.ListVideoIDsByTag(ctx, tag)
					if err != nil {
						return err
					}
					wanted := make(map[string]struct{}, len(ids))
					for _, id := range ids {
						wanted[id] = struct{}{}
					}
					filtered := videos[:0]
					for _, video := range videos {
						if _, ok := wanted[video.ID]; ok {
							filtered = append(filtered, video)
						}
					}
					videos = filtered
				}

				out := cmd.OutOrStdout()
				if len(videos) == 0 {
					fmt.Fprintln(out, "No videos in the catalog")
					return nil
				}

				rows := make([][]string, 0, len(videos))
				for _, video := range videos {
					summarized, err := st.HasSummary(ctx, video.ID)
					if err != nil {
						return err
					}
					rows = append(rows, []string{
						video.ID,
						truncate(video.Title, 50),
						truncate(video.ChannelName, 25),
						formatSeconds(video.DurationSeconds),
						yesNo(video.HasTranscript),
						yesNo(summarized),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Video", "Title", "Channel", "Duration", "Transcript", "Summary"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&tag, "tag", "", "Only list videos carrying this tag")
	return cmd
}

func newVideosShowCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <video-id>",
		Short: "Show one video and its summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withStore(func(cfg *config.Config, st *store.Store) error {
				ctx := cmd.Context()
				out := cmd.OutOrStdout()

				video, err := st.GetVideo(ctx, args[0])
				if err != nil {
					return err
				}
				if video == nil {
					return fmt.Errorf("video %s is not in the catalog", args[0])
				}

				fmt.Fprintf(out, "Title:      %s\n", video.Title)
				fmt.Fprintf(out, "Channel:    %s\n", video.ChannelName)
				fmt.Fprintf(out, "Duration:   %s\n", formatSeconds(video.DurationSeconds))
				fmt.Fprintf(out, "Transcript: %s", yesNo(video.HasTranscript))
				if video.HasTranscript {
					fmt.Fprintf(out, " (%s", video.TranscriptLanguage)
					if video.TranscriptAutoGenerated {
						fmt.Fprint(out, ", auto-generated")
					}
					fmt.Fprint(out, ")")
				}
				fmt.Fprintln(out)

				summary, err := st.GetSummary(ctx, video.ID)
				if err != nil {
					return err
				}
				if summary == nil {
					fmt.Fprintln(out, "No summary yet")
					return nil
				}
				fmt.Fprintf(out, "Category:   %s\n", summary.Category)
				fmt.Fprintf(out, "Model:      %s\n", summary.Model)
				fmt.Fprintf(out, "Cost:       $%.4f\n", summary.CostUSD)
				if summary.Flagged {
					fmt.Fprintln(out, "Flagged:    summary failed readability validation")
				}
				fmt.Fprintln(out)
				fmt.Fprintln(out, summary.Document)
				return nil
			})
		},
	}
}

func formatSeconds(seconds int) string {
	if seconds < 3600 {
		return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
	}
	return fmt.Sprintf("%d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}
