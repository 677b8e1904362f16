package main

import (
	"fmt"
	"io"

	"distill/internal/pipeline"
)

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}

// printBatchResult writes the per-batch report. Per-item failures are part of
// normal operation, so this never produces an error exit on its own.
func printBatchResult(out io.Writer, result pipeline.BatchResult) {
	fmt.Fprintf(out, "Run %s: %d requested, %d succeeded, %d failed, %d skipped\n",
		result.RunID, result.Requested, result.Succeeded, result.Failed, len(result.Skipped))

	for _, item := range result.Items {
		switch item.State {
		case pipeline.StatePersisted:
			flag := ""
			if item.Flagged {
				flag = " [flagged for review]"
			}
			fmt.Fprintf(out, "  ok      %s  %s ($%.4f)%s\n", item.VideoID, truncate(item.Title, 60), item.CostUSD, flag)
		case pipeline.StateFailed:
			fmt.Fprintf(out, "  failed  %s  %s: %s\n", item.VideoID, item.FailedStage, item.ErrorKind)
		}
	}
	for _, skipped := range result.Skipped {
		fmt.Fprintf(out, "  skipped %s  %s\n", skipped.VideoID, skipped.Reason)
	}

	if result.TotalCostUSD > 0 {
		fmt.Fprintf(out, "Batch cost: $%.4f\n", result.TotalCostUSD)
	}
	if result.BudgetWarning {
		fmt.Fprintln(out, "Warning: projected spend crosses the monthly budget ceiling")
	}
	if result.HaltedForBudget {
		fmt.Fprintln(out, "Batch halted: monthly budget exhausted")
	}
}
