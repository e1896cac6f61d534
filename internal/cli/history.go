package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/podscrub/podscrub/internal/api"
)

var (
	historyLimit   int
	historyStatus  string
	historyTrigger string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show finished processing jobs",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 50, "max jobs to show")
	historyCmd.Flags().StringVar(&historyStatus, "status", "", "filter by status (completed, failed, cancelled, skipped)")
	historyCmd.Flags().StringVar(&historyTrigger, "trigger-source", "", "filter by trigger source (manual_ui, auto_feed_refresh, ...)")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	return printHistory(cmd.Context(), api.HistoryOptions{
		Limit:         historyLimit,
		Status:        historyStatus,
		TriggerSource: historyTrigger,
	})
}

func printHistory(ctx context.Context, opts api.HistoryOptions) error {
	payload, err := apiClient.JobHistory(ctx, opts)
	if err != nil {
		return fmt.Errorf("job history: %w", err)
	}

	if len(payload.Jobs) == 0 {
		fmt.Println("No jobs found")
	} else {
		fmt.Printf("%-10s %-12s %-18s %-10s %s\n", "ID", "STATUS", "TRIGGER", "FINISHED", "EPISODE")
		fmt.Println("--------------------------------------------------------------------------------")
		for _, job := range payload.Jobs {
			finished := ""
			if job.CompletedAt != nil {
				finished = job.CompletedAt.Format(time.Kitchen)
			}
			fmt.Printf("%-10s %-12s %-18s %-10s %s\n",
				job.ID, job.Status, job.TriggerSource, finished, jobTitle(job))
		}
	}

	fmt.Printf("\nTotal %d jobs: %d completed, %d failed\n",
		payload.Summary.Total, payload.Summary.Completed, payload.Summary.Failed)
	return nil
}

// apiHistoryAll is the unfiltered lookup used when searching for a job by ID.
func apiHistoryAll() api.HistoryOptions {
	return api.HistoryOptions{Limit: 200}
}
