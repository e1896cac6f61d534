package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/podscrub/podscrub/internal/models"
)

var (
	jobsFollow   bool
	jobsLimit    int
	jobsInterval time.Duration
)

var jobsCmd = &cobra.Command{
	Use:   "jobs [job-id]",
	Short: "List or inspect background processing jobs",
	Long: `List active background jobs or inspect a specific job by ID.

Examples:
  podscrub jobs            # List active jobs
  podscrub jobs abc123     # Show details for job abc123
  podscrub jobs --follow   # Live dashboard of the current run`,
	Args: cobra.MaximumNArgs(1),
	RunE: runJobs,
}

func init() {
	jobsCmd.Flags().BoolVarP(&jobsFollow, "follow", "f", false, "live dashboard of the current run")
	jobsCmd.Flags().IntVar(&jobsLimit, "limit", 100, "max jobs to list")
	jobsCmd.Flags().DurationVar(&jobsInterval, "interval", 0, "summary refresh interval (default 5s)")
	rootCmd.AddCommand(jobsCmd)
}

func runJobs(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if len(args) == 1 {
		return showJob(ctx, args[0])
	}
	if jobsFollow {
		return followJobs(ctx)
	}
	return listJobs(ctx)
}

func listJobs(ctx context.Context) error {
	payload, err := apiClient.ActiveJobs(ctx, jobsLimit)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}

	if len(payload.Jobs) == 0 {
		fmt.Println("No active jobs")
		return nil
	}

	fmt.Printf("%-10s %-12s %-10s %-24s %s\n", "ID", "STATUS", "PROGRESS", "STEP", "EPISODE")
	fmt.Println("--------------------------------------------------------------------------------")

	for _, job := range payload.Jobs {
		fmt.Printf("%-10s %-12s %-10s %-24s %s\n",
			job.ID, job.Status, formatProgress(job), job.StepName, jobTitle(job))
	}

	return nil
}

func showJob(ctx context.Context, id string) error {
	job, err := findJob(ctx, id)
	if err != nil {
		return err
	}

	fmt.Printf("Job: %s\n", job.ID)
	fmt.Printf("  Episode: %s\n", jobTitle(*job))
	fmt.Printf("  Status: %s\n", job.Status)
	if job.TotalSteps > 0 {
		fmt.Printf("  Progress: %s (%s)\n", formatProgress(*job), job.StepName)
	}
	if job.TriggerSource != "" {
		fmt.Printf("  Triggered by: %s\n", job.TriggerSource)
	}
	if job.CreatedAt != nil {
		fmt.Printf("  Created: %s\n", job.CreatedAt.Format(time.RFC3339))
	}
	if job.StartedAt != nil {
		fmt.Printf("  Started: %s\n", job.StartedAt.Format(time.RFC3339))
	}
	if job.CompletedAt != nil {
		fmt.Printf("  Completed: %s\n", job.CompletedAt.Format(time.RFC3339))
		if job.StartedAt != nil {
			duration := job.CompletedAt.Sub(job.StartedAt.Time)
			fmt.Printf("  Duration: %s\n", duration.Round(time.Second))
		}
	}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		fmt.Printf("  Error: %s\n", *job.ErrorMessage)
	}

	return nil
}

// findJob looks a job up in the active list first, then in history.
func findJob(ctx context.Context, id string) (*models.JobRecord, error) {
	active, err := apiClient.ActiveJobs(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	for i := range active.Jobs {
		if active.Jobs[i].ID == id {
			return &active.Jobs[i], nil
		}
	}

	history, err := apiClient.JobHistory(ctx, apiHistoryAll())
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	for i := range history.Jobs {
		if history.Jobs[i].ID == id {
			return &history.Jobs[i], nil
		}
	}
	return nil, fmt.Errorf("job not found: %s", id)
}

func formatProgress(job models.JobRecord) string {
	if job.TotalSteps == 0 {
		return ""
	}
	return fmt.Sprintf("%d/%d", job.CurrentStep, job.TotalSteps)
}

func jobTitle(job models.JobRecord) string {
	if job.PostTitle != "" {
		return job.PostTitle
	}
	return job.PostGUID
}
