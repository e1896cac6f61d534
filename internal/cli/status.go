package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/podscrub/podscrub/internal/api"
)

var statusSession bool

var statusCmd = &cobra.Command{
	Use:   "status <guid>",
	Short: "Fetch an episode's processing status once",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusSession, "session", false, "use the authenticated episode endpoint")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	guid := args[0]

	var outcome api.Outcome
	if statusSession {
		outcome = apiClient.EpisodeStatus(cmd.Context(), guid)
	} else {
		outcome = apiClient.TriggerStatus(cmd.Context(), guid, cfg.FeedToken, cfg.FeedSecret)
	}

	switch outcome.Kind {
	case api.OutcomeSuccess:
		p := outcome.Payload
		fmt.Printf("Episode: %s\n", guid)
		fmt.Printf("  State: %s\n", p.State)
		fmt.Printf("  Processed: %v\n", p.Processed)
		if p.Message != "" {
			fmt.Printf("  Message: %s\n", p.Message)
		}
		if p.Job != nil {
			fmt.Printf("  Job: %s (%s)\n", p.Job.ID, p.Job.Status)
			if p.Job.TotalSteps > 0 {
				fmt.Printf("  Step: %d/%d %s\n", p.Job.CurrentStep, p.Job.TotalSteps, p.Job.StepName)
			}
			if p.Job.ErrorMessage != "" {
				fmt.Printf("  Error: %s\n", p.Job.ErrorMessage)
			}
		}
		return nil

	case api.OutcomeClientError:
		if outcome.Payload != nil && outcome.Payload.Message != "" {
			return fmt.Errorf("rejected (%d): %s", outcome.Code, outcome.Payload.Message)
		}
		return fmt.Errorf("rejected by server (HTTP %d)", outcome.Code)

	case api.OutcomeServerError:
		return fmt.Errorf("server unavailable (HTTP %d)", outcome.Code)

	default:
		return fmt.Errorf("server unreachable: %v", outcome.Err)
	}
}
