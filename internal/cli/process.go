package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/podscrub/podscrub/internal/models"
)

var (
	processWatch bool
	processForce bool
)

var processCmd = &cobra.Command{
	Use:   "process <guid>",
	Short: "Start ad-removal processing for an episode",
	Long: `Start ad-removal processing for an episode.

With --force the episode is reprocessed from scratch: any active job is
cancelled and its processing state cleared first.`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().BoolVarP(&processWatch, "watch", "w", false, "track the pipeline after starting")
	processCmd.Flags().BoolVar(&processForce, "force", false, "reprocess from scratch even if already processed")
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	guid := args[0]

	var payload *models.StatusPayload
	var err error
	if processForce {
		payload, err = apiClient.ReprocessEpisode(cmd.Context(), guid)
	} else {
		payload, err = apiClient.ProcessEpisode(cmd.Context(), guid)
	}
	if err != nil {
		return fmt.Errorf("start processing: %w", err)
	}

	if payload.State == "ready" {
		fmt.Println("Episode already processed")
		return nil
	}
	if payload.Message != "" {
		fmt.Println(payload.Message)
	}

	if !processWatch {
		if payload.Job != nil {
			fmt.Printf("Job %s started. Use 'podscrub jobs %s' to check status.\n", payload.Job.ID, payload.Job.ID)
		}
		return nil
	}

	// Hand off to the watch view using the authenticated endpoint; starting
	// processing already required a console session.
	watchSession = true
	ctrl := startEpisodeSession(cmd.Context(), guid)
	defer ctrl.Stop()

	if term.IsTerminal(int(os.Stdout.Fd())) {
		return RunWatchUI(ctrl, fmt.Sprintf("Processing episode %s", guid))
	}
	return followPlain(ctrl)
}
