package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel an active processing job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := apiClient.CancelJob(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("cancel job: %w", err)
		}
		if payload.Message != "" {
			fmt.Println(payload.Message)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cancelCmd)
}
