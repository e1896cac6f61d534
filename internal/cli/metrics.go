package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/podscrub/podscrub/internal/metrics"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show server runtime statistics",
	Long: `Show the backend's in-memory request statistics for monitoring.

Examples:
  podscrub metrics`,
	RunE: runMetrics,
}

func init() {
	rootCmd.AddCommand(metricsCmd)
}

func runMetrics(cmd *cobra.Command, args []string) error {
	snap, err := apiClient.ServerMetrics(cmd.Context())
	if err != nil {
		return fmt.Errorf("get server metrics: %w", err)
	}
	printServerMetrics(snap)
	return nil
}

// printServerMetrics displays server runtime statistics.
func printServerMetrics(snap *metrics.Snapshot) {
	fmt.Printf("Server Statistics (in-memory, since restart)\n")
	fmt.Printf("═══════════════════════════════════════════════\n")
	fmt.Printf("Uptime: %.1f seconds\n", snap.UptimeSeconds)

	if len(snap.Operations) == 0 {
		fmt.Println("\nNo requests recorded yet.")
		return
	}

	ops := make([]string, 0, len(snap.Operations))
	for op := range snap.Operations {
		ops = append(ops, op)
	}
	sort.Strings(ops)

	for _, op := range ops {
		fmt.Printf("\n%s:\n", op)
		printOpStats(snap.Operations[op])
	}
}

// printOpStats displays timing statistics for an operation.
func printOpStats(op metrics.OperationSnapshot) {
	fmt.Printf("  Calls: %d, Errors: %d, Total: %dms\n", op.Count, op.Errors, op.TotalTimeMs)
	fmt.Printf("  Time: avg %.1fms, min %dms, max %dms\n",
		op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
}
