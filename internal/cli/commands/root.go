package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/deployops/rollout/internal/cli"
)

var serverURL string

var rootCmd = &cobra.Command{
	Use:   "rollout",
	Short: "rollout - progressive delivery orchestration",
	Long: `rollout coordinates multi-stage deployments with dependency ordering,
promotion gates, and automatic rollback.

Core Flow:
  Definition YAML → Validation → Stage Scheduler → Gates → Completed (or Rollback)`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:3000", "orchestrator server URL")

	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(historyCmd)
}

func apiClient() *cli.Client {
	return cli.NewClient(serverURL)
}
