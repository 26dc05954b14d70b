package commands

import (
	"github.com/spf13/cobra"
)

var pauseCmd = &cobra.Command{
	Use:   "pause <deployment-id>",
	Short: "Pause a running deployment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := apiClient().PauseDeployment(cmd.Context(), args[0]); err != nil {
			return err
		}
		cmd.Println("Deployment paused")
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume <deployment-id>",
	Short: "Resume a paused deployment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := apiClient().ResumeDeployment(cmd.Context(), args[0]); err != nil {
			return err
		}
		cmd.Println("Deployment resumed")
		return nil
	},
}
