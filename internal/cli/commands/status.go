package commands

import (
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <deployment-id>",
	Short: "Show the current state of a deployment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		snapshot, err := apiClient().GetDeployment(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		cmd.Printf("Deployment: %s (%s)\n", snapshot.Name, snapshot.ID)
		cmd.Printf("Status:     %s\n", snapshot.Status)
		if snapshot.CurrentStage != "" {
			cmd.Printf("Stage:      %s\n", snapshot.CurrentStage)
		}
		if snapshot.FailureReason != "" {
			cmd.Printf("Failure:    %s\n", snapshot.FailureReason)
		}

		cmd.Println("\nStages:")
		for _, stage := range snapshot.Stages {
			line := "  " + stage.Name + "  " + string(stage.Status)
			if stage.Error != "" {
				line += "  (" + stage.Error + ")"
			}
			cmd.Println(line)
		}
		return nil
	},
}
