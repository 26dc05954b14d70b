package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/deployops/rollout/internal/engine"
)

var applyStart bool

var applyCmd = &cobra.Command{
	Use:   "apply <definition.yaml>",
	Short: "Create a deployment from a definition file",
	Long:  `Parse a YAML deployment definition, submit it to the orchestrator, and optionally start it immediately.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read definition: %w", err)
		}

		def, err := engine.ParseDefinition(data)
		if err != nil {
			return err
		}

		client := apiClient()
		snapshot, err := client.CreateDeployment(cmd.Context(), def)
		if err != nil {
			return err
		}

		cmd.Printf("Deployment %s created (%s)\n", snapshot.Name, snapshot.ID)

		if applyStart {
			if err := client.StartDeployment(cmd.Context(), snapshot.ID.String()); err != nil {
				return err
			}
			cmd.Println("Deployment started")
		}
		return nil
	},
}

func init() {
	applyCmd.Flags().BoolVar(&applyStart, "start", false, "start the deployment immediately after creating it")
}
