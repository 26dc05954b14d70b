package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	approveApprover string
	approveNote     string
)

var approveCmd = &cobra.Command{
	Use:   "approve <deployment-id> <stage>",
	Short: "Approve a manual gate on a stage",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if approveApprover == "" {
			return fmt.Errorf("--approver is required")
		}

		if err := apiClient().ApproveStage(cmd.Context(), args[0], args[1], approveApprover, approveNote); err != nil {
			return err
		}

		cmd.Printf("Approved stage %s as %s\n", args[1], approveApprover)
		return nil
	},
}

func init() {
	approveCmd.Flags().StringVar(&approveApprover, "approver", "", "identity recording the approval")
	approveCmd.Flags().StringVar(&approveNote, "note", "", "optional approval note")
}
