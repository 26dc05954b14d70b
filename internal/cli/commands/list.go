package commands

import (
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all deployments",
	RunE: func(cmd *cobra.Command, args []string) error {
		snapshots, err := apiClient().ListDeployments(cmd.Context())
		if err != nil {
			return err
		}

		if len(snapshots) == 0 {
			cmd.Println("No deployments")
			return nil
		}

		for _, s := range snapshots {
			cmd.Printf("%s  %-24s %-12s %s\n", s.ID, s.Name, s.Status, s.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List archived deployments",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		records, err := apiClient().ListHistory(cmd.Context(), limit, 0)
		if err != nil {
			return err
		}

		if len(records) == 0 {
			cmd.Println("No archived deployments")
			return nil
		}

		for _, r := range records {
			cmd.Printf("%s  %-24s %-12s %s\n", r.ID, r.Name, r.Status, r.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum number of records to show")
}
