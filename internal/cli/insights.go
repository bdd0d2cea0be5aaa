package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	var daily bool

	cmd := &cobra.Command{
		Use:   "insights",
		Short: "Show what has been learned about the user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if daily {
				report, err := current.engine.DailyInsights(cmd.Context(), userID)
				if err != nil {
					return err
				}
				return printJSON(report)
			}
			insights, err := current.engine.Insights(cmd.Context(), userID)
			if err != nil {
				return err
			}
			return printJSON(insights)
		},
	}
	cmd.Flags().BoolVar(&daily, "daily", false, "Report the last seven days of activity")

	RootCmd.AddCommand(cmd)
}

func init() {
	cmd := &cobra.Command{
		Use:   "consolidate",
		Short: "Summarize the recent conversation into long-term memory",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := current.engine.Consolidate(cmd.Context(), userID)
			if err != nil {
				return err
			}
			return printJSON(map[string]any{"id": id, "stored": id != ""})
		},
	}

	RootCmd.AddCommand(cmd)
}

func init() {
	var maxClusters int

	cmd := &cobra.Command{
		Use:   "clusters",
		Short: "Group past interactions into recurring themes",
		RunE: func(cmd *cobra.Command, args []string) error {
			clusters, err := current.engine.Clusters(cmd.Context(), userID, maxClusters)
			if err != nil {
				return err
			}
			return printJSON(clusters)
		},
	}
	cmd.Flags().IntVar(&maxClusters, "max", 10, "Maximum number of clusters")

	RootCmd.AddCommand(cmd)
}
