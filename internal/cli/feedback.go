package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	var recordID string
	var score float64

	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Attach a satisfaction score to a previous answer",
		RunE: func(cmd *cobra.Command, args []string) error {
			if recordID == "" {
				return fmt.Errorf("--id is required")
			}
			if err := current.engine.SubmitFeedback(cmd.Context(), userID, recordID, score); err != nil {
				return err
			}
			return printJSON(map[string]any{"status": "recorded", "id": recordID, "satisfaction": score})
		},
	}
	cmd.Flags().StringVar(&recordID, "id", "", "Interaction record ID returned by chat")
	cmd.Flags().Float64Var(&score, "score", 0, "Satisfaction score")

	RootCmd.AddCommand(cmd)
}
