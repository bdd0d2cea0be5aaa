// Package cli implements the jobo commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/easeaico/project-jobo/internal/config"
	"github.com/spf13/cobra"
)

var (
	userID  string
	loaded  config.Config
	current *app
)

// Execute runs the command tree against cfg. Backends opened by the
// command are closed on return, including when the command fails.
func Execute(ctx context.Context, cfg config.Config) error {
	loaded = cfg
	defer closeApp()
	return RootCmd.ExecuteContext(ctx)
}

func closeApp() {
	if current != nil {
		current.Close()
		current = nil
	}
}

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "jobo",
	Short: "Personalized AI assistant with layered memory",
	Long:  "Jobo answers with context drawn from recent turns, semantic recall and a learned user profile.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if userID == "" {
			return fmt.Errorf("--user is required")
		}
		setupLogging(loaded.LogLevel)
		a, err := bootstrap(cmd.Context(), loaded)
		if err != nil {
			return err
		}
		current = a
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "", "User identity")
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	fmt.Println(string(b))
	return nil
}
