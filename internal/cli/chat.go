package cli

import (
	"bufio"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Send a message, or read one message per line from stdin",
		RunE:  runChat,
	}

	RootCmd.AddCommand(cmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if len(args) > 0 {
		result, err := current.engine.Chat(ctx, userID, strings.Join(args, " "))
		if err != nil {
			return err
		}
		return printJSON(result)
	}

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		result, err := current.engine.Chat(ctx, userID, line)
		if err != nil {
			return err
		}
		if err := printJSON(result); err != nil {
			return err
		}
	}
	return scanner.Err()
}
