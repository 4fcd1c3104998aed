package servecmder

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	mnemomcp "github.com/papercomputeco/mnemo/api/mcp"
	"github.com/papercomputeco/mnemo/cmd/mnemo/stack"
	"github.com/papercomputeco/mnemo/pkg/config"
)

const mcpLongDesc string = `Serve MCP over stdio.

The assistant launches this command and talks MCP on its stdin and stdout.
Logs go to stderr.

Example assistant configuration:
  {"command": "mnemo", "args": ["serve", "mcp"]}`

const mcpShortDesc string = "Serve MCP over stdio"

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: mcpShortDesc,
		Long:  mcpLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := stack.OpenForCommand(cmd, config.StackFlags)
			if err != nil {
				return err
			}
			defer s.Close()

			srv, err := mnemomcp.NewServer(mnemomcp.Config{
				Memory:     s.Memory,
				Classifier: s.Classifier,
				Ranges:     s.Ranges,
				Logger:     stack.NewLogger(cmd),
			})
			if err != nil {
				return fmt.Errorf("creating MCP server: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return srv.RunStdio(ctx)
		},
	}

	stack.AddStackFlags(cmd)

	return cmd
}
