// Package mnemocmder
package mnemocmder

import (
	"os"

	"github.com/spf13/cobra"

	capturecmder "github.com/papercomputeco/mnemo/cmd/mnemo/capture"
	configcmder "github.com/papercomputeco/mnemo/cmd/mnemo/config"
	feedbackcmder "github.com/papercomputeco/mnemo/cmd/mnemo/feedback"
	initcmder "github.com/papercomputeco/mnemo/cmd/mnemo/init"
	rangescmder "github.com/papercomputeco/mnemo/cmd/mnemo/ranges"
	searchcmder "github.com/papercomputeco/mnemo/cmd/mnemo/search"
	servecmder "github.com/papercomputeco/mnemo/cmd/mnemo/serve"
	"github.com/papercomputeco/mnemo/cmd/mnemo/stack"
	statuscmder "github.com/papercomputeco/mnemo/cmd/mnemo/status"
	versioncmder "github.com/papercomputeco/mnemo/cmd/mnemo/version"
	watchcmder "github.com/papercomputeco/mnemo/cmd/mnemo/watch"
	"github.com/papercomputeco/mnemo/pkg/cliui"
)

const mnemoLongDesc string = `mnemo is a local memory layer for AI coding assistants.

It watches what happens during development, keeps what is worth
remembering and recalls it when it is relevant again.

Get started:
  mnemo init                  Create .mnemo/ with a default config
  mnemo capture "<text>"      Capture a piece of activity
  mnemo search "<query>"      Recall relevant memory
  mnemo watch                 Capture file changes as they happen
  mnemo serve                 Run the REST API and MCP server`

const mnemoShortDesc string = "mnemo - memory for coding assistants"

func NewMnemoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "mnemo",
		Short:        mnemoShortDesc,
		Long:         mnemoLongDesc,
		SilenceUsage: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if !cliui.IsTerminal(os.Stdout) {
				cliui.Plain()
			}
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolP(stack.FlagDebug, "d", false, "Enable debug logging")
	cmd.PersistentFlags().Bool(stack.FlagLogJSON, false, "Write logs as JSON")
	cmd.PersistentFlags().String(stack.FlagConfigDir, "", "Override path to .mnemo/ config directory")

	// Add subcommands
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(capturecmder.NewCaptureCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(feedbackcmder.NewFeedbackCmd())
	cmd.AddCommand(rangescmder.NewRangesCmd())
	cmd.AddCommand(statuscmder.NewStatusCmd())
	cmd.AddCommand(watchcmder.NewWatchCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
