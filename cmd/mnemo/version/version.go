// Package versioncmder provides the version command.
package versioncmder

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/mnemo/pkg/utils"
)

type VersionCommander struct{}

func NewVersionCmd() *cobra.Command {
	cmder := &VersionCommander{}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "displays version",
		Long:  "displays the version of the mnemo CLI and the toolchain it was built with",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	return cmd
}

func (c *VersionCommander) run(cmd *cobra.Command) error {
	fmt.Fprintf(cmd.OutOrStdout(), "Version: %s\nSha: %s\nBuilt at: %s\nGo: %s\n",
		utils.Version, utils.Sha, utils.Buildtime, runtime.Version())
	return nil
}
