// Package rangescmder provides the ranges command, which prints the line
// ranges a working tree change touched in a file.
package rangescmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/mnemo/cmd/mnemo/stack"
	"github.com/papercomputeco/mnemo/pkg/cliui"
	"github.com/papercomputeco/mnemo/pkg/diffrange"
	"github.com/papercomputeco/mnemo/pkg/git"
	"github.com/papercomputeco/mnemo/pkg/watch"
)

type rangesCommander struct {
	jsonOut bool
	out     io.Writer
}

const rangesLongDesc string = `Print the line ranges changed in a file.

Ranges come from the uncommitted git diff of the file. Untracked files count
as fully added; files outside a repository or without changes report no
ranges.

Examples:
  mnemo ranges pkg/client/retry.go
  mnemo ranges README.md --json`

const rangesShortDesc string = "Print changed line ranges of a file"

func NewRangesCmd() *cobra.Command {
	cmder := &rangesCommander{}

	cmd := &cobra.Command{
		Use:   "ranges <file>",
		Short: rangesShortDesc,
		Long:  rangesLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.out = cmd.OutOrStdout()

			log := stack.NewLogger(cmd)
			extractor, err := diffrange.New(diffrange.Config{
				Provider: git.NewClient(git.Config{Logger: log}),
				Logger:   log,
			})
			if err != nil {
				return err
			}
			return cmder.run(cmd.Context(), extractor, args[0])
		},
	}

	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print the result as JSON")

	return cmd
}

func (c *rangesCommander) run(ctx context.Context, extractor *diffrange.Extractor, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}

	res := extractor.Extract(ctx, abs)

	if c.jsonOut {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	if res.ChangeType == diffrange.ChangeNone {
		fmt.Fprintf(c.out, "%s %s\n", cliui.DimStyle.Render("No changes in"), path)
		return nil
	}

	fmt.Fprintf(c.out, "  %s %s\n", cliui.KeyStyle.Render("File:   "), cliui.ValueStyle.Render(path))
	fmt.Fprintf(c.out, "  %s %s\n", cliui.KeyStyle.Render("Change: "), cliui.ValueStyle.Render(string(res.ChangeType)))
	if len(res.Ranges) > 0 {
		fmt.Fprintf(c.out, "  %s %s\n", cliui.KeyStyle.Render("Lines:  "), cliui.ValueStyle.Render(watch.FormatRanges(res.Ranges)))
	}
	fmt.Fprintf(c.out, "  %s %s\n", cliui.KeyStyle.Render("Changed:"), cliui.ValueStyle.Render(fmt.Sprintf("%d lines", res.TotalChangedLines)))
	return nil
}
