// Package watchcmder provides the watch command, which captures file changes
// in a project as they settle.
package watchcmder

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/mnemo/cmd/mnemo/stack"
	"github.com/papercomputeco/mnemo/pkg/capture"
	"github.com/papercomputeco/mnemo/pkg/cliui"
	"github.com/papercomputeco/mnemo/pkg/config"
	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/worker"
)

type watchCommander struct {
	root     string
	debounce string

	mu  sync.Mutex
	out io.Writer
}

const watchLongDesc string = `Watch a project and capture changes as they settle.

Every file change under the project root waits for a quiet period (the
debounce), then its changed line ranges are summarized and captured like
"mnemo capture" would. Changes that need confirmation are left pending.

Ignore patterns come from watch.ignore in config.toml and default to .git,
node_modules, vendor and .mnemo.

Examples:
  mnemo watch
  mnemo watch ../service --debounce 5s`

const watchShortDesc string = "Capture file changes as they happen"

func NewWatchCmd() *cobra.Command {
	cmder := &watchCommander{}

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: watchShortDesc,
		Long:  watchLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.out = cmd.OutOrStdout()
			cmder.root = "."
			if len(args) == 1 {
				cmder.root = args[0]
			}

			keys := append([]string{config.FlagDebounce}, config.StackFlags...)
			s, err := stack.OpenForCommand(cmd, keys)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return cmder.run(ctx, s)
		},
	}

	config.AddStringFlag(cmd, config.DefaultFlags, config.FlagDebounce, &cmder.debounce)
	stack.AddStackFlags(cmd)

	return cmd
}

func (c *watchCommander) run(ctx context.Context, s *stack.Stack) error {
	w, pool, err := s.Watch(c.root, c.report)
	if err != nil {
		return err
	}
	defer pool.Close()

	fmt.Fprintf(c.out, "  %s Watching %s %s\n",
		cliui.SuccessMark,
		cliui.ValueStyle.Render(c.root),
		cliui.DimStyle.Render("(ctrl+c to stop)"),
	)

	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// report prints one line per capture. It runs on pool workers.
func (c *watchCommander) report(job worker.Job, out *memory.CaptureOutcome, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	summary := job.Activity.Content
	switch {
	case err != nil:
		fmt.Fprintf(c.out, "  %s %s %s\n", cliui.FailMark, summary, cliui.DimStyle.Render(err.Error()))
	case out.State == capture.StateRecorded:
		fmt.Fprintf(c.out, "  %s %s %s\n", cliui.SuccessMark, summary, cliui.DimStyle.Render(out.RecordID))
	case out.State == capture.StatePending:
		fmt.Fprintf(c.out, "  %s %s %s\n", cliui.PendingMark, summary, cliui.DimStyle.Render("needs confirmation"))
	default:
		fmt.Fprintf(c.out, "  %s %s %s\n", cliui.DimStyle.Render("-"), cliui.DimStyle.Render(summary), cliui.DimStyle.Render(out.Reason))
	}
}
