// Package capturecmder provides the capture command, which offers a piece of
// development activity to the memory layer.
package capturecmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/mnemo/cmd/mnemo/stack"
	"github.com/papercomputeco/mnemo/pkg/capture"
	"github.com/papercomputeco/mnemo/pkg/cliui"
	"github.com/papercomputeco/mnemo/pkg/config"
	"github.com/papercomputeco/mnemo/pkg/memory"
)

// Source tags activity captured from the command line.
const Source = "cli"

type captureCommander struct {
	dir      string
	file     string
	choice   string
	jsonOut  bool
	noPrompt bool

	out io.Writer
}

const captureLongDesc string = `Capture a piece of development activity.

The text is classified (bug fix, feature, refactor, design, test, docs or
plain code change), scored for how valuable it is to remember and then
decided on:

  high value     recorded immediately
  low value      discarded
  in between     confirmation required

When confirmation is required and the terminal is interactive, a prompt
asks whether to record it before the confirmation expires. Use --choice to
answer ahead of time, or --no-prompt to leave it unanswered.

Examples:
  mnemo capture "Fixed race in session cleanup by holding the lock across the map delete"
  mnemo capture "Switched retries to exponential backoff" --file pkg/client/retry.go
  mnemo capture "Renamed helpers" --choice no --json`

const captureShortDesc string = "Capture development activity"

func NewCaptureCmd() *cobra.Command {
	cmder := &captureCommander{}

	cmd := &cobra.Command{
		Use:   "capture <text>",
		Short: captureShortDesc,
		Long:  captureLongDesc,
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(_ *cobra.Command, _ []string) error {
			if cmder.choice == "" {
				return nil
			}
			_, err := capture.ParseChoice(cmder.choice)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.out = cmd.OutOrStdout()

			s, err := stack.OpenForCommand(cmd, config.StackFlags)
			if err != nil {
				return err
			}
			defer s.Close()

			return cmder.run(cmd.Context(), s.Memory, strings.Join(args, " "), s.Config)
		},
	}

	cmd.Flags().StringVarP(&cmder.file, "file", "f", "", "File the activity changed")
	cmd.Flags().StringVar(&cmder.dir, "dir", "", "Directory inside the project (default: current directory)")
	cmd.Flags().StringVar(&cmder.choice, "choice", "", "Answer a confirmation ahead of time (yes, no, maybe)")
	cmd.Flags().BoolVar(&cmder.noPrompt, "no-prompt", false, "Never prompt for confirmation")
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print the outcome as JSON")
	stack.AddStackFlags(cmd)

	return cmd
}

func (c *captureCommander) run(ctx context.Context, mem memory.Driver, content string, cfg *config.Config) error {
	out, err := mem.Capture(ctx, memory.Activity{
		Content:  content,
		Dir:      c.dir,
		FilePath: c.file,
		Source:   Source,
	})
	if err != nil {
		return fmt.Errorf("capturing activity: %w", err)
	}

	if out.State == capture.StatePending {
		out, err = c.confirm(ctx, mem, content, out)
		if err != nil {
			return err
		}
	}

	if c.jsonOut {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	c.print(out, cfg)
	return nil
}

// confirm answers a pending outcome from --choice or the interactive
// prompt. "maybe" keeps the confirmation open, so the prompt is shown again
// until a final answer or expiry.
func (c *captureCommander) confirm(ctx context.Context, mem memory.Driver, content string, out *memory.CaptureOutcome) (*memory.CaptureOutcome, error) {
	if c.choice != "" {
		choice, _ := capture.ParseChoice(c.choice)
		return mem.Resolve(ctx, out.PendingID, choice)
	}

	if c.noPrompt || !cliui.IsTerminal(os.Stdin) || !cliui.IsTerminal(os.Stdout) {
		return out, nil
	}

	for {
		pending, ok := findPending(mem, out.PendingID)
		if !ok {
			out.State = capture.StateTimedOut
			out.Reason = "confirmation expired"
			return out, nil
		}

		choice, err := runPrompt(ctx, content, out, pending.ExpiresAt)
		if err != nil {
			return nil, err
		}
		if choice == "" {
			return out, nil
		}

		res, err := mem.Resolve(ctx, out.PendingID, choice)
		if err != nil {
			return nil, err
		}
		if res.State != capture.StatePending {
			return res, nil
		}
		out.Confidence = res.Confidence
		out.Reason = "asked again after maybe"
	}
}

func findPending(mem memory.Driver, id string) (capture.Pending, bool) {
	for _, p := range mem.Pending() {
		if p.ID == id {
			return p, true
		}
	}
	return capture.Pending{}, false
}

func (c *captureCommander) print(out *memory.CaptureOutcome, cfg *config.Config) {
	var summary []string
	if out.Classification != nil {
		summary = append(summary, cliui.ValueStyle.Render(out.Classification.Type.String()))
	}
	if out.Value != nil {
		style := cliui.ScoreStyle(out.Value.TotalScore, cfg.Capture.HighThreshold, cfg.Capture.LowThreshold)
		summary = append(summary, style.Render(fmt.Sprintf("value %d", out.Value.TotalScore)))
	}
	detail := strings.Join(summary, cliui.DimStyle.Render(" · "))

	switch out.State {
	case capture.StateRecorded:
		fmt.Fprintf(c.out, "\n  %s Recorded %s\n", cliui.SuccessMark, detail)
		fmt.Fprintf(c.out, "  %s  %s\n", cliui.KeyStyle.Render("Record: "), out.RecordID)
	case capture.StatePending:
		fmt.Fprintf(c.out, "\n  %s Needs confirmation %s\n", cliui.PendingMark, detail)
		fmt.Fprintf(c.out, "  %s\n", cliui.DimStyle.Render("Not recorded. Re-run with --choice yes to keep it."))
	default:
		fmt.Fprintf(c.out, "\n  %s Not recorded %s\n", cliui.FailMark, detail)
	}

	if out.Reason != "" {
		fmt.Fprintf(c.out, "  %s  %s\n", cliui.KeyStyle.Render("Reason: "), cliui.DimStyle.Render(out.Reason))
	}
	if out.ProjectID != "" {
		fmt.Fprintf(c.out, "  %s  %s\n", cliui.KeyStyle.Render("Project:"), cliui.DimStyle.Render(out.ProjectID))
	}
	fmt.Fprintln(c.out)
}
