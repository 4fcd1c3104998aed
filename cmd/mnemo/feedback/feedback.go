// Package feedbackcmder provides the feedback command, which reports that a
// recalled record was used or rates how useful it was.
package feedbackcmder

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/mnemo/cmd/mnemo/stack"
	"github.com/papercomputeco/mnemo/pkg/cliui"
	"github.com/papercomputeco/mnemo/pkg/config"
	"github.com/papercomputeco/mnemo/pkg/dotdir"
	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/record"
)

type feedbackCommander struct {
	recordID  string
	result    int
	rating    float64
	rated     bool
	configDir string

	out io.Writer
}

const feedbackLongDesc string = `Give feedback on a recorded memory.

Without --rating the record is marked as referenced, which counts toward
its usefulness. With --rating the record gets a user rating between 0 and 1,
which sets its accuracy. Either way the record's quality is rescored and the
new metrics are printed.

The record is named by ID or, with --result, by its position in the last
"mnemo search".

Examples:
  mnemo feedback 6f1c2a4e-...
  mnemo feedback --result 1
  mnemo feedback --result 2 --rating 0.2`

const feedbackShortDesc string = "Give feedback on a recorded memory"

func NewFeedbackCmd() *cobra.Command {
	cmder := &feedbackCommander{}

	cmd := &cobra.Command{
		Use:   "feedback [record-id]",
		Short: feedbackShortDesc,
		Long:  feedbackLongDesc,
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				cmder.recordID = args[0]
			}
			cmder.rated = cmd.Flags().Changed("rating")
			cmder.configDir, _ = cmd.Flags().GetString(stack.FlagConfigDir)
			return cmder.validate()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.out = cmd.OutOrStdout()

			s, err := stack.OpenForCommand(cmd, config.StackFlags)
			if err != nil {
				return err
			}
			defer s.Close()

			return cmder.run(cmd.Context(), s.Memory)
		},
	}

	cmd.Flags().IntVarP(&cmder.result, "result", "r", 0, "Position of the record in the last search (1-based)")
	cmd.Flags().Float64Var(&cmder.rating, "rating", 0, "Rate the record between 0 and 1")
	stack.AddStackFlags(cmd)

	return cmd
}

func (c *feedbackCommander) validate() error {
	switch {
	case c.recordID == "" && c.result == 0:
		return errors.New("a record ID or --result is required")
	case c.recordID != "" && c.result != 0:
		return errors.New("use either a record ID or --result, not both")
	case c.rated && (c.rating < 0 || c.rating > 1):
		return fmt.Errorf("rating %v is outside [0,1]", c.rating)
	}
	return nil
}

func (c *feedbackCommander) run(ctx context.Context, mem memory.Driver) error {
	id, err := c.resolveID()
	if err != nil {
		return err
	}

	kind := memory.FeedbackReference
	if c.rated {
		kind = memory.FeedbackRating
	}

	rec, err := mem.Feedback(ctx, id, kind, c.rating)
	if err != nil {
		return fmt.Errorf("recording feedback: %w", err)
	}
	metrics, err := mem.Quality(ctx, id)
	if err != nil {
		return fmt.Errorf("scoring quality: %w", err)
	}

	c.print(rec, kind, metrics)
	return nil
}

func (c *feedbackCommander) resolveID() (string, error) {
	if c.recordID != "" {
		return c.recordID, nil
	}

	state, err := dotdir.NewManager().LoadRecallState(c.configDir)
	if err != nil {
		return "", err
	}
	if state == nil {
		return "", errors.New("no previous search, run mnemo search first")
	}
	return state.Resolve(c.result)
}

func (c *feedbackCommander) print(rec *record.Record, kind memory.FeedbackKind, m record.QualityMetrics) {
	action := "Marked as referenced"
	if kind == memory.FeedbackRating {
		action = fmt.Sprintf("Rated %.2f", c.rating)
	}

	fmt.Fprintf(c.out, "\n  %s %s %s\n", cliui.SuccessMark, action, cliui.DimStyle.Render(rec.ID))
	fmt.Fprintf(c.out, "  %s\n\n", cliui.Truncate(rec.Content, cliui.Width(100)-4))

	rows := []struct {
		key string
		val float64
	}{
		{"Overall:     ", m.Overall},
		{"Relevance:   ", m.Relevance},
		{"Freshness:   ", m.Freshness},
		{"Completeness:", m.Completeness},
		{"Accuracy:    ", m.Accuracy},
		{"Usefulness:  ", m.Usefulness},
	}
	for _, r := range rows {
		fmt.Fprintf(c.out, "  %s %s\n", cliui.KeyStyle.Render(r.key), cliui.ValueStyle.Render(fmt.Sprintf("%.2f", r.val)))
	}
	fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render(fmt.Sprintf("%d references, %d searches", m.References, m.Searches)))
}
