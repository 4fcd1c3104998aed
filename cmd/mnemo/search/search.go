// Package searchcmder provides the search command for recalling development
// memory.
package searchcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/mnemo/cmd/mnemo/stack"
	"github.com/papercomputeco/mnemo/pkg/cliui"
	"github.com/papercomputeco/mnemo/pkg/config"
	"github.com/papercomputeco/mnemo/pkg/dotdir"
	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/retrieval"
	"github.com/papercomputeco/mnemo/pkg/watch"
)

var (
	rankStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	scoreStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	idStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	typeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	previewStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
)

type searchCommander struct {
	query     string
	dir       string
	file      string
	tags      []string
	limit     int
	lexical   bool
	allProj   bool
	quiet     bool
	full      bool
	jsonOut   bool
	configDir string

	out io.Writer
}

const searchLongDesc string = `Search recorded development memory.

Results are ranked by a hybrid of semantic similarity and record metadata:
quality, recency, activity type, file and tag matches. Searches are scoped to
the project containing --dir (default: current directory) unless --all is set.

The result list is remembered so "mnemo feedback --result N" can refer to a
result by its position.

Use --quiet to output only record IDs, one per line, or --full to show each
record's whole content rendered as markdown.

Examples:
  mnemo search "session cleanup race"
  mnemo search "retry backoff" --file pkg/client/retry.go --limit 3
  mnemo search "auth" --tag security --all
  mnemo search "migrations" --lexical --json`

const searchShortDesc string = "Search development memory"

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.query = strings.Join(args, " ")
			cmder.out = cmd.OutOrStdout()
			cmder.configDir, _ = cmd.Flags().GetString(stack.FlagConfigDir)

			s, err := stack.OpenForCommand(cmd, config.StackFlags)
			if err != nil {
				return err
			}
			defer s.Close()

			if !cmd.Flags().Changed("limit") {
				cmder.limit = s.Config.Retrieval.Limit
			}
			return cmder.run(cmd.Context(), s.Memory)
		},
	}

	cmd.Flags().StringVar(&cmder.dir, "dir", "", "Directory inside the project to search (default: current directory)")
	cmd.Flags().StringVarP(&cmder.file, "file", "f", "", "Boost records about this file")
	cmd.Flags().StringSliceVarP(&cmder.tags, "tag", "t", nil, "Boost records with these tags")
	cmd.Flags().IntVarP(&cmder.limit, "limit", "k", 5, "Maximum number of results")
	cmd.Flags().BoolVar(&cmder.lexical, "lexical", false, "Skip semantic similarity and rank by metadata only")
	cmd.Flags().BoolVar(&cmder.allProj, "all", false, "Search every project")
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Output only record IDs, one per line")
	cmd.Flags().BoolVar(&cmder.full, "full", false, "Show full record content rendered as markdown")
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print results as JSON")
	stack.AddStackFlags(cmd)

	return cmd
}

func (c *searchCommander) run(ctx context.Context, mem memory.Driver) error {
	q := memory.Query{
		Text:            c.query,
		FilePath:        c.file,
		Tags:            c.tags,
		Limit:           c.limit,
		DisableSemantic: c.lexical,
	}
	if !c.allProj {
		status, err := mem.Status(ctx, c.dir)
		if err != nil {
			return fmt.Errorf("resolving project: %w", err)
		}
		q.ProjectID = status.Project.ID
	}

	results, err := mem.Recall(ctx, q)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	c.remember(q, results)

	switch {
	case c.jsonOut:
		if results == nil {
			results = []retrieval.Result{}
		}
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	case len(results) == 0:
		if !c.quiet {
			fmt.Fprintln(c.out, "No results found.")
		}
		return nil
	case c.quiet:
		for _, r := range results {
			fmt.Fprintln(c.out, r.Record.ID)
		}
		return nil
	}

	fmt.Fprintf(c.out, "\n%s %s\n\n",
		headerStyle.Render("Search Results for:"),
		idStyle.Render(fmt.Sprintf("%q", c.query)),
	)
	width := cliui.Width(100) - 4
	for i, r := range results {
		c.printResult(i+1, r, width)
	}
	return nil
}

// remember saves the result order for positional feedback. Failures only
// cost that convenience, so they are not returned.
func (c *searchCommander) remember(q memory.Query, results []retrieval.Result) {
	state := &dotdir.RecallState{
		Query:      q.Text,
		ProjectID:  q.ProjectID,
		RecordIDs:  make([]string, len(results)),
		SearchedAt: time.Now().UTC(),
	}
	for i, r := range results {
		state.RecordIDs[i] = r.Record.ID
	}
	_ = dotdir.NewManager().SaveRecallState(state, c.configDir)
}

func (c *searchCommander) printResult(rank int, r retrieval.Result, width int) {
	rec := r.Record
	fmt.Fprintf(c.out, "  %s  %s  %s  %s\n",
		rankStyle.Render(fmt.Sprintf("#%d", rank)),
		scoreStyle.Render(fmt.Sprintf("score: %.4f", r.Score)),
		typeStyle.Render(rec.Type.String()),
		idStyle.Render(rec.ID),
	)

	if c.full {
		rendered, err := cliui.RenderMarkdown(rec.Content)
		if err != nil {
			rendered = rec.Content + "\n"
		}
		fmt.Fprint(c.out, rendered)
	} else {
		preview := strings.ReplaceAll(rec.Content, "\n", " ")
		fmt.Fprintf(c.out, "  %s\n", previewStyle.Render(cliui.Truncate(preview, width)))
	}

	var meta []string
	if rec.FilePath != "" {
		loc := rec.FilePath
		if len(rec.LineRanges) > 0 {
			loc += ":" + watch.FormatRanges(rec.LineRanges)
		}
		meta = append(meta, loc)
	}
	if len(rec.Tags) > 0 {
		meta = append(meta, strings.Join(rec.Tags, ","))
	}
	meta = append(meta, fmt.Sprintf("quality %.2f", rec.QualityScore))
	meta = append(meta, rec.CreatedAt.Local().Format("2006-01-02 15:04"))
	fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render(strings.Join(meta, " · ")))
}
