// Package statuscmder provides the status command for displaying the memory
// state of the current project.
package statuscmder

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/mnemo/cmd/mnemo/stack"
	"github.com/papercomputeco/mnemo/pkg/cliui"
	"github.com/papercomputeco/mnemo/pkg/config"
	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/storage"
	"github.com/papercomputeco/mnemo/pkg/utils"
)

type statusCommander struct {
	dir        string
	endSession bool
	apiTarget  string
	out        io.Writer
	now        func() time.Time
}

const statusLongDesc string = `Show the memory state of the current project.

Resolves the project containing --dir (default: current directory) and shows
its identity, the active session, how many records it holds and any
captures waiting for confirmation. It also reports whether a "mnemo serve"
is answering at client.api_target.

Use --end-session to complete the active session. The next capture starts
a new one.

Examples:
  mnemo status
  mnemo status --dir ../other-repo
  mnemo status --end-session`

const statusShortDesc string = "Show project memory state"

func NewStatusCmd() *cobra.Command {
	cmder := &statusCommander{now: time.Now}

	cmd := &cobra.Command{
		Use:   "status",
		Short: statusShortDesc,
		Long:  statusLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.out = cmd.OutOrStdout()

			keys := append([]string{config.FlagAPITarget}, config.StackFlags...)
			cfg, configDir, err := stack.LoadConfig(cmd, keys)
			if err != nil {
				return err
			}
			cmder.apiTarget = cfg.Client.APITarget

			s, err := stack.Open(cmd.Context(), cfg, configDir, stack.NewLogger(cmd))
			if err != nil {
				return err
			}
			defer s.Close()

			return cmder.run(cmd.Context(), s.Memory)
		},
	}

	cmd.Flags().StringVar(&cmder.dir, "dir", "", "Directory inside the project (default: current directory)")
	cmd.Flags().BoolVar(&cmder.endSession, "end-session", false, "Complete the active session")
	config.AddStringFlag(cmd, config.DefaultFlags, config.FlagAPITarget, &cmder.apiTarget)
	stack.AddStackFlags(cmd)

	return cmd
}

func (c *statusCommander) run(ctx context.Context, mem memory.Driver) error {
	st, err := mem.Status(ctx, c.dir)
	if err != nil {
		return fmt.Errorf("resolving project: %w", err)
	}

	if c.endSession {
		ended, err := mem.EndSession(ctx, st.Project.ID)
		switch {
		case storage.IsNotFound(err):
			fmt.Fprintf(c.out, "  %s No active session.\n", cliui.DimStyle.Render("●"))
		case err != nil:
			return fmt.Errorf("ending session: %w", err)
		default:
			fmt.Fprintf(c.out, "  %s Ended session %s\n", cliui.SuccessMark, cliui.DimStyle.Render(ended.ID))
			st.ActiveSession = nil
		}
	}

	p := st.Project
	fmt.Fprintf(c.out, "\n  %s  %s\n", cliui.KeyStyle.Render("Project: "), cliui.ValueStyle.Render(p.Name))
	fmt.Fprintf(c.out, "  %s  %s\n", cliui.KeyStyle.Render("Root:    "), cliui.DimStyle.Render(p.RootPath))
	if p.RemoteURL != "" {
		fmt.Fprintf(c.out, "  %s  %s\n", cliui.KeyStyle.Render("Remote:  "), cliui.DimStyle.Render(p.RemoteURL))
	}
	if lang := strings.Trim(strings.Join([]string{p.Language, p.Framework}, " / "), " /"); lang != "" {
		fmt.Fprintf(c.out, "  %s  %s\n", cliui.KeyStyle.Render("Stack:   "), cliui.ValueStyle.Render(lang))
	}
	fmt.Fprintf(c.out, "  %s  %s\n", cliui.KeyStyle.Render("Records: "), cliui.ValueStyle.Render(strconv.Itoa(st.Records)))

	if s := st.ActiveSession; s != nil {
		since := cliui.FormatDuration(c.now().Sub(s.StartedAt).Round(time.Second))
		fmt.Fprintf(c.out, "  %s  %s %s\n",
			cliui.KeyStyle.Render("Session: "),
			cliui.ValueStyle.Render(s.Name),
			cliui.DimStyle.Render(fmt.Sprintf("(active %s, %s)", since, strings.Join(s.Metadata.Tools, ","))),
		)
	} else {
		fmt.Fprintf(c.out, "  %s  %s\n", cliui.KeyStyle.Render("Session: "), cliui.DimStyle.Render("none"))
	}

	pending := mem.Pending()
	fmt.Fprintf(c.out, "  %s  %s\n", cliui.KeyStyle.Render("Pending: "), cliui.ValueStyle.Render(strconv.Itoa(st.Pending)))
	for _, pd := range pending {
		fmt.Fprintf(c.out, "    %s %s %s\n",
			cliui.PendingMark,
			cliui.ValueStyle.Render(utils.Truncate(pd.Candidate.Content, 60)),
			cliui.DimStyle.Render(fmt.Sprintf("%s, expires %s", pd.ID, pd.ExpiresAt.Local().Format(time.Kitchen))),
		)
	}

	if c.apiTarget != "" {
		server := cliui.DimStyle.Render("not running at " + c.apiTarget)
		if ping(ctx, c.apiTarget) {
			server = cliui.ValueStyle.Render("running at " + c.apiTarget)
		}
		fmt.Fprintf(c.out, "  %s  %s\n", cliui.KeyStyle.Render("Server:  "), server)
	}

	fmt.Fprintln(c.out)
	return nil
}

// ping reports whether a mnemo API server answers at target.
func ping(ctx context.Context, target string) bool {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(target, "/")+"/ping", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
