package capturecmder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	bubbletea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/papercomputeco/mnemo/pkg/capture"
	"github.com/papercomputeco/mnemo/pkg/cliui"
	"github.com/papercomputeco/mnemo/pkg/memory"
)

var (
	promptBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("214")).
			Padding(0, 1)
	promptWarnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

type promptKeyMap struct {
	Yes   key.Binding
	No    key.Binding
	Maybe key.Binding
	Quit  key.Binding
}

func (k promptKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Yes, k.No, k.Maybe, k.Quit}
}

func (k promptKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

func defaultPromptKeys() promptKeyMap {
	return promptKeyMap{
		Yes:   key.NewBinding(key.WithKeys("y", "Y", "enter"), key.WithHelp("y", "record")),
		No:    key.NewBinding(key.WithKeys("n", "N"), key.WithHelp("n", "discard")),
		Maybe: key.NewBinding(key.WithKeys("m", "M"), key.WithHelp("m", "maybe")),
		Quit:  key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "leave pending")),
	}
}

type countdownMsg time.Time

// promptModel asks whether a pending capture should be recorded. It ends on
// a choice, on quit or when the confirmation expires.
type promptModel struct {
	outcome  *memory.CaptureOutcome
	content  string
	deadline time.Time
	now      func() time.Time

	keys    promptKeyMap
	help    help.Model
	spinner spinner.Model

	choice   capture.Choice
	timedOut bool
	quit     bool
}

func newPromptModel(content string, out *memory.CaptureOutcome, deadline time.Time) promptModel {
	return promptModel{
		outcome:  out,
		content:  content,
		deadline: deadline,
		now:      time.Now,
		keys:     defaultPromptKeys(),
		help:     help.New(),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
}

func countdown() bubbletea.Cmd {
	return bubbletea.Tick(time.Second, func(t time.Time) bubbletea.Msg {
		return countdownMsg(t)
	})
}

func (m promptModel) Init() bubbletea.Cmd {
	return bubbletea.Batch(m.spinner.Tick, countdown())
}

func (m promptModel) Update(msg bubbletea.Msg) (bubbletea.Model, bubbletea.Cmd) {
	switch msg := msg.(type) {
	case bubbletea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Yes):
			m.choice = capture.ChoiceYes
			return m, bubbletea.Quit
		case key.Matches(msg, m.keys.No):
			m.choice = capture.ChoiceNo
			return m, bubbletea.Quit
		case key.Matches(msg, m.keys.Maybe):
			m.choice = capture.ChoiceMaybe
			return m, bubbletea.Quit
		case key.Matches(msg, m.keys.Quit):
			m.quit = true
			return m, bubbletea.Quit
		}

	case countdownMsg:
		if !m.now().Before(m.deadline) {
			m.timedOut = true
			return m, bubbletea.Quit
		}
		return m, countdown()

	case spinner.TickMsg:
		var cmd bubbletea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m promptModel) View() string {
	if m.choice != "" || m.timedOut || m.quit {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n\n", m.spinner.View(), cliui.TitleStyle.Render("Record this activity?"))
	fmt.Fprintf(&b, "%s\n\n", cliui.Truncate(m.content, 72))

	if cls := m.outcome.Classification; cls != nil {
		fmt.Fprintf(&b, "%s %s  ", cliui.KeyStyle.Render("type"), cliui.ValueStyle.Render(cls.Type.String()))
	}
	if val := m.outcome.Value; val != nil {
		fmt.Fprintf(&b, "%s %d  ", cliui.KeyStyle.Render("value"), val.TotalScore)
	}
	fmt.Fprintf(&b, "%s %.2f\n", cliui.KeyStyle.Render("confidence"), m.outcome.Confidence)
	if m.outcome.Reason != "" {
		fmt.Fprintf(&b, "%s\n", cliui.DimStyle.Render(m.outcome.Reason))
	}

	remaining := max(m.deadline.Sub(m.now()).Round(time.Second), 0)
	fmt.Fprintf(&b, "\n%s\n", promptWarnStyle.Render(fmt.Sprintf("expires in %s", remaining)))
	b.WriteString(m.help.View(m.keys))

	return promptBoxStyle.Render(b.String()) + "\n"
}

// runPrompt shows the confirmation prompt until the user answers or the
// deadline passes. An empty choice means no answer.
func runPrompt(ctx context.Context, content string, out *memory.CaptureOutcome, deadline time.Time) (capture.Choice, error) {
	program := bubbletea.NewProgram(newPromptModel(content, out, deadline),
		bubbletea.WithContext(ctx),
	)
	final, err := program.Run()
	if err != nil {
		return "", fmt.Errorf("running confirmation prompt: %w", err)
	}
	m, ok := final.(promptModel)
	if !ok {
		return "", nil
	}
	return m.choice, nil
}
