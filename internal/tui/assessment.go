// internal/tui/assessment.go
// Package tui renders the live assessment view and the final score report.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spar65/aiassessmenttool/internal/assessment"
	"github.com/spar65/aiassessmenttool/internal/util"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	dimensionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	faintStyle     = lipgloss.NewStyle().Faint(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// progressMsg carries a runner progress update into the Bubble Tea loop.
type progressMsg assessment.Progress

// runDoneMsg is sent once when the runner reaches a terminal state.
type runDoneMsg struct {
	outcome *assessment.Outcome
	err     error
}

// model is the Bubble Tea model for a live assessment run.
type model struct {
	spinner    spinner.Model
	bar        progress.Model
	latest     assessment.Progress
	vendor     string
	cancel     context.CancelFunc
	cancelling bool
	done       bool
	outcome    *assessment.Outcome
	err        error
	width      int
}

func newModel(vendor string, cancel context.CancelFunc) *model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	bar := progress.New(progress.WithDefaultGradient())

	return &model{
		spinner: s,
		bar:     bar,
		vendor:  vendor,
		cancel:  cancel,
	}
}

// Init starts the spinner animation.
func (m *model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update is the central update function for the Bubble Tea model.
func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			// Cancel the run and wait for runDoneMsg so the snapshot
			// finishes writing before the screen is torn down.
			m.cancelling = true
			m.cancel()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = util.Min(msg.Width-8, 60)

	case progressMsg:
		m.latest = assessment.Progress(msg)
		return m, nil

	case runDoneMsg:
		m.done = true
		m.outcome = msg.outcome
		m.err = msg.err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the live run state.
func (m *model) View() string {
	if m.done {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("AI Ethics Assessment"))
	b.WriteString(faintStyle.Render(fmt.Sprintf("  (%s)", m.vendor)))
	b.WriteString("\n\n")

	if m.latest.Total == 0 {
		b.WriteString(fmt.Sprintf("  %s Checking platform availability...\n", m.spinner.View()))
		return b.String()
	}

	b.WriteString(fmt.Sprintf("  %s Question %d of %d  %s\n",
		m.spinner.View(), m.latest.Current, m.latest.Total,
		dimensionStyle.Render(m.latest.Dimension)))
	b.WriteString("  " + m.bar.ViewAs(m.latest.Percentage/100) + "\n\n")

	b.WriteString(faintStyle.Render(fmt.Sprintf("  elapsed %s, about %s remaining\n",
		m.latest.Elapsed.Round(time.Second),
		m.latest.EstimatedRemaining.Round(time.Second))))

	if m.cancelling {
		b.WriteString(errorStyle.Render("\n  Cancelling... progress is saved and can be resumed.\n"))
	} else {
		b.WriteString(faintStyle.Render("\n  press q to cancel\n"))
	}
	return b.String()
}

// StartAssessment runs the assessment under a live terminal view and returns
// the outcome once the run reaches a terminal state.
func StartAssessment(ctx context.Context, runner *assessment.Runner, vendor string) (*assessment.Outcome, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := newModel(vendor, cancel)
	p := tea.NewProgram(m)

	runner.OnProgress(func(update assessment.Progress) {
		p.Send(progressMsg(update))
	})

	go func() {
		outcome, err := runner.Run(runCtx)
		p.Send(runDoneMsg{outcome: outcome, err: err})
	}()

	final, err := p.Run()
	if err != nil {
		cancel()
		return nil, err
	}

	finalModel := final.(*model)
	return finalModel.outcome, finalModel.err
}
