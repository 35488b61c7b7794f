// Package tui shows a spinner while a run is in progress and the report when
// it finishes.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sokinpui/llm2fs/model"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("197"))
	pathStyle    = lipgloss.NewStyle().Bold(true)
	faintStyle   = lipgloss.NewStyle().Faint(true)
	previewStyle = lipgloss.NewStyle().PaddingLeft(4)
)

// Runner is the work the TUI waits for.
type Runner interface {
	Execute(ctx context.Context) (*model.Report, error)
	SetProgressCallback(func(current, total int))
}

type reportMsg struct{ report *model.Report }

type errorMsg struct{ err error }

type progressMsg struct{ current, total int }

type state int

const (
	stateProcessing state = iota
	stateReport
	stateError
)

// Model is the bubbletea model of one run.
type Model struct {
	ctx     context.Context
	runner  Runner
	spinner spinner.Model
	state   state
	current int
	total   int
	report  *model.Report
	err     error
}

// New returns a Model that runs runner when the program starts.
func New(ctx context.Context, runner Runner) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return &Model{ctx: ctx, runner: runner, spinner: s}
}

// SetProgram routes progress updates from the runner to p.
func (m *Model) SetProgram(p *tea.Program) {
	m.runner.SetProgressCallback(func(current, total int) {
		p.Send(progressMsg{current: current, total: total})
	})
}

// Report returns the finished report, if any.
func (m *Model) Report() *model.Report { return m.report }

// Err returns the error that ended the run, if any.
func (m *Model) Err() error { return m.err }

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.run)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

	case progressMsg:
		m.current, m.total = msg.current, msg.total

	case reportMsg:
		m.state = stateReport
		m.report = msg.report
		return m, tea.Quit

	case errorMsg:
		m.state = stateError
		m.err = msg.err
		return m, tea.Quit

	default:
		var cmd tea.Cmd
		if m.state == stateProcessing {
			m.spinner, cmd = m.spinner.Update(msg)
		}
		return m, cmd
	}
	return m, nil
}

func (m *Model) View() string {
	switch m.state {
	case stateProcessing:
		if m.total > 0 {
			return fmt.Sprintf("%s Applying changes... %d/%d\n", m.spinner.View(), m.current, m.total)
		}
		return fmt.Sprintf("%s Processing...\n", m.spinner.View())
	case stateError:
		return errorStyle.Render("Error: "+m.err.Error()) + "\n"
	case stateReport:
		return RenderReport(m.report)
	default:
		return ""
	}
}

func (m *Model) run() tea.Msg {
	report, err := m.runner.Execute(m.ctx)
	if err != nil {
		return errorMsg{err}
	}
	return reportMsg{report}
}

// RenderReport formats a report with the TUI styles.
func RenderReport(r *model.Report) string {
	var b strings.Builder

	if r.Explanation != "" {
		b.WriteString(r.Explanation + "\n\n")
	}
	for _, res := range r.Results {
		b.WriteString(pathStyle.Render(res.Path))
		b.WriteString(" " + faintStyle.Render(res.Action) + "\n")
		if res.Reason != "" {
			b.WriteString("  " + faintStyle.Render(res.Reason) + "\n")
		}
		switch res.Outcome {
		case model.OutcomeApplied:
			b.WriteString("  " + successStyle.Render("✓ "+res.Message) + "\n")
		case model.OutcomeSkipped:
			b.WriteString("  " + warningStyle.Render("⚠ "+res.Message) + "\n")
		default:
			b.WriteString("  " + errorStyle.Render("✗ "+res.Message) + "\n")
		}
		if res.Preview != "" {
			b.WriteString(previewStyle.Render(strings.TrimSuffix(res.Preview, "\n")) + "\n")
		}
	}
	if len(r.Results) > 0 {
		b.WriteString("\n")
	}
	if r.Conclusion != "" {
		b.WriteString(r.Conclusion + "\n\n")
	}
	if r.Aborted {
		b.WriteString(errorStyle.Render("Stopped after the first failure.") + "\n")
	}
	b.WriteString(renderSummary(r.Summary()))
	return b.String()
}

func renderSummary(s model.Summary) string {
	var b strings.Builder

	if s.Message != "" {
		b.WriteString(headerStyle.Render(s.Message))
		b.WriteString("\n")
	}

	hasContent := false
	section := func(title string, style lipgloss.Style, paths []string) {
		if len(paths) == 0 {
			return
		}
		hasContent = true
		b.WriteString(style.Render(title + ":"))
		b.WriteString("\n")
		for _, p := range paths {
			b.WriteString("  " + p + "\n")
		}
	}
	section("Created", successStyle, s.Created)
	section("Modified", successStyle, s.Modified)
	section("Renamed", successStyle, s.Renamed)
	section("Deleted", successStyle, s.Deleted)
	section("Skipped", warningStyle, s.Skipped)
	section("Failed", errorStyle, s.Failed)

	if !hasContent && s.Message == "" {
		b.WriteString(faintStyle.Render("Nothing to do."))
		b.WriteString("\n")
	}
	return b.String()
}
