package cli

import (
	"context"
	"fmt"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"

	"github.com/raphaelgruber/modelseed-go/internal/models"
	"github.com/raphaelgruber/modelseed-go/internal/pipeline"
)

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status     lipgloss.Color
	Success    lipgloss.Color
	Error      lipgloss.Color
	Hint       lipgloss.Color
	ProgressBg lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:     lipgloss.Color("#5FAFD7"), // light blue
	Success:    lipgloss.Color("#00D787"), // green
	Error:      lipgloss.Color("#FF005F"), // red
	Hint:       lipgloss.Color("#6C6C6C"), // dim gray
	ProgressBg: lipgloss.Color("#3A3A3A"), // dark gray
}

// Style functions for dynamic theming
func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// progressMsg carries one per-record update from the running pipeline.
type progressMsg pipeline.Progress

// doneMsg signals that the pipeline finished.
type doneMsg struct {
	report *models.RunReport
	err    error
}

// progressModel is the bubbletea model for a live pipeline run.
type progressModel struct {
	progress progress.Model
	theme    Theme
	current  pipeline.Progress
	done     bool
	quitting bool
	err      error
	cancel   context.CancelFunc
}

func newProgressModel(cancel context.CancelFunc) progressModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)
	return progressModel{
		progress: prog,
		theme:    defaultTheme,
		cancel:   cancel,
	}
}

// Init returns the initial command.
func (m progressModel) Init() tea.Cmd {
	return m.progress.Init()
}

// Update handles messages and returns the updated model.
func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			m.cancel()
			return m, tea.Quit
		}

	case progressMsg:
		m.current = pipeline.Progress(msg)
		return m, nil

	case doneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m progressModel) renderContent() string {
	if m.done {
		if m.err != nil {
			return m.theme.errorStyle().Render(fmt.Sprintf("\n✗ Run aborted: %s\n", m.err))
		}
		return m.theme.completedStyle().Render("✓ Run completed\n")
	}
	if m.quitting {
		return m.theme.hintStyle().Render("Cancelling...\n")
	}
	if m.current.Stage == "" {
		return "Starting pipeline...\n"
	}

	var pct float64
	if m.current.Total > 0 {
		pct = float64(m.current.Done) / float64(m.current.Total)
	}

	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", m.current.Stage))
	progressBar := m.progress.ViewAs(pct)
	counts := fmt.Sprintf("%d/%d records", m.current.Done, m.current.Total)
	hint := m.theme.hintStyle().Render("Press Ctrl+C to cancel")

	return fmt.Sprintf("%s %s %s\n%s\n", status, progressBar, counts, hint)
}

// runWithProgress executes the pipeline while driving a live progress
// display. Pipeline events are pushed into the display as they happen.
func runWithProgress(ctx context.Context, p *pipeline.Pipeline) (*models.RunReport, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	program := tea.NewProgram(newProgressModel(cancel))
	p.OnProgress = func(evt pipeline.Progress) {
		program.Send(progressMsg(evt))
	}

	var (
		report *models.RunReport
		runErr error
		done   = make(chan struct{})
	)
	go func() {
		defer close(done)
		if runStageName != "" {
			report, runErr = p.RunStage(ctx, runStageName)
		} else {
			report, runErr = p.Run(ctx)
		}
		program.Send(doneMsg{report: report, err: runErr})
	}()

	_, uiErr := program.Run()
	cancel()
	<-done
	if uiErr != nil {
		return report, fmt.Errorf("progress display: %w", uiErr)
	}
	return report, runErr
}
