package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"

	"github.com/stefbowerman/undftd-cli/internal/pipeline"
)

// progressBuffer is how many updates may queue up before Observe starts
// dropping them. The final count always arrives with the phase end.
const progressBuffer = 64

// Theme holds the color scheme for the progress display and the summary.
type Theme struct {
	Status     lipgloss.Color
	Success    lipgloss.Color
	Error      lipgloss.Color
	Warning    lipgloss.Color
	Hint       lipgloss.Color
	ProgressBg lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:     lipgloss.Color("#5FAFD7"), // light blue
	Success:    lipgloss.Color("#00D787"), // green
	Error:      lipgloss.Color("#FF005F"), // red
	Warning:    lipgloss.Color("#FFAF00"), // amber
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

func (t Theme) warningStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Warning)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// progressMsg carries one record update into the UI.
type progressMsg struct {
	progress pipeline.Progress
	failed   int
}

// phaseDoneMsg ends the UI for a stage.
type phaseDoneMsg struct {
	completed int
	failed    int
}

// progressModel is the bubbletea model for one pipeline stage.
type progressModel struct {
	stage     pipeline.StageName
	total     int
	completed int
	failed    int
	last      string
	progress  progress.Model
	theme     Theme
	done      bool
	cancelled bool
}

func newProgressModel(stage pipeline.StageName, total int, theme Theme) progressModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)
	return progressModel{
		stage:    stage,
		total:    total,
		progress: prog,
		theme:    theme,
	}
}

func (m progressModel) Init() tea.Cmd {
	return m.progress.Init()
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		if msg.String() == "ctrl+c" {
			m.cancelled = true
			return m, tea.Quit
		}

	case progressMsg:
		if msg.progress.Completed > m.completed {
			m.completed = msg.progress.Completed
			m.failed = msg.failed
			m.last = msg.progress.Identifier
		}
		return m, nil

	case phaseDoneMsg:
		m.completed = msg.completed
		m.failed = msg.failed
		m.done = true
		return m, tea.Quit

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m progressModel) renderContent() string {
	if m.done || m.cancelled {
		return m.finalView()
	}

	var pct float64
	if m.total > 0 {
		pct = float64(m.completed) / float64(m.total)
	}

	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", m.stage))
	counts := fmt.Sprintf("%d/%d", m.completed, m.total)
	if m.failed > 0 {
		counts += " " + m.theme.errorStyle().Render(fmt.Sprintf("%d failed", m.failed))
	}

	out := fmt.Sprintf("%s %s %s\n", status, m.progress.ViewAs(pct), counts)
	if m.last != "" {
		out += m.theme.hintStyle().Render("last: "+m.last) + "\n"
	}
	out += m.theme.hintStyle().Render("Press Ctrl+C to abort the batch") + "\n"
	return out
}

func (m progressModel) finalView() string {
	if m.cancelled {
		return m.theme.warningStyle().Render(fmt.Sprintf(
			"%s aborted after %d/%d, the rest is listed as unprocessed\n", m.stage, m.completed, m.total))
	}

	line := m.theme.completedStyle().Render("✓ "+string(m.stage)) + fmt.Sprintf(" %d/%d", m.completed, m.total)
	if m.failed > 0 {
		line += " " + m.theme.errorStyle().Render(fmt.Sprintf("(%d failed)", m.failed))
	}
	return line + "\n"
}

// progressUI shows a progress bar per stage. It runs one bubbletea program
// per phase so that the confirmation between phases owns the terminal.
// Observe never blocks the pipeline: updates go through a buffered channel
// and are dropped when it is full.
type progressUI struct {
	in     io.Reader
	out    io.Writer
	theme  Theme
	cancel context.CancelFunc
	logger *slog.Logger

	mu        sync.Mutex
	program   *tea.Program
	updates   chan progressMsg
	pumpDone  chan struct{}
	runDone   chan struct{}
	completed int
	failed    int
}

func newProgressUI(in io.Reader, out io.Writer, cancel context.CancelFunc, logger *slog.Logger) *progressUI {
	return &progressUI{in: in, out: out, theme: defaultTheme, cancel: cancel, logger: logger}
}

func (ui *progressUI) PhaseStarted(stage pipeline.StageName, total int) {
	p := tea.NewProgram(newProgressModel(stage, total, ui.theme),
		tea.WithInput(ui.in),
		tea.WithOutput(ui.out),
	)
	updates := make(chan progressMsg, progressBuffer)
	pumpDone := make(chan struct{})
	runDone := make(chan struct{})

	ui.mu.Lock()
	ui.program = p
	ui.updates = updates
	ui.pumpDone = pumpDone
	ui.runDone = runDone
	ui.completed, ui.failed = 0, 0
	ui.mu.Unlock()

	go func() {
		defer close(runDone)
		final, err := p.Run()
		if err != nil {
			ui.logger.Warn("progress UI stopped", "error", err)
			return
		}
		if m, ok := final.(progressModel); ok && m.cancelled {
			ui.cancel()
		}
	}()

	go func() {
		defer close(pumpDone)
		for msg := range updates {
			p.Send(msg)
		}
	}()
}

func (ui *progressUI) Observe(p pipeline.Progress) {
	ui.mu.Lock()
	defer ui.mu.Unlock()
	if ui.updates == nil {
		return
	}
	ui.completed = p.Completed
	if p.Outcome == pipeline.OutcomeFailure {
		ui.failed++
	}
	select {
	case ui.updates <- progressMsg{progress: p, failed: ui.failed}:
	default:
	}
}

func (ui *progressUI) PhaseFinished(pipeline.StageName, int) {
	ui.mu.Lock()
	p, updates, pumpDone, runDone := ui.program, ui.updates, ui.pumpDone, ui.runDone
	done := phaseDoneMsg{completed: ui.completed, failed: ui.failed}
	ui.updates = nil
	ui.mu.Unlock()
	if p == nil || updates == nil {
		return
	}

	close(updates)
	<-pumpDone
	p.Send(done)
	<-runDone
}

var _ pipeline.PhaseObserver = (*progressUI)(nil)
