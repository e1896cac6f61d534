package cli

import (
	"fmt"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"

	"github.com/podscrub/podscrub/internal/models"
	"github.com/podscrub/podscrub/internal/poll"
)

// Theme holds the color scheme for the progress display.
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

// snapshotMsg carries the latest reconciled status from the controller.
type snapshotMsg poll.Snapshot

// sessionDoneMsg signals that the polling session has stopped.
type sessionDoneMsg struct{}

// watchModel is the bubbletea model for single-episode tracking. All state
// transitions live in the poll.Controller; the model only renders snapshots.
type watchModel struct {
	ctrl     *poll.Controller
	title    string
	snapshot poll.Snapshot
	progress progress.Model
	theme    Theme
	done     bool
	quitting bool
}

// newWatchModel creates the watch UI around a running controller.
func newWatchModel(ctrl *poll.Controller, title string) watchModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)

	return watchModel{
		ctrl:     ctrl,
		title:    title,
		snapshot: ctrl.Snapshot(),
		progress: prog,
		theme:    defaultTheme,
	}
}

// Init returns the initial command (wait for the first snapshot).
func (m watchModel) Init() tea.Cmd {
	return tea.Batch(
		waitForSnapshot(m.ctrl),
		m.progress.Init(),
	)
}

// Update handles messages and returns the updated model.
func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			m.ctrl.Stop()
			return m, tea.Quit
		}

	case snapshotMsg:
		m.snapshot = poll.Snapshot(msg)
		if m.snapshot.Status.Terminal() {
			m.done = true
			return m, tea.Quit
		}
		return m, waitForSnapshot(m.ctrl)

	case sessionDoneMsg:
		m.snapshot = m.ctrl.Snapshot()
		m.done = true
		return m, tea.Quit

	case progress.FrameMsg:
		// Update progress bar animation
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m watchModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

// renderContent builds the display string.
func (m watchModel) renderContent() string {
	if m.done || m.quitting {
		return m.finalView()
	}

	status := m.snapshot.Status
	label := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", status.State))
	bar := m.progress.ViewAs(status.Percentage / 100)

	step := status.StepName
	if step == "" {
		step = "waiting for server"
	}

	line := fmt.Sprintf("%s %s %s", label, bar, step)
	if m.snapshot.Transient {
		line += "\n" + m.theme.warningStyle().Render("server unreachable, retrying...")
	}
	hint := m.theme.hintStyle().Render("Press q to stop watching (processing continues on the server)")

	return fmt.Sprintf("%s\n%s\n%s\n", m.title, line, hint)
}

// finalView renders the completion message.
func (m watchModel) finalView() string {
	if m.quitting {
		return m.theme.hintStyle().Render("\nStopped watching. Processing continues on the server.\n")
	}

	status := m.snapshot.Status
	switch status.State {
	case models.StateReady:
		return m.theme.completedStyle().Render("✓ Episode ready") + "\n"
	case models.StateFailed, models.StatePermanentError:
		msg := status.Error
		if msg == "" {
			msg = "processing failed"
		}
		return m.theme.errorStyle().Render(fmt.Sprintf("✗ %s", msg)) + "\n"
	}
	return m.theme.hintStyle().Render("\nPolling stopped.\n")
}

// waitForSnapshot blocks (in a command goroutine) until the controller
// publishes a new snapshot or stops.
func waitForSnapshot(ctrl *poll.Controller) tea.Cmd {
	return func() tea.Msg {
		select {
		case s := <-ctrl.Updates():
			return snapshotMsg(s)
		case <-ctrl.Done():
			return sessionDoneMsg{}
		}
	}
}

// RunWatchUI runs the interactive progress UI over a polling session.
// Returns an error when the episode finished in a failed state.
func RunWatchUI(ctrl *poll.Controller, title string) error {
	model := newWatchModel(ctrl, title)
	p := tea.NewProgram(model)

	finalModel, err := p.Run()
	ctrl.Stop()
	if err != nil {
		return fmt.Errorf("progress UI error: %w", err)
	}

	if m, ok := finalModel.(watchModel); ok {
		if m.quitting {
			return nil
		}
		status := m.ctrl.Snapshot().Status
		if status.State == models.StateFailed || status.State == models.StatePermanentError {
			if status.Error != "" {
				return fmt.Errorf("%s", status.Error)
			}
			return fmt.Errorf("processing failed")
		}
	}

	return nil
}
