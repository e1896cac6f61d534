package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/podscrub/podscrub/internal/models"
	"github.com/podscrub/podscrub/internal/poll"
)

// aggregateMsg carries the latest dashboard snapshot.
type aggregateMsg poll.AggregateSnapshot

// watcherDoneMsg signals that the aggregate watcher has stopped.
type watcherDoneMsg struct{}

// followJobs runs the live dashboard over the aggregate watcher. A websocket
// event stream, when available, pokes the watcher so updates land faster;
// polling carries on regardless.
func followJobs(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	interval := jobsInterval
	if interval <= 0 {
		interval = cfg.SummaryInterval
	}

	watcher := poll.Watch(ctx, poll.AggregateConfig{
		Interval: interval,
		FetchSummary: func(ctx context.Context) (*models.ManagerStatusPayload, error) {
			return apiClient.ManagerStatus(ctx)
		},
		FetchJobs: func(ctx context.Context) (*models.JobListPayload, error) {
			return apiClient.ActiveJobs(ctx, jobsLimit)
		},
		Logger: logger,
	})
	defer watcher.Stop()

	// Best-effort push channel: each event just accelerates the next poll.
	go func() {
		err := apiClient.StreamJobEvents(ctx, func(models.JobEvent) error {
			watcher.Poke()
			return nil
		})
		if err != nil && ctx.Err() == nil {
			logger.Debug("job event stream unavailable, polling only", "error", err)
		}
	}()

	model := dashboardModel{
		watcher:  watcher,
		snapshot: watcher.Snapshot(),
		theme:    defaultTheme,
	}
	p := tea.NewProgram(model)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("dashboard UI error: %w", err)
	}
	return nil
}

// dashboardModel renders the aggregate snapshot; all refresh logic lives in
// the watcher.
type dashboardModel struct {
	watcher  *poll.AggregateWatcher
	snapshot poll.AggregateSnapshot
	theme    Theme
	quitting bool
}

func (m dashboardModel) Init() tea.Cmd {
	return waitForAggregate(m.watcher)
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			m.watcher.Stop()
			return m, tea.Quit
		case "r":
			// Manual refresh; also re-arms the summary timer when new work
			// appeared while the watcher was idle.
			m.watcher.Poke()
		}

	case aggregateMsg:
		m.snapshot = poll.AggregateSnapshot(msg)
		return m, waitForAggregate(m.watcher)

	case watcherDoneMsg:
		return m, tea.Quit
	}

	return m, nil
}

func (m dashboardModel) View() tea.View {
	if m.quitting {
		return tea.NewView("")
	}

	var b strings.Builder

	b.WriteString(m.renderRun())
	b.WriteString("\n")

	if len(m.snapshot.Jobs) == 0 {
		b.WriteString(m.theme.hintStyle().Render("No active jobs") + "\n")
	} else {
		b.WriteString(fmt.Sprintf("%-10s %-12s %-10s %-24s %s\n", "ID", "STATUS", "PROGRESS", "STEP", "EPISODE"))
		for _, job := range m.snapshot.Jobs {
			b.WriteString(fmt.Sprintf("%-10s %-12s %-10s %-24s %s\n",
				job.ID, job.Status, formatProgress(job), job.StepName, jobTitle(job)))
		}
	}

	if m.snapshot.Transient {
		b.WriteString(m.theme.warningStyle().Render("server unreachable, retrying...") + "\n")
	}
	b.WriteString(m.theme.hintStyle().Render("r: refresh  q: quit") + "\n")

	return tea.NewView(b.String())
}

func (m dashboardModel) renderRun() string {
	run := m.snapshot.Run
	if run == nil {
		return m.theme.hintStyle().Render("No processing run yet")
	}

	counts := fmt.Sprintf("queued %d  running %d  completed %d  failed %d  skipped %d",
		run.QueuedCount, run.RunningCount, run.CompletedCount, run.FailedCount, run.SkippedCount)

	header := fmt.Sprintf("Run %s (%s)  %.0f%%  %s", run.ID, run.Trigger, run.OverallPercentage(), counts)
	if m.snapshot.Active {
		return m.theme.statusStyle().Render(header)
	}
	if run.FinishedAt != nil {
		header += "  finished " + run.FinishedAt.Format(time.Kitchen)
	}
	return m.theme.completedStyle().Render(header)
}

func waitForAggregate(w *poll.AggregateWatcher) tea.Cmd {
	return func() tea.Msg {
		select {
		case s := <-w.Updates():
			return aggregateMsg(s)
		case <-w.Done():
			return watcherDoneMsg{}
		}
	}
}
