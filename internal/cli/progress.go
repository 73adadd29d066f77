package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"

	"github.com/raphaelgruber/wallharvest/internal/models"
)

const pollInterval = time.Second

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

// taskFetcher loads the current task row.
type taskFetcher func(ctx context.Context, id string) (*models.Task, error)

// tickMsg triggers polling the task row.
type tickMsg time.Time

// taskUpdateMsg carries the polled task.
type taskUpdateMsg struct {
	task *models.Task
	err  error
}

// progressModel is the bubbletea model for task progress.
type progressModel struct {
	fetch    taskFetcher
	onStop   func()
	taskID   string
	task     *models.Task
	progress progress.Model
	theme    Theme
	done     bool
	quitting bool
	err      error
}

func newProgressModel(taskID string, fetch taskFetcher, onStop func()) progressModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)

	return progressModel{
		fetch:    fetch,
		onStop:   onStop,
		taskID:   taskID,
		progress: prog,
		theme:    defaultTheme,
	}
}

// Init returns the initial command (fetch right away, then poll).
func (m progressModel) Init() tea.Cmd {
	return tea.Batch(
		m.fetchTask(),
		m.progress.Init(),
	)
}

// Update handles messages and returns the updated model.
func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			if m.onStop != nil {
				m.onStop()
			}
			return m, tea.Quit
		}

	case tickMsg:
		return m, m.fetchTask()

	case taskUpdateMsg:
		if msg.err != nil {
			m.err = fmt.Errorf("failed to fetch task: %w", msg.err)
			m.done = true
			return m, tea.Quit
		}
		if msg.task == nil {
			m.err = fmt.Errorf("task not found: %s", m.taskID)
			m.done = true
			return m, tea.Quit
		}

		m.task = msg.task

		switch m.task.Status {
		case models.TaskStatusDone:
			m.done = true
			return m, tea.Quit
		case models.TaskStatusFailed:
			m.done = true
			if m.task.Error != nil {
				m.err = fmt.Errorf("%s", *m.task.Error)
			} else {
				m.err = fmt.Errorf("task failed with unknown error")
			}
			return m, tea.Quit
		}

		return m, tickCmd()

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
	if m.done || m.quitting {
		return m.finalView()
	}

	if m.task == nil {
		return "Loading task status...\n"
	}

	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", m.task.Status))
	bar := m.progress.ViewAs(m.task.Progress)

	counts := ""
	if cp := m.task.Checkpoint; cp != nil && cp.TotalGroups > 0 {
		counts = fmt.Sprintf("%d/%d groups", m.task.ProcessedItems, cp.TotalGroups)
		if cp.Stats != nil {
			counts += fmt.Sprintf(" · %d posts · %d comments", cp.Stats.Posts, cp.Stats.Comments)
		}
	}

	hint := m.theme.hintStyle().Render("Press Ctrl+C to stop after the current group")
	if m.onStop == nil {
		hint = m.theme.hintStyle().Render("Press Ctrl+C to stop watching")
	}

	return fmt.Sprintf("%s %s %s\n%s\n", status, bar, counts, hint)
}

func (m progressModel) finalView() string {
	if m.quitting {
		if m.onStop != nil {
			return m.theme.hintStyle().Render(fmt.Sprintf(
				"\nStopping task %s after the current group.\nResume it with 'wallharvest task run %s'.\n",
				m.taskID, m.taskID))
		}
		return m.theme.hintStyle().Render(fmt.Sprintf(
			"\nStopped watching task %s.\nUse 'wallharvest task show %s' to check status.\n",
			m.taskID, m.taskID))
	}

	if m.err != nil {
		return m.theme.errorStyle().Render(fmt.Sprintf("\n✗ Task failed: %s\n", m.err))
	}

	var b strings.Builder
	b.WriteString(m.theme.completedStyle().Render("✓ Completed") + "\n")
	if m.task != nil && m.task.Checkpoint != nil {
		cp := m.task.Checkpoint
		if cp.Stats != nil {
			fmt.Fprintf(&b, "\n  Groups:   %d\n", cp.Stats.Groups)
			fmt.Fprintf(&b, "  Posts:    %d\n", cp.Stats.Posts)
			fmt.Fprintf(&b, "  Comments: %d\n", cp.Stats.Comments)
			fmt.Fprintf(&b, "  Authors:  %d\n", cp.Stats.Authors)
		}
		if cp.SkippedGroupsMessage != "" {
			fmt.Fprintf(&b, "\n  %s\n", cp.SkippedGroupsMessage)
		}
		if len(cp.FailedGroups) > 0 {
			b.WriteString(m.theme.errorStyle().Render(fmt.Sprintf("\nFailed groups (%d):\n", len(cp.FailedGroups))))
			for _, fg := range cp.FailedGroups {
				fmt.Fprintf(&b, "  • %d %s: %s\n", fg.ExternalID, fg.Name, fg.Error)
			}
		}
	}
	return b.String()
}

// fetchTask polls the task row. Runs as a command to avoid blocking Update().
func (m progressModel) fetchTask() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		task, err := m.fetch(ctx, m.taskID)
		return taskUpdateMsg{task: task, err: err}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// RunTaskProgress runs the interactive progress UI for a task until it
// reaches a terminal status or the user presses Ctrl+C. onStop, if set, is
// called on Ctrl+C. Returns an error when the task failed.
func RunTaskProgress(taskID string, fetch taskFetcher, onStop func()) error {
	p := tea.NewProgram(newProgressModel(taskID, fetch, onStop))

	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("progress UI error: %w", err)
	}

	if m, ok := finalModel.(progressModel); ok {
		if m.quitting {
			return nil
		}
		if m.err != nil {
			return m.err
		}
	}

	return nil
}
