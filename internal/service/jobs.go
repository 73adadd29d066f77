// Package service implements the resumable ingestion pipeline: task
// orchestration, group processing, record ingestion and keyword match sync.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/raphaelgruber/wallharvest/internal/models"
)

// IncompleteTaskLister finds tasks left pending or running by a previous process.
type IncompleteTaskLister interface {
	ListIncompleteTasks(ctx context.Context) ([]models.Task, error)
}

// RunStatus represents the state of a background run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusFinished RunStatus = "finished"
	RunStatusFailed   RunStatus = "failed"
)

// Run tracks one background Execute call.
type Run struct {
	TaskID     string
	Status     RunStatus
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time

	mu   sync.RWMutex
	done chan struct{}
}

// Done is closed when the run ends.
func (r *Run) Done() <-chan struct{} { return r.done }

// Snapshot returns a thread-safe copy of run state.
func (r *Run) Snapshot() Run {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Run{
		TaskID:     r.TaskID,
		Status:     r.Status,
		Error:      r.Error,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
}

func (r *Run) finish(err error) {
	r.mu.Lock()
	now := time.Now()
	r.FinishedAt = &now
	r.Status = RunStatusFinished
	if err != nil {
		r.Status = RunStatusFailed
		r.Error = err.Error()
	}
	r.mu.Unlock()
	close(r.done)
}

// TaskManager runs tasks in the background, at most one run per task id.
type TaskManager struct {
	orchestrator *Orchestrator
	tasks        TaskStore
	lister       IncompleteTaskLister
	runs         map[string]*Run
	mu           sync.RWMutex
	wg           sync.WaitGroup
	logger       *slog.Logger
}

// NewTaskManager creates a task manager. lister may be nil when resume is
// not needed.
func NewTaskManager(orchestrator *Orchestrator, tasks TaskStore, lister IncompleteTaskLister, logger *slog.Logger) *TaskManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskManager{
		orchestrator: orchestrator,
		tasks:        tasks,
		lister:       lister,
		runs:         make(map[string]*Run),
		logger:       logger.With("component", "task_manager"),
	}
}

// Start executes taskID in a new goroutine. The run stops when ctx is
// cancelled and leaves the task resumable.
func (m *TaskManager) Start(ctx context.Context, taskID string) (*Run, error) {
	m.mu.Lock()
	if r, ok := m.runs[taskID]; ok && r.Snapshot().Status == RunStatusRunning {
		m.mu.Unlock()
		return nil, ErrTaskAlreadyRunning
	}
	run := &Run{
		TaskID:    taskID,
		Status:    RunStatusRunning,
		StartedAt: time.Now(),
		done:      make(chan struct{}),
	}
	m.runs[taskID] = run
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		var err error
		defer func() {
			if r := recover(); r != nil {
				m.logger.Error("task goroutine panicked", "task_id", taskID, "panic", r)
				err = fmt.Errorf("internal panic: %v", r)
				m.recordPanic(ctx, taskID, err)
			}
			run.finish(err)
		}()

		err = m.orchestrator.Execute(ctx, taskID)
		if err != nil {
			m.logger.Error("task run ended with error", "task_id", taskID, "error", err)
		}
	}()

	m.logger.Info("task run started", "task_id", taskID)
	return run, nil
}

// recordPanic marks the task failed after its executor panicked.
func (m *TaskManager) recordPanic(ctx context.Context, taskID string, cause error) {
	status := models.TaskStatusFailed
	msg := cause.Error()
	if _, err := m.tasks.UpdateTask(context.WithoutCancel(ctx), taskID, models.TaskPatch{Status: &status, Error: &msg}); err != nil {
		m.logger.Warn("failed to persist task failure", "task_id", taskID, "error", err)
	}
}

// Cancel asks the run of taskID to stop before its next group. It may be
// called before the run starts.
func (m *TaskManager) Cancel(taskID string) {
	m.orchestrator.Cancels().Request(taskID)
	m.logger.Info("task cancellation requested", "task_id", taskID)
}

// GetRun returns the latest run of taskID, or nil.
func (m *TaskManager) GetRun(taskID string) *Run {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.runs[taskID]
}

// ListRuns returns all runs, most recent first.
func (m *TaskManager) ListRuns() []*Run {
	m.mu.RLock()
	defer m.mu.RUnlock()

	runs := make([]*Run, 0, len(m.runs))
	for _, r := range m.runs {
		runs = append(runs, r)
	}
	slices.SortFunc(runs, func(a, b *Run) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	return runs
}

// Wait blocks until every started run has ended.
func (m *TaskManager) Wait() {
	m.wg.Wait()
}

// ResumeIncomplete starts a run for every task left pending or running and
// returns how many were started.
func (m *TaskManager) ResumeIncomplete(ctx context.Context) (int, error) {
	if m.lister == nil {
		return 0, nil
	}

	tasks, err := m.lister.ListIncompleteTasks(ctx)
	if err != nil {
		return 0, fmt.Errorf("list incomplete tasks: %w", err)
	}
	if len(tasks) == 0 {
		m.logger.Info("no incomplete tasks to resume")
		return 0, nil
	}

	m.logger.Info("found incomplete tasks", "count", len(tasks))

	started := 0
	for i := range tasks {
		taskID, err := models.RecordIDString(tasks[i].ID)
		if err != nil {
			m.logger.Warn("failed to get task ID", "error", err)
			continue
		}
		if _, err := m.Start(ctx, taskID); err != nil {
			m.logger.Warn("failed to resume task", "task_id", taskID, "error", err)
			continue
		}
		m.logger.Info("resuming task",
			"task_id", taskID,
			"status", tasks[i].Status,
			"processed", tasks[i].ProcessedItems)
		started++
	}
	return started, nil
}
