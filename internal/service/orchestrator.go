package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/wallharvest/internal/events"
	"github.com/raphaelgruber/wallharvest/internal/metrics"
	"github.com/raphaelgruber/wallharvest/internal/models"
)

// msgNoGroups is the error recorded on a task whose group list resolved empty.
const msgNoGroups = "no groups available"

// GroupHandler processes one group of a task run.
type GroupHandler interface {
	Process(ctx context.Context, group models.Group, postLimit int, pctx *ProcessingContext, taskID string) bool
}

// Orchestrator runs a task over its groups, one group at a time,
// checkpointing after each so an interrupted run resumes where it stopped.
type Orchestrator struct {
	tasks     TaskStore
	resolver  GroupResolver
	groups    GroupHandler
	publisher EventPublisher
	cancels   *CancelRegistry
	metrics   metrics.Sink
	running   *keyLock
	logger    *slog.Logger
}

// OrchestratorDeps bundles the collaborators of an Orchestrator.
type OrchestratorDeps struct {
	Tasks     TaskStore
	Resolver  GroupResolver
	Groups    GroupHandler
	Publisher EventPublisher // optional
	Cancels   *CancelRegistry
	Metrics   metrics.Sink // optional
	Logger    *slog.Logger
}

// NewOrchestrator creates an orchestrator. A nil Cancels gets a private registry.
func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cancels := deps.Cancels
	if cancels == nil {
		cancels = NewCancelRegistry()
	}
	return &Orchestrator{
		tasks:     deps.Tasks,
		resolver:  deps.Resolver,
		groups:    deps.Groups,
		publisher: deps.Publisher,
		cancels:   cancels,
		metrics:   deps.Metrics,
		running:   newKeyLock(),
		logger:    logger.With("component", "orchestrator"),
	}
}

// Cancels returns the registry used to request cancellation by task id.
func (o *Orchestrator) Cancels() *CancelRegistry { return o.cancels }

// Execute runs the task with the given id. A missing task, a cancellation
// request or a cancelled ctx end the run without error; the task keeps its
// last checkpoint and can be executed again later. Only one Execute per task
// id may be active; a concurrent call gets ErrTaskAlreadyRunning.
func (o *Orchestrator) Execute(ctx context.Context, taskID string) error {
	unlock, ok := o.running.TryLock(taskID)
	if !ok {
		return ErrTaskAlreadyRunning
	}
	defer unlock()

	token := o.cancels.Acquire(taskID)
	defer o.cancels.Clear(taskID)

	log := o.logger.With("task_id", taskID)

	task, err := o.tasks.FindTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("find task: %w", err)
	}
	if task == nil {
		log.Warn("task not found, nothing to do")
		return nil
	}
	if task.Status == models.TaskStatusDone {
		log.Info("task already done")
		return nil
	}

	if err := stopRequested(ctx, token); err != nil {
		log.Info("task stopped before start", "reason", err)
		return nil
	}

	groups, err := o.resolver.ResolveGroups(ctx, task.Scope, task.GroupIDs)
	if err != nil {
		if !isSoftResolutionError(err) {
			return fmt.Errorf("resolve groups: %w", err)
		}
		log.Warn("group resolution returned no groups", "error", err)
		groups = nil
	}

	if len(groups) == 0 {
		o.markFailed(ctx, task, nil, msgNoGroups)
		return nil
	}

	pctx := NewProcessingContext(task.Checkpoint, len(groups), task.ProcessedItems)
	if err := o.persistRunning(ctx, task, pctx); err != nil {
		return o.fail(ctx, task, pctx, err)
	}

	o.publish(ctx, events.Started(taskID, pctx.TotalGroups, pctx.ProcessedGroups))
	log.Info("task started",
		"total_groups", pctx.TotalGroups,
		"processed_groups", pctx.ProcessedGroups)

	for pctx.NextGroupIndex < len(groups) {
		if err := stopRequested(ctx, token); err != nil {
			log.Info("task stopped", "reason", err, "processed_groups", pctx.ProcessedGroups)
			return nil
		}

		group := groups[pctx.NextGroupIndex]
		if o.groups.Process(ctx, group, task.PostLimit, pctx, taskID) {
			pctx.ProcessedGroups++
		} else if ctx.Err() != nil {
			// Interrupted mid-group; the group is retried on resume.
			log.Info("task stopped", "reason", ctx.Err(), "processed_groups", pctx.ProcessedGroups)
			return nil
		}
		// Failed groups are recorded in the checkpoint and not retried.
		pctx.NextGroupIndex++

		if err := o.persistRunning(ctx, task, pctx); err != nil {
			if ctx.Err() != nil {
				log.Info("task stopped", "reason", ctx.Err(), "processed_groups", pctx.ProcessedGroups)
				return nil
			}
			return o.fail(ctx, task, pctx, err)
		}
	}

	return o.complete(ctx, task, pctx)
}

func stopRequested(ctx context.Context, token *CancelToken) error {
	if err := token.Err(); err != nil {
		return err
	}
	return ctx.Err()
}

// persistRunning writes the current progress with status running. An error
// left by an earlier failed run is cleared.
func (o *Orchestrator) persistRunning(ctx context.Context, task *models.Task, pctx *ProcessingContext) error {
	status := models.TaskStatusRunning
	processed := pctx.ProcessedGroups
	progress := pctx.Progress()
	return o.update(ctx, task, models.TaskPatch{
		Status:         &status,
		ProcessedItems: &processed,
		Progress:       &progress,
		Checkpoint:     pctx.Checkpoint(task),
		ClearError:     true,
	})
}

func (o *Orchestrator) complete(ctx context.Context, task *models.Task, pctx *ProcessingContext) error {
	taskID := task.TaskID()
	status := models.TaskStatusDone
	total := pctx.TotalGroups
	progress := 1.0
	if err := o.update(ctx, task, models.TaskPatch{
		Status:         &status,
		ProcessedItems: &total,
		Progress:       &progress,
		Checkpoint:     pctx.Checkpoint(task),
	}); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return o.fail(ctx, task, pctx, err)
	}

	o.publish(ctx, events.Completed(taskID, total, pctx.Stats, pctx.SkippedGroupIDs))
	o.recordOutcome(ctx, models.TaskStatusDone)
	o.logger.Info("task completed",
		"task_id", taskID,
		"groups", pctx.Stats.Groups,
		"posts", pctx.Stats.Posts,
		"comments", pctx.Stats.Comments,
		"authors", pctx.Stats.Authors,
		"skipped", len(pctx.SkippedGroupIDs),
		"failed", len(pctx.FailedGroups))
	return nil
}

// fail records cause on the task with the partial checkpoint and returns it.
func (o *Orchestrator) fail(ctx context.Context, task *models.Task, pctx *ProcessingContext, cause error) error {
	o.markFailed(ctx, task, pctx, cause.Error())
	return cause
}

func (o *Orchestrator) markFailed(ctx context.Context, task *models.Task, pctx *ProcessingContext, msg string) {
	taskID := task.TaskID()
	status := models.TaskStatusFailed
	patch := models.TaskPatch{Status: &status, Error: &msg}
	if pctx != nil {
		patch.Checkpoint = pctx.Checkpoint(task)
	}

	// The failure must be recorded even when the run's ctx is the reason.
	if err := o.update(context.WithoutCancel(ctx), task, patch); err != nil {
		o.logger.Error("failed to record task failure", "task_id", taskID, "error", err)
	}

	o.publish(ctx, events.Failed(taskID, msg))
	o.recordOutcome(ctx, models.TaskStatusFailed)
	o.logger.Error("task failed", "task_id", taskID, "error", msg)
}

func (o *Orchestrator) update(ctx context.Context, task *models.Task, patch models.TaskPatch) error {
	updated, err := o.tasks.UpdateTask(ctx, task.TaskID(), patch)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if updated == nil {
		return ErrTaskVanished
	}
	return nil
}

func (o *Orchestrator) publish(ctx context.Context, event events.Event) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		o.logger.Warn("event publish failed", "type", event.Type, "task_id", event.TaskID, "error", err)
	}
}

func (o *Orchestrator) recordOutcome(ctx context.Context, status models.TaskStatus) {
	if o.metrics != nil {
		o.metrics.RecordTaskOutcome(ctx, status)
	}
}

// IsCancellation reports whether err is a stop signal rather than a failure.
func IsCancellation(err error) bool {
	return errors.Is(err, ErrTaskCancelled) || errors.Is(err, context.Canceled)
}
