package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/surrealdb/surrealdb.go"

	"github.com/raphaelgruber/wallharvest/internal/models"
)

// CreateTask inserts a new pending task with a generated id.
func (c *Client) CreateTask(ctx context.Context, input models.TaskInput) (*models.Task, error) {
	groupIDs := input.GroupIDs
	if groupIDs == nil {
		groupIDs = []int64{}
	}

	results, err := surrealdb.Query[[]models.Task](ctx, c.db, `
		CREATE type::record("task", $id) SET
			scope = $scope,
			group_ids = $group_ids,
			post_limit = $post_limit,
			status = $status,
			processed_items = 0,
			progress = 0.0
		RETURN AFTER
	`, map[string]any{
		"id":         uuid.New().String(),
		"scope":      string(input.Scope),
		"group_ids":  groupIDs,
		"post_limit": input.PostLimit,
		"status":     string(models.TaskStatusPending),
	})
	if err != nil {
		return nil, fmt.Errorf("create task: %w", wrapQueryError(err))
	}

	tasks := firstResult(results)
	if len(tasks) == 0 {
		return nil, fmt.Errorf("create task: no result returned")
	}
	return &tasks[0], nil
}

// FindTask retrieves a task by id. Returns nil if not found.
func (c *Client) FindTask(ctx context.Context, id string) (*models.Task, error) {
	results, err := surrealdb.Query[[]models.Task](ctx, c.db, `
		SELECT * FROM type::record("task", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("find task: %w", err)
	}

	tasks := firstResult(results)
	if len(tasks) == 0 {
		return nil, nil
	}
	if tasks[0].Checkpoint != nil {
		tasks[0].Checkpoint.Upgrade()
	}
	return &tasks[0], nil
}

// UpdateTask applies the non-nil fields of patch to an existing task.
// Returns nil if the task does not exist; UPDATE never creates a row.
func (c *Client) UpdateTask(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, error) {
	sets, vars := taskPatchClauses(patch)
	vars["id"] = id
	if len(sets) == 0 {
		return c.FindTask(ctx, id)
	}

	sql := fmt.Sprintf(`UPDATE type::record("task", $id) SET %s RETURN AFTER`, strings.Join(sets, ", "))
	results, err := surrealdb.Query[[]models.Task](ctx, c.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", wrapQueryError(err))
	}

	tasks := firstResult(results)
	if len(tasks) == 0 {
		return nil, nil
	}
	if tasks[0].Checkpoint != nil {
		tasks[0].Checkpoint.Upgrade()
	}
	return &tasks[0], nil
}

// taskPatchClauses builds SET clauses and bind vars for the set fields of patch.
func taskPatchClauses(patch models.TaskPatch) ([]string, map[string]any) {
	var sets []string
	vars := map[string]any{}
	if patch.Status != nil {
		sets = append(sets, "status = $status")
		vars["status"] = string(*patch.Status)
	}
	if patch.ProcessedItems != nil {
		sets = append(sets, "processed_items = $processed_items")
		vars["processed_items"] = *patch.ProcessedItems
	}
	if patch.Progress != nil {
		sets = append(sets, "progress = $progress")
		vars["progress"] = *patch.Progress
	}
	if patch.Checkpoint != nil {
		sets = append(sets, "checkpoint = $checkpoint")
		vars["checkpoint"] = patch.Checkpoint
	}
	if patch.Error != nil {
		sets = append(sets, "error = $error")
		vars["error"] = *patch.Error
	} else if patch.ClearError {
		sets = append(sets, "error = NONE")
	}
	return sets, vars
}

// ListTasks returns tasks, most recent first.
func (c *Client) ListTasks(ctx context.Context, limit int) ([]models.Task, error) {
	results, err := surrealdb.Query[[]models.Task](ctx, c.db, `
		SELECT * FROM task ORDER BY created_at DESC LIMIT $limit
	`, map[string]any{"limit": limit})
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return firstResult(results), nil
}

// ListIncompleteTasks returns tasks that were never finished, oldest first.
func (c *Client) ListIncompleteTasks(ctx context.Context) ([]models.Task, error) {
	results, err := surrealdb.Query[[]models.Task](ctx, c.db, `
		SELECT * FROM task WHERE status IN $statuses ORDER BY created_at ASC
	`, map[string]any{
		"statuses": []string{string(models.TaskStatusPending), string(models.TaskStatusRunning)},
	})
	if err != nil {
		return nil, fmt.Errorf("list incomplete tasks: %w", err)
	}
	return firstResult(results), nil
}
