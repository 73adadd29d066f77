// Package models defines data structures for the wallharvest ingestion database.
package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// TaskStatus represents the lifecycle state of a collection task.
type TaskStatus string

const (
	TaskStatusPending TaskStatus = "pending"
	TaskStatusRunning TaskStatus = "running"
	TaskStatusDone    TaskStatus = "done"
	TaskStatusFailed  TaskStatus = "failed"
)

// IsTerminal reports whether no further executor should pick the task up.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusDone || s == TaskStatusFailed
}

// TaskScope selects which groups a task collects from.
type TaskScope string

const (
	ScopeAll      TaskScope = "ALL"
	ScopeSelected TaskScope = "SELECTED"
)

// Task is one execution of the ingestion pipeline over a list of groups.
type Task struct {
	ID             surrealmodels.RecordID `json:"id"`
	Scope          TaskScope              `json:"scope"`
	GroupIDs       []int64                `json:"group_ids"`
	PostLimit      int                    `json:"post_limit"`
	Status         TaskStatus             `json:"status"`
	ProcessedItems int                    `json:"processed_items"`
	Progress       float64                `json:"progress"`
	Checkpoint     *Checkpoint            `json:"checkpoint,omitempty"`
	Error          *string                `json:"error,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

// TaskID returns the string part of the task record id, or "" if it is not a string.
func (t *Task) TaskID() string {
	id, err := RecordIDString(t.ID)
	if err != nil {
		return ""
	}
	return id
}

// TaskInput is the input structure for creating tasks.
type TaskInput struct {
	Scope     TaskScope `json:"scope"`
	GroupIDs  []int64   `json:"group_ids"`
	PostLimit int       `json:"post_limit"`
}

// TaskPatch lists the task fields the orchestrator may overwrite.
// Nil fields are left untouched.
type TaskPatch struct {
	Status         *TaskStatus `json:"status,omitempty"`
	ProcessedItems *int        `json:"processed_items,omitempty"`
	Progress       *float64    `json:"progress,omitempty"`
	Checkpoint     *Checkpoint `json:"checkpoint,omitempty"`
	Error          *string     `json:"error,omitempty"`
	// ClearError removes a stored error. Ignored when Error is set.
	ClearError bool `json:"-"`
}
