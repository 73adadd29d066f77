// Package events publishes task lifecycle events to logs and Kafka.
package events

import (
	"context"
	"time"

	"github.com/raphaelgruber/wallharvest/internal/models"
)

// Type identifies a task lifecycle event.
type Type string

const (
	TypeStarted   Type = "task.started"
	TypeCompleted Type = "task.completed"
	TypeFailed    Type = "task.failed"
)

// Event is a task lifecycle notification. Delivery is best effort.
type Event struct {
	Type            Type              `json:"type"`
	TaskID          string            `json:"task_id"`
	OccurredAt      time.Time         `json:"occurred_at"`
	TotalGroups     int               `json:"total_groups,omitempty"`
	ProcessedGroups int               `json:"processed_groups,omitempty"`
	Stats           *models.TaskStats `json:"stats,omitempty"`
	SkippedGroupIDs []int64           `json:"skipped_group_ids,omitempty"`
	Error           string            `json:"error,omitempty"`
}

// Started builds the event emitted once a run begins iterating groups.
func Started(taskID string, total, processed int) Event {
	return Event{
		Type:            TypeStarted,
		TaskID:          taskID,
		OccurredAt:      time.Now().UTC(),
		TotalGroups:     total,
		ProcessedGroups: processed,
	}
}

// Completed builds the event emitted when every group has been handled.
func Completed(taskID string, total int, stats models.TaskStats, skipped []int64) Event {
	return Event{
		Type:            TypeCompleted,
		TaskID:          taskID,
		OccurredAt:      time.Now().UTC(),
		TotalGroups:     total,
		ProcessedGroups: total,
		Stats:           &stats,
		SkippedGroupIDs: skipped,
	}
}

// Failed builds the event emitted when a task ends in the failed state.
func Failed(taskID string, msg string) Event {
	return Event{
		Type:       TypeFailed,
		TaskID:     taskID,
		OccurredAt: time.Now().UTC(),
		Error:      msg,
	}
}

// Publisher delivers events. Callers log publish errors and move on.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Multi fans one event out to several publishers. Every publisher is tried;
// the first error is returned.
type Multi []Publisher

// Publish implements Publisher.
func (m Multi) Publish(ctx context.Context, event Event) error {
	var first error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}
