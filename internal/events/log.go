package events

import (
	"context"
	"log/slog"
)

// LogPublisher writes events to a structured logger.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a publisher that logs every event at info level.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger.With("component", "events")}
}

// Publish implements Publisher.
func (p *LogPublisher) Publish(ctx context.Context, event Event) error {
	attrs := []any{"type", event.Type, "task_id", event.TaskID}
	if event.TotalGroups > 0 {
		attrs = append(attrs, "total_groups", event.TotalGroups, "processed_groups", event.ProcessedGroups)
	}
	if event.Stats != nil {
		attrs = append(attrs,
			"groups", event.Stats.Groups,
			"posts", event.Stats.Posts,
			"comments", event.Stats.Comments,
			"authors", event.Stats.Authors)
	}
	if len(event.SkippedGroupIDs) > 0 {
		attrs = append(attrs, "skipped", event.SkippedGroupIDs)
	}
	if event.Error != "" {
		p.logger.WarnContext(ctx, "task event", append(attrs, "error", event.Error)...)
		return nil
	}
	p.logger.InfoContext(ctx, "task event", attrs...)
	return nil
}
