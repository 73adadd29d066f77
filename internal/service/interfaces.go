package service

import (
	"context"

	"github.com/raphaelgruber/wallharvest/internal/events"
	"github.com/raphaelgruber/wallharvest/internal/models"
)

// TaskStore reads and patches task rows.
type TaskStore interface {
	// FindTask returns nil, nil when the task does not exist.
	FindTask(ctx context.Context, id string) (*models.Task, error)
	// UpdateTask returns nil, nil when the task does not exist.
	UpdateTask(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, error)
}

// GroupResolver turns a task's scope and id list into groups. It returns
// ErrGroupsNotFound or ErrBadGroupRequest for soft failures.
type GroupResolver interface {
	ResolveGroups(ctx context.Context, scope models.TaskScope, ids []int64) ([]models.Group, error)
}

// EventPublisher delivers task lifecycle events.
type EventPublisher = events.Publisher

// WallFetcher reads a group's posts and the comment tree of one post.
type WallFetcher interface {
	FetchPosts(ctx context.Context, group models.Group, limit int) ([]models.Post, error)
	FetchComments(ctx context.Context, group models.Group, post models.Post) ([]models.Comment, error)
}

// KeywordSource lists the keywords eligible for matching.
type KeywordSource interface {
	ListKeywordCandidates(ctx context.Context) ([]models.Keyword, error)
}

// RecordStore persists posts and comments.
type RecordStore interface {
	UpsertPost(ctx context.Context, post *models.Post, opts models.SaveOptions) error
	UpsertComment(ctx context.Context, comment *models.Comment, opts models.SaveOptions) error
	// GetPostText returns false when the post is not stored.
	GetPostText(ctx context.Context, ownerID, postID int64) (string, bool, error)
	ListCommentKeys(ctx context.Context, ownerID, postID int64) ([]string, error)
}

// MatchStore reads match rows and applies diffs transactionally.
type MatchStore interface {
	ListMatches(ctx context.Context, kind models.RecordKind, keys []string, source models.MatchSource) ([]models.KeywordMatch, error)
	// ApplyMatchDiff deletes then creates rows in one transaction, ignoring
	// duplicate creates.
	ApplyMatchDiff(ctx context.Context, diff models.MatchDiff) error
}
