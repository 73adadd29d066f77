package db

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"

	"github.com/raphaelgruber/wallharvest/internal/models"
)

// UpsertPost creates or rewrites a post keyed by (owner_id, post_id).
// Scalar and payload fields are overwritten on every call; source and
// external_ref are only stamped on create.
func (c *Client) UpsertPost(ctx context.Context, post *models.Post, opts models.SaveOptions) error {
	attachments := post.Attachments
	if attachments == nil {
		attachments = []models.Attachment{}
	}
	copyHistory := post.CopyHistory
	if copyHistory == nil {
		copyHistory = []models.Post{}
	}

	_, err := surrealdb.Query[any](ctx, c.db, `
		UPSERT type::record("post", $key) SET
			key = $key,
			owner_id = $owner_id,
			post_id = $post_id,
			from_id = $from_id,
			text = $text,
			date = $date,
			attachments = $attachments,
			copy_history = $copy_history,
			is_deleted = $is_deleted,
			source = IF source THEN source ELSE $source END,
			external_ref = IF external_ref THEN external_ref ELSE $external_ref END,
			created_at = IF created_at THEN created_at ELSE time::now() END,
			updated_at = time::now()
		RETURN NONE
	`, map[string]any{
		"key":          post.Key(),
		"owner_id":     post.OwnerID,
		"post_id":      post.PostID,
		"from_id":      post.FromID,
		"text":         post.Text,
		"date":         post.Date,
		"attachments":  attachments,
		"copy_history": copyHistory,
		"is_deleted":   post.IsDeleted,
		"source":       opts.Source,
		"external_ref": opts.ExternalRef,
	})
	if err != nil {
		return fmt.Errorf("upsert post: %w", wrapQueryError(err))
	}
	return nil
}

// UpsertComment creates or rewrites one comment keyed by (owner_id, comment_id).
// Nested thread items are not stored inline; only their keys are kept so the
// row reflects the latest thread shape. Children are upserted separately.
func (c *Client) UpsertComment(ctx context.Context, comment *models.Comment, opts models.SaveOptions) error {
	attachments := comment.Attachments
	if attachments == nil {
		attachments = []models.Attachment{}
	}
	parents := comment.ParentsStack
	if parents == nil {
		parents = []int64{}
	}
	threadKeys := make([]string, len(comment.Thread))
	for i := range comment.Thread {
		threadKeys[i] = comment.Thread[i].Key()
	}

	_, err := surrealdb.Query[any](ctx, c.db, `
		UPSERT type::record("comment", $key) SET
			key = $key,
			owner_id = $owner_id,
			comment_id = $comment_id,
			post_id = $post_id,
			post_key = $post_key,
			from_id = $from_id,
			text = $text,
			date = $date,
			attachments = $attachments,
			parents_stack = $parents_stack,
			reply_to_user = $reply_to_user,
			reply_to_comment = $reply_to_comment,
			thread = $thread,
			thread_count = $thread_count,
			is_deleted = $is_deleted,
			source = IF source THEN source ELSE $source END,
			external_ref = IF external_ref THEN external_ref ELSE $external_ref END,
			created_at = IF created_at THEN created_at ELSE time::now() END,
			updated_at = time::now()
		RETURN NONE
	`, map[string]any{
		"key":              comment.Key(),
		"owner_id":         comment.OwnerID,
		"comment_id":       comment.CommentID,
		"post_id":          comment.PostID,
		"post_key":         comment.PostKey(),
		"from_id":          comment.FromID,
		"text":             comment.Text,
		"date":             comment.Date,
		"attachments":      attachments,
		"parents_stack":    parents,
		"reply_to_user":    comment.ReplyToUser,
		"reply_to_comment": comment.ReplyToComment,
		"thread":           threadKeys,
		"thread_count":     len(threadKeys),
		"is_deleted":       comment.IsDeleted,
		"source":           opts.Source,
		"external_ref":     opts.ExternalRef,
	})
	if err != nil {
		return fmt.Errorf("upsert comment: %w", wrapQueryError(err))
	}
	return nil
}

// GetPostText returns the stored text of a post and whether the post exists.
func (c *Client) GetPostText(ctx context.Context, ownerID, postID int64) (string, bool, error) {
	results, err := surrealdb.Query[[]struct {
		Text string `json:"text"`
	}](ctx, c.db, `
		SELECT text FROM type::record("post", $key)
	`, map[string]any{"key": models.RecordKey(ownerID, postID)})
	if err != nil {
		return "", false, fmt.Errorf("get post text: %w", err)
	}

	rows := firstResult(results)
	if len(rows) == 0 {
		return "", false, nil
	}
	return rows[0].Text, true, nil
}

// ListCommentKeys returns the keys of every stored comment under a post.
func (c *Client) ListCommentKeys(ctx context.Context, ownerID, postID int64) ([]string, error) {
	results, err := surrealdb.Query[[]string](ctx, c.db, `
		SELECT VALUE key FROM comment WHERE owner_id = $owner_id AND post_id = $post_id
	`, map[string]any{"owner_id": ownerID, "post_id": postID})
	if err != nil {
		return nil, fmt.Errorf("list comment keys: %w", err)
	}
	return firstResult(results), nil
}
