package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/wallharvest/internal/matcher"
	"github.com/raphaelgruber/wallharvest/internal/models"
)

// IngestService upserts posts and comment trees and keeps the keyword match
// index in step with every saved record.
type IngestService struct {
	records RecordStore
	sync    *MatchSynchronizer
	logger  *slog.Logger
}

// NewIngestService creates a new ingest service.
func NewIngestService(records RecordStore, sync *MatchSynchronizer, logger *slog.Logger) *IngestService {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestService{
		records: records,
		sync:    sync,
		logger:  logger.With("component", "ingest"),
	}
}

// SaveResult summarizes one save call.
type SaveResult struct {
	// Saved is the number of records written, nested thread items included.
	Saved int
	// AuthorIDs lists the author of every saved record, in save order.
	AuthorIDs []int64
}

// SavePost upserts a post and syncs its OWN matches. Match sync failures
// are logged and do not fail the save.
func (s *IngestService) SavePost(ctx context.Context, post *models.Post, opts models.SaveOptions) (SaveResult, error) {
	if err := s.records.UpsertPost(ctx, post, opts); err != nil {
		return SaveResult{}, fmt.Errorf("save post %s: %w", post.Key(), err)
	}

	if set := s.loadKeywords(ctx); set != nil {
		ref := models.RecordRef{Kind: models.KindPost, Key: post.Key()}
		if _, err := s.sync.SyncOwn(ctx, set, ref, post.Text); err != nil {
			s.logger.Warn("own match sync failed", "record", ref.Key, "error", err)
		}
	}

	return SaveResult{Saved: 1, AuthorIDs: []int64{post.FromID}}, nil
}

// SaveComments upserts comment trees. Nested threads are walked with an
// explicit stack, parents before children, so depth is bounded only by
// memory. Each saved comment gets an OWN sync and a PARENT sync of its post.
// The keyword set is loaded once for the whole call.
func (s *IngestService) SaveComments(ctx context.Context, comments []models.Comment, opts models.SaveOptions) (SaveResult, error) {
	var result SaveResult
	if len(comments) == 0 {
		return result, nil
	}

	set := s.loadKeywords(ctx)

	stack := make([]*models.Comment, 0, len(comments))
	for i := len(comments) - 1; i >= 0; i-- {
		stack = append(stack, &comments[i])
	}

	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		// Thread items inherit the location of their root.
		for i := range c.Thread {
			if c.Thread[i].OwnerID == 0 {
				c.Thread[i].OwnerID = c.OwnerID
			}
			if c.Thread[i].PostID == 0 {
				c.Thread[i].PostID = c.PostID
			}
		}

		if err := s.records.UpsertComment(ctx, c, opts); err != nil {
			return result, fmt.Errorf("save comment %s: %w", c.Key(), err)
		}
		result.Saved++
		result.AuthorIDs = append(result.AuthorIDs, c.FromID)

		if set != nil {
			s.syncComment(ctx, set, c)
		}

		for i := len(c.Thread) - 1; i >= 0; i-- {
			stack = append(stack, &c.Thread[i])
		}
	}

	return result, nil
}

func (s *IngestService) syncComment(ctx context.Context, set *matcher.Set, c *models.Comment) {
	ref := models.RecordRef{Kind: models.KindComment, Key: c.Key()}
	if _, err := s.sync.SyncOwn(ctx, set, ref, c.Text); err != nil {
		s.logger.Warn("own match sync failed", "record", ref.Key, "error", err)
	}
	if _, err := s.sync.SyncParent(ctx, set, c.OwnerID, c.PostID); err != nil {
		s.logger.Warn("parent match sync failed", "record", ref.Key, "post", c.PostKey(), "error", err)
	}
}

// loadKeywords returns nil when keywords cannot be loaded; ingestion then
// proceeds without touching the match index.
func (s *IngestService) loadKeywords(ctx context.Context) *matcher.Set {
	if s.sync == nil {
		return nil
	}
	set, err := s.sync.LoadKeywords(ctx)
	if err != nil {
		s.logger.Warn("keyword load failed, skipping match sync", "error", err)
		return nil
	}
	return set
}
