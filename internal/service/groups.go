package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/raphaelgruber/wallharvest/internal/metrics"
	"github.com/raphaelgruber/wallharvest/internal/models"
)

// ProcessingContext is the mutable progress state of one task run. It is
// rehydrated from the checkpoint and written back after every group.
type ProcessingContext struct {
	TotalGroups     int
	ProcessedGroups int
	// NextGroupIndex is where a resumed run continues in the group list.
	NextGroupIndex  int
	Stats           models.TaskStats
	SkippedGroupIDs []int64
	FailedGroups    []models.FailedGroup

	authors map[int64]struct{}
}

// NewProcessingContext rehydrates progress for a run over totalGroups
// groups. cp may be nil; fallbackProcessed is used when the checkpoint
// predates the processedGroups field.
func NewProcessingContext(cp *models.Checkpoint, totalGroups, fallbackProcessed int) *ProcessingContext {
	pctx := &ProcessingContext{
		TotalGroups:     totalGroups,
		SkippedGroupIDs: []int64{},
		FailedGroups:    []models.FailedGroup{},
		authors:         make(map[int64]struct{}),
	}

	processed := fallbackProcessed
	next := -1
	if cp != nil {
		if cp.ProcessedGroups != nil {
			processed = *cp.ProcessedGroups
		}
		if cp.NextGroupIndex != nil {
			next = *cp.NextGroupIndex
		}
		pctx.SkippedGroupIDs = models.DedupIDs(cp.SkippedGroupIDs)
		if cp.FailedGroups != nil {
			pctx.FailedGroups = slices.Clone(cp.FailedGroups)
		}
	}
	pctx.ProcessedGroups = min(max(processed, 0), totalGroups)
	if next < 0 {
		next = pctx.ProcessedGroups
	}
	pctx.NextGroupIndex = min(next, totalGroups)

	if cp != nil && cp.Stats != nil {
		pctx.Stats = *cp.Stats
	} else {
		pctx.Stats.Groups = max(0, totalGroups-len(pctx.SkippedGroupIDs))
	}
	return pctx
}

// Progress returns processed/total clamped to [0,1].
func (p *ProcessingContext) Progress() float64 {
	if p.TotalGroups <= 0 {
		return 0
	}
	return min(1, float64(p.ProcessedGroups)/float64(p.TotalGroups))
}

// Checkpoint renders the persisted form of the context for task.
func (p *ProcessingContext) Checkpoint(task *models.Task) *models.Checkpoint {
	processed := p.ProcessedGroups
	next := p.NextGroupIndex
	stats := p.Stats
	groupIDs := task.GroupIDs
	if groupIDs == nil {
		groupIDs = []int64{}
	}
	return &models.Checkpoint{
		Version:              models.CheckpointVersion,
		Scope:                task.Scope,
		GroupIDs:             groupIDs,
		PostLimit:            task.PostLimit,
		TotalGroups:          p.TotalGroups,
		ProcessedGroups:      &processed,
		NextGroupIndex:       &next,
		Stats:                &stats,
		SkippedGroupIDs:      slices.Clone(p.SkippedGroupIDs),
		SkippedGroupsMessage: models.SkippedSummary(p.SkippedGroupIDs),
		FailedGroups:         slices.Clone(p.FailedGroups),
	}
}

func (p *ProcessingContext) addSkipped(id int64) {
	if !slices.Contains(p.SkippedGroupIDs, id) {
		p.SkippedGroupIDs = append(p.SkippedGroupIDs, id)
	}
	p.Stats.Groups = max(0, p.TotalGroups-len(p.SkippedGroupIDs))
}

func (p *ProcessingContext) addAuthors(ids []int64) {
	if p.authors == nil {
		p.authors = make(map[int64]struct{})
	}
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, seen := p.authors[id]; !seen {
			p.authors[id] = struct{}{}
			p.Stats.Authors++
		}
	}
}

// GroupProcessor fetches one group's wall and feeds it to the ingest
// service. It never lets a group's own failure escape.
type GroupProcessor struct {
	fetcher WallFetcher
	ingest  *IngestService
	opts    models.SaveOptions
	metrics metrics.Sink
	logger  *slog.Logger
}

// NewGroupProcessor creates a group processor. metricsSink may be nil.
func NewGroupProcessor(fetcher WallFetcher, ingest *IngestService, opts models.SaveOptions, metricsSink metrics.Sink, logger *slog.Logger) *GroupProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &GroupProcessor{
		fetcher: fetcher,
		ingest:  ingest,
		opts:    opts,
		metrics: metricsSink,
		logger:  logger.With("component", "group_processor"),
	}
}

// Process handles one group and reports whether the run may count it as
// processed. A disabled wall is skipped and counts. A fetch or ingest error
// is recorded into pctx.FailedGroups and does not count.
func (g *GroupProcessor) Process(ctx context.Context, group models.Group, postLimit int, pctx *ProcessingContext, taskID string) bool {
	log := g.logger.With("task_id", taskID, "group", group.ExternalID)

	if !group.WallEnabled {
		pctx.addSkipped(group.ExternalID)
		log.Info("wall disabled, skipping group", "name", group.Name)
		return true
	}

	start := time.Now()
	posts, comments, err := g.collect(ctx, group, postLimit, pctx)
	if g.metrics != nil {
		g.metrics.RecordTiming(metrics.OpGroup, time.Since(start))
	}
	if err != nil {
		if ctx.Err() != nil {
			// Shutdown, not a group failure. The group is retried on resume.
			log.Info("group interrupted", "error", err)
			return false
		}
		pctx.FailedGroups = append(pctx.FailedGroups, models.FailedGroup{
			ExternalID: group.ExternalID,
			Name:       group.Name,
			Error:      err.Error(),
		})
		log.Warn("group failed", "name", group.Name, "error", err)
		return false
	}

	log.Info("group processed", "posts", posts, "comments", comments)
	return true
}

func (g *GroupProcessor) collect(ctx context.Context, group models.Group, postLimit int, pctx *ProcessingContext) (int, int, error) {
	posts, err := g.fetcher.FetchPosts(ctx, group, postLimit)
	if err != nil {
		return 0, 0, fmt.Errorf("fetch posts: %w", err)
	}
	if postLimit > 0 && len(posts) > postLimit {
		posts = posts[:postLimit]
	}

	var savedPosts, savedComments int
	for i := range posts {
		post := &posts[i]
		res, err := g.ingest.SavePost(ctx, post, g.opts)
		if err != nil {
			return savedPosts, savedComments, err
		}
		savedPosts++
		pctx.Stats.Posts++
		pctx.addAuthors(res.AuthorIDs)

		comments, err := g.fetcher.FetchComments(ctx, group, *post)
		if err != nil {
			return savedPosts, savedComments, fmt.Errorf("fetch comments of %s: %w", post.Key(), err)
		}
		res, err = g.ingest.SaveComments(ctx, comments, g.opts)
		savedComments += res.Saved
		pctx.Stats.Comments += res.Saved
		pctx.addAuthors(res.AuthorIDs)
		if err != nil {
			return savedPosts, savedComments, err
		}
	}
	return savedPosts, savedComments, nil
}
