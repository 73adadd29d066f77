package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/raphaelgruber/wallharvest/internal/matcher"
	"github.com/raphaelgruber/wallharvest/internal/metrics"
	"github.com/raphaelgruber/wallharvest/internal/models"
)

// MatchSynchronizer keeps the keyword match index equal to what the current
// keyword set matches in each record's governing text. Every change is a
// diff applied in one transaction.
type MatchSynchronizer struct {
	keywords KeywordSource
	records  RecordStore
	matches  MatchStore
	metrics  metrics.Sink
	parents  *keyLock
	logger   *slog.Logger
}

// NewMatchSynchronizer creates a synchronizer. metricsSink may be nil.
func NewMatchSynchronizer(keywords KeywordSource, records RecordStore, matches MatchStore, metricsSink metrics.Sink, logger *slog.Logger) *MatchSynchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &MatchSynchronizer{
		keywords: keywords,
		records:  records,
		matches:  matches,
		metrics:  metricsSink,
		parents:  newKeyLock(),
		logger:   logger.With("component", "match_sync"),
	}
}

// LoadKeywords compiles the candidate keyword set for one sync pass.
func (s *MatchSynchronizer) LoadKeywords(ctx context.Context) (*matcher.Set, error) {
	keywords, err := s.keywords.ListKeywordCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("load keywords: %w", err)
	}
	return matcher.NewSet(keywords), nil
}

// SyncOwn reconciles the OWN matches of one record with its text and
// returns the applied diff. An unchanged record yields an empty diff and
// no write.
func (s *MatchSynchronizer) SyncOwn(ctx context.Context, set *matcher.Set, ref models.RecordRef, text string) (models.MatchDiff, error) {
	start := time.Now()
	defer s.timing(metrics.OpSyncOwn, start)

	existing, err := s.matches.ListMatches(ctx, ref.Kind, []string{ref.Key}, models.SourceOwn)
	if err != nil {
		return models.MatchDiff{}, fmt.Errorf("list own matches: %w", err)
	}

	target := make([]models.KeywordMatch, 0)
	for _, id := range set.Match(text) {
		target = append(target, models.KeywordMatch{
			Kind:      ref.Kind,
			RecordKey: ref.Key,
			KeywordID: id,
			Source:    models.SourceOwn,
		})
	}

	diff := diffMatches(existing, target)
	if diff.Empty() {
		return diff, nil
	}
	if err := s.matches.ApplyMatchDiff(ctx, diff); err != nil {
		return models.MatchDiff{}, fmt.Errorf("apply own diff: %w", err)
	}
	return diff, nil
}

// SyncParent recomputes the PARENT matches of every comment under a post
// from the post's current text. It runs for each ingested comment and is
// serialized per post so two diffs for the same post never interleave.
func (s *MatchSynchronizer) SyncParent(ctx context.Context, set *matcher.Set, ownerID, postID int64) (models.MatchDiff, error) {
	postKey := models.RecordKey(ownerID, postID)
	unlock := s.parents.Lock(postKey)
	defer unlock()

	start := time.Now()
	defer s.timing(metrics.OpSyncParent, start)

	text, ok, err := s.records.GetPostText(ctx, ownerID, postID)
	if err != nil {
		return models.MatchDiff{}, fmt.Errorf("get parent text: %w", err)
	}
	if !ok || text == "" {
		return models.MatchDiff{}, nil
	}

	siblings, err := s.records.ListCommentKeys(ctx, ownerID, postID)
	if err != nil {
		return models.MatchDiff{}, fmt.Errorf("list siblings: %w", err)
	}
	if len(siblings) == 0 {
		return models.MatchDiff{}, nil
	}

	existing, err := s.matches.ListMatches(ctx, models.KindComment, siblings, models.SourceParent)
	if err != nil {
		return models.MatchDiff{}, fmt.Errorf("list parent matches: %w", err)
	}

	matched := set.Match(text)
	target := make([]models.KeywordMatch, 0, len(siblings)*len(matched))
	for _, key := range siblings {
		for _, id := range matched {
			target = append(target, models.KeywordMatch{
				Kind:      models.KindComment,
				RecordKey: key,
				KeywordID: id,
				Source:    models.SourceParent,
			})
		}
	}

	diff := diffMatches(existing, target)
	if diff.Empty() {
		return diff, nil
	}
	if err := s.matches.ApplyMatchDiff(ctx, diff); err != nil {
		return models.MatchDiff{}, fmt.Errorf("apply parent diff: %w", err)
	}
	s.logger.Debug("parent matches synced",
		"post", postKey,
		"siblings", len(siblings),
		"created", len(diff.Create),
		"deleted", len(diff.Delete))
	return diff, nil
}

func (s *MatchSynchronizer) timing(op string, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordTiming(op, time.Since(start))
	}
}

// diffMatches returns the rows to delete (existing, not targeted) and to
// create (targeted, not existing).
func diffMatches(existing, target []models.KeywordMatch) models.MatchDiff {
	have := make(map[string]struct{}, len(existing))
	for _, m := range existing {
		have[m.MatchKey()] = struct{}{}
	}
	want := make(map[string]struct{}, len(target))
	for _, m := range target {
		want[m.MatchKey()] = struct{}{}
	}

	var diff models.MatchDiff
	for _, m := range existing {
		if _, ok := want[m.MatchKey()]; !ok {
			diff.Delete = append(diff.Delete, m)
		}
	}
	for _, m := range target {
		if _, ok := have[m.MatchKey()]; !ok {
			have[m.MatchKey()] = struct{}{}
			diff.Create = append(diff.Create, m)
		}
	}
	return diff
}
