package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/wallharvest/internal/matcher"
	"github.com/raphaelgruber/wallharvest/internal/models"
)

var testKeywords = []models.Keyword{
	{ID: "кот", Word: "кот", NormalizedWord: "кот"},
	{ID: "дешевая квартира", Word: "дешёвая квартира", NormalizedWord: "дешевая квартира", IsPhrase: true},
}

func TestSyncOwnIsIdempotent(t *testing.T) {
	h := newHarness()
	h.keywords.keywords = testKeywords
	ctx := context.Background()

	set, err := h.sync.LoadKeywords(ctx)
	require.NoError(t, err)
	ref := models.RecordRef{Kind: models.KindPost, Key: "-1_1"}

	first, err := h.sync.SyncOwn(ctx, set, ref, "Кот в сапогах")
	require.NoError(t, err)
	assert.Len(t, first.Create, 1)
	assert.Empty(t, first.Delete)

	second, err := h.sync.SyncOwn(ctx, set, ref, "Кот в сапогах")
	require.NoError(t, err)
	assert.True(t, second.Empty())
	assert.Equal(t, 1, h.matches.applies, "unchanged text must not write")
}

func TestSyncOwnReplacesStaleMatches(t *testing.T) {
	h := newHarness()
	h.keywords.keywords = testKeywords
	ctx := context.Background()
	set, err := h.sync.LoadKeywords(ctx)
	require.NoError(t, err)
	ref := models.RecordRef{Kind: models.KindComment, Key: "-1_5"}

	_, err = h.sync.SyncOwn(ctx, set, ref, "кот")
	require.NoError(t, err)

	diff, err := h.sync.SyncOwn(ctx, set, ref, "срочно! дешёвая квартира рядом")
	require.NoError(t, err)
	require.Len(t, diff.Delete, 1)
	assert.Equal(t, "кот", diff.Delete[0].KeywordID)
	require.Len(t, diff.Create, 1)
	assert.Equal(t, "дешевая квартира", diff.Create[0].KeywordID)

	assert.Empty(t, h.matches.recordKeys("кот", models.SourceOwn))
	assert.Equal(t, []string{"-1_5"}, h.matches.recordKeys("дешевая квартира", models.SourceOwn))
}

func TestSyncOwnWholeWordOnly(t *testing.T) {
	h := newHarness()
	h.keywords.keywords = testKeywords
	ctx := context.Background()
	set, err := h.sync.LoadKeywords(ctx)
	require.NoError(t, err)

	diff, err := h.sync.SyncOwn(ctx, set, models.RecordRef{Kind: models.KindPost, Key: "-1_2"}, "котенок и квартира дешёвая")
	require.NoError(t, err)
	assert.True(t, diff.Empty())
	assert.Zero(t, h.matches.count(models.SourceOwn))
}

func TestParentTextPropagatesToAllSiblings(t *testing.T) {
	h := newHarness()
	h.keywords.keywords = testKeywords
	ctx := context.Background()
	opts := models.SaveOptions{Source: "test"}

	post := &models.Post{OwnerID: -7, PostID: 100, Text: "просто пост"}
	_, err := h.ingest.SavePost(ctx, post, opts)
	require.NoError(t, err)

	comments := []models.Comment{
		{OwnerID: -7, PostID: 100, CommentID: 1, Text: "a"},
		{OwnerID: -7, PostID: 100, CommentID: 2, Text: "b"},
		{OwnerID: -7, PostID: 100, CommentID: 3, Text: "c"},
	}
	_, err = h.ingest.SaveComments(ctx, comments, opts)
	require.NoError(t, err)
	assert.Zero(t, h.matches.count(models.SourceParent))

	// The post now matches; one more pass over a single comment must
	// cover every sibling.
	h.records.setPostText(-7, 100, "Кот продаётся")
	_, err = h.ingest.SaveComments(ctx, comments[1:2], opts)
	require.NoError(t, err)

	assert.Equal(t, []string{"-7_1", "-7_2", "-7_3"}, h.matches.recordKeys("кот", models.SourceParent))

	// Repeat is a no-op.
	applies := h.matches.applies
	diff, err := h.sync.SyncParent(ctx, mustSet(t, h), -7, 100)
	require.NoError(t, err)
	assert.True(t, diff.Empty())
	assert.Equal(t, applies, h.matches.applies)
}

func TestSyncParentClearsWhenParentStopsMatching(t *testing.T) {
	h := newHarness()
	h.keywords.keywords = testKeywords
	ctx := context.Background()
	opts := models.SaveOptions{}

	h.records.setPostText(-7, 200, "кот")
	_, err := h.ingest.SaveComments(ctx, []models.Comment{
		{OwnerID: -7, PostID: 200, CommentID: 1},
		{OwnerID: -7, PostID: 200, CommentID: 2},
	}, opts)
	require.NoError(t, err)
	require.Equal(t, 2, h.matches.count(models.SourceParent))

	h.records.setPostText(-7, 200, "собака")
	diff, err := h.sync.SyncParent(ctx, mustSet(t, h), -7, 200)
	require.NoError(t, err)
	assert.Len(t, diff.Delete, 2)
	assert.Zero(t, h.matches.count(models.SourceParent))
}

func TestSyncParentWithoutParentTextIsNoop(t *testing.T) {
	h := newHarness()
	h.keywords.keywords = testKeywords
	ctx := context.Background()

	_, err := h.ingest.SaveComments(ctx, []models.Comment{
		{OwnerID: -7, PostID: 300, CommentID: 1, Text: "кот"},
	}, models.SaveOptions{})
	require.NoError(t, err)

	assert.Zero(t, h.matches.count(models.SourceParent))
	assert.Equal(t, 1, h.matches.count(models.SourceOwn))
}

func TestSyncFailureDoesNotFailIngestion(t *testing.T) {
	h := newHarness()
	h.keywords.keywords = testKeywords
	h.matches.applyErr = errors.New("transaction conflict")
	ctx := context.Background()

	h.records.setPostText(-7, 400, "кот")
	res, err := h.ingest.SaveComments(ctx, []models.Comment{
		{OwnerID: -7, PostID: 400, CommentID: 1, Text: "кот"},
	}, models.SaveOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Saved)
	assert.Contains(t, h.records.comments, "-7_1")
}

func TestKeywordLoadFailureSkipsSync(t *testing.T) {
	h := newHarness()
	h.keywords.err = errors.New("db down")

	res, err := h.ingest.SavePost(context.Background(), &models.Post{OwnerID: -1, PostID: 1, Text: "кот"}, models.SaveOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Saved)
	assert.Zero(t, h.matches.applies)
}

func TestSyncParentConcurrentCallsConverge(t *testing.T) {
	h := newHarness()
	h.keywords.keywords = testKeywords
	ctx := context.Background()

	h.records.setPostText(-9, 1, "кот")
	for i := int64(1); i <= 20; i++ {
		h.records.comments[models.RecordKey(-9, i)] = models.Comment{OwnerID: -9, PostID: 1, CommentID: i}
	}
	set := mustSet(t, h)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.sync.SyncParent(ctx, set, -9, 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, h.matches.recordKeys("кот", models.SourceParent), 20)
	assert.Equal(t, 1, h.matches.applies, "later calls must see the first diff applied")
}

func TestDiffMatches(t *testing.T) {
	mk := func(key, kw string) models.KeywordMatch {
		return models.KeywordMatch{Kind: models.KindComment, RecordKey: key, KeywordID: kw, Source: models.SourceParent}
	}
	existing := []models.KeywordMatch{mk("a", "x"), mk("b", "x")}
	target := []models.KeywordMatch{mk("b", "x"), mk("c", "x"), mk("c", "x")}

	diff := diffMatches(existing, target)
	assert.Equal(t, []models.KeywordMatch{mk("a", "x")}, diff.Delete)
	assert.Equal(t, []models.KeywordMatch{mk("c", "x")}, diff.Create)
}

func mustSet(t *testing.T, h *harness) *matcher.Set {
	t.Helper()
	set, err := h.sync.LoadKeywords(context.Background())
	require.NoError(t, err)
	return set
}
