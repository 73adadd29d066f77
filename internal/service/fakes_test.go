package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/raphaelgruber/wallharvest/internal/events"
	"github.com/raphaelgruber/wallharvest/internal/models"
)

// =============================================================================
// TASK STORE
// =============================================================================

type fakeTaskStore struct {
	mu      sync.Mutex
	tasks   map[string]*models.Task
	patches []models.TaskPatch
	// onUpdate runs after a patch is applied; a non-nil error is returned
	// to the caller instead of the task.
	onUpdate func(id string, patch models.TaskPatch) error
	// vanish makes UpdateTask report the task as missing.
	vanish bool
}

func newFakeTaskStore(tasks ...*models.Task) *fakeTaskStore {
	s := &fakeTaskStore{tasks: make(map[string]*models.Task)}
	for _, t := range tasks {
		s.tasks[t.TaskID()] = t
	}
	return s
}

func (s *fakeTaskStore) FindTask(_ context.Context, id string) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (s *fakeTaskStore) UpdateTask(_ context.Context, id string, patch models.TaskPatch) (*models.Task, error) {
	s.mu.Lock()
	t, ok := s.tasks[id]
	if !ok || s.vanish {
		s.mu.Unlock()
		return nil, nil
	}
	s.patches = append(s.patches, patch)
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	if patch.ProcessedItems != nil {
		t.ProcessedItems = *patch.ProcessedItems
	}
	if patch.Progress != nil {
		t.Progress = *patch.Progress
	}
	if patch.Checkpoint != nil {
		t.Checkpoint = patch.Checkpoint
	}
	if patch.Error != nil {
		t.Error = patch.Error
	} else if patch.ClearError {
		t.Error = nil
	}
	cp := *t
	hook := s.onUpdate
	s.mu.Unlock()

	if hook != nil {
		if err := hook(id, patch); err != nil {
			return nil, err
		}
	}
	return &cp, nil
}

func (s *fakeTaskStore) ListIncompleteTasks(_ context.Context) ([]models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Task
	for _, t := range s.tasks {
		if !t.Status.IsTerminal() {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *fakeTaskStore) get(id string) models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.tasks[id]
}

func (s *fakeTaskStore) patchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.patches)
}

func newTask(id string, scope models.TaskScope, groupIDs ...int64) *models.Task {
	return &models.Task{
		ID:        surrealmodels.NewRecordID("task", id),
		Scope:     scope,
		GroupIDs:  groupIDs,
		Status:    models.TaskStatusPending,
		CreatedAt: time.Now(),
	}
}

func intPtr(v int) *int { return &v }

// =============================================================================
// GROUP RESOLVER / FETCHER
// =============================================================================

type fakeResolver struct {
	groups []models.Group
	err    error
}

func (r *fakeResolver) ResolveGroups(_ context.Context, _ models.TaskScope, _ []int64) ([]models.Group, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.groups, nil
}

func enabledGroups(ids ...int64) []models.Group {
	out := make([]models.Group, len(ids))
	for i, id := range ids {
		out[i] = models.Group{ExternalID: id, Name: fmt.Sprintf("group-%d", id), WallEnabled: true}
	}
	return out
}

type fakeFetcher struct {
	mu       sync.Mutex
	posts    map[int64][]models.Post
	comments map[string][]models.Comment
	errs     map[int64]error
	fetched  []int64
	// block, when set, is waited on before returning posts.
	block chan struct{}
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		posts:    make(map[int64][]models.Post),
		comments: make(map[string][]models.Comment),
		errs:     make(map[int64]error),
	}
}

func (f *fakeFetcher) FetchPosts(ctx context.Context, group models.Group, limit int) ([]models.Post, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, group.ExternalID)
	block := f.block
	err := f.errs[group.ExternalID]
	posts := slices.Clone(f.posts[group.ExternalID])
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return posts, nil
}

func (f *fakeFetcher) FetchComments(_ context.Context, _ models.Group, post models.Post) ([]models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.comments[post.Key()]), nil
}

func (f *fakeFetcher) fetchedGroups() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.fetched)
}

// =============================================================================
// RECORD / KEYWORD / MATCH STORES
// =============================================================================

type fakeRecordStore struct {
	mu       sync.Mutex
	posts    map[string]models.Post
	comments map[string]models.Comment
	failKey  string
}

func newFakeRecordStore() *fakeRecordStore {
	return &fakeRecordStore{
		posts:    make(map[string]models.Post),
		comments: make(map[string]models.Comment),
	}
}

func (s *fakeRecordStore) UpsertPost(_ context.Context, post *models.Post, _ models.SaveOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if post.Key() == s.failKey {
		return errors.New("upsert rejected")
	}
	s.posts[post.Key()] = *post
	return nil
}

func (s *fakeRecordStore) UpsertComment(_ context.Context, c *models.Comment, _ models.SaveOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.Key() == s.failKey {
		return errors.New("upsert rejected")
	}
	stored := *c
	stored.Thread = nil
	s.comments[c.Key()] = stored
	return nil
}

func (s *fakeRecordStore) GetPostText(_ context.Context, ownerID, postID int64) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[models.RecordKey(ownerID, postID)]
	return p.Text, ok, nil
}

func (s *fakeRecordStore) ListCommentKeys(_ context.Context, ownerID, postID int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k, c := range s.comments {
		if c.OwnerID == ownerID && c.PostID == postID {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

func (s *fakeRecordStore) setPostText(ownerID, postID int64, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := models.RecordKey(ownerID, postID)
	p := s.posts[key]
	p.OwnerID, p.PostID, p.Text = ownerID, postID, text
	s.posts[key] = p
}

type fakeKeywords struct {
	keywords []models.Keyword
	err      error
	calls    int
}

func (k *fakeKeywords) ListKeywordCandidates(context.Context) ([]models.Keyword, error) {
	k.calls++
	return k.keywords, k.err
}

type fakeMatchStore struct {
	mu       sync.Mutex
	rows     map[string]models.KeywordMatch
	applies  int
	applyErr error
}

func newFakeMatchStore() *fakeMatchStore {
	return &fakeMatchStore{rows: make(map[string]models.KeywordMatch)}
}

func (s *fakeMatchStore) ListMatches(_ context.Context, kind models.RecordKind, keys []string, source models.MatchSource) ([]models.KeywordMatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.KeywordMatch
	for _, m := range s.rows {
		if m.Kind == kind && m.Source == source && slices.Contains(keys, m.RecordKey) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *fakeMatchStore) ApplyMatchDiff(_ context.Context, diff models.MatchDiff) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.applyErr != nil {
		return s.applyErr
	}
	s.applies++
	for _, m := range diff.Delete {
		delete(s.rows, m.MatchKey())
	}
	for _, m := range diff.Create {
		s.rows[m.MatchKey()] = m
	}
	return nil
}

// recordKeys returns the sorted record keys holding keywordID with source.
func (s *fakeMatchStore) recordKeys(keywordID string, source models.MatchSource) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for _, m := range s.rows {
		if m.KeywordID == keywordID && m.Source == source {
			keys = append(keys, m.RecordKey)
		}
	}
	slices.Sort(keys)
	return keys
}

func (s *fakeMatchStore) count(source models.MatchSource) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.rows {
		if m.Source == source {
			n++
		}
	}
	return n
}

// =============================================================================
// EVENTS / METRICS
// =============================================================================

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

func (p *recordingPublisher) last() events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

type recordingMetrics struct {
	mu       sync.Mutex
	outcomes []models.TaskStatus
}

func (m *recordingMetrics) RecordTaskOutcome(_ context.Context, s models.TaskStatus) {
	m.mu.Lock()
	m.outcomes = append(m.outcomes, s)
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordTiming(string, time.Duration) {}

// =============================================================================
// HARNESS
// =============================================================================

// harness wires a full pipeline over in-memory fakes.
type harness struct {
	tasks     *fakeTaskStore
	resolver  *fakeResolver
	fetcher   *fakeFetcher
	records   *fakeRecordStore
	keywords  *fakeKeywords
	matches   *fakeMatchStore
	publisher *recordingPublisher
	metrics   *recordingMetrics
	cancels   *CancelRegistry

	sync         *MatchSynchronizer
	ingest       *IngestService
	processor    *GroupProcessor
	orchestrator *Orchestrator
}

func newHarness(tasks ...*models.Task) *harness {
	h := &harness{
		tasks:     newFakeTaskStore(tasks...),
		resolver:  &fakeResolver{},
		fetcher:   newFakeFetcher(),
		records:   newFakeRecordStore(),
		keywords:  &fakeKeywords{},
		matches:   newFakeMatchStore(),
		publisher: &recordingPublisher{},
		metrics:   &recordingMetrics{},
		cancels:   NewCancelRegistry(),
	}
	h.sync = NewMatchSynchronizer(h.keywords, h.records, h.matches, h.metrics, nil)
	h.ingest = NewIngestService(h.records, h.sync, nil)
	h.processor = NewGroupProcessor(h.fetcher, h.ingest, models.SaveOptions{Source: "test"}, h.metrics, nil)
	h.orchestrator = NewOrchestrator(OrchestratorDeps{
		Tasks:     h.tasks,
		Resolver:  h.resolver,
		Groups:    h.processor,
		Publisher: h.publisher,
		Cancels:   h.cancels,
		Metrics:   h.metrics,
	})
	return h
}
