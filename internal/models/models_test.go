package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

func TestRecordIDString(t *testing.T) {
	id, err := RecordIDString(surrealmodels.NewRecordID("task", "abc"))
	require.NoError(t, err)
	assert.Equal(t, "abc", id)

	_, err = RecordIDString(surrealmodels.NewRecordID("task", 42))
	assert.Error(t, err)

	task := &Task{ID: surrealmodels.NewRecordID("task", 7)}
	assert.Equal(t, "", task.TaskID())
}

func TestRecordKeys(t *testing.T) {
	g := Group{ExternalID: 123}
	assert.Equal(t, int64(-123), g.OwnerID())
	assert.Equal(t, int64(-5), Group{ExternalID: -5}.OwnerID())

	post := &Post{OwnerID: -123, PostID: 9}
	assert.Equal(t, "-123_9", post.Key())

	c := &Comment{OwnerID: -123, PostID: 9, CommentID: 40}
	assert.Equal(t, "-123_40", c.Key())
	assert.Equal(t, "-123_9", c.PostKey())
}

func TestCheckpointUpgrade(t *testing.T) {
	t.Run("legacy document gets non-null lists", func(t *testing.T) {
		cp := &Checkpoint{Scope: ScopeAll, GroupIDs: []int64{1}}
		cp.Upgrade()
		assert.Equal(t, CheckpointVersion, cp.Version)
		assert.NotNil(t, cp.SkippedGroupIDs)
		assert.NotNil(t, cp.FailedGroups)
		assert.Nil(t, cp.ProcessedGroups)
	})

	t.Run("existing data is kept", func(t *testing.T) {
		processed := 3
		cp := &Checkpoint{
			Version:         1,
			ProcessedGroups: &processed,
			SkippedGroupIDs: []int64{5},
			FailedGroups:    []FailedGroup{{ExternalID: 6, Error: "boom"}},
		}
		cp.Upgrade()
		assert.Equal(t, []int64{5}, cp.SkippedGroupIDs)
		assert.Len(t, cp.FailedGroups, 1)
		assert.Equal(t, 3, *cp.ProcessedGroups)
	})
}

func TestSkippedSummary(t *testing.T) {
	assert.Equal(t, "", SkippedSummary(nil))
	assert.Equal(t, "Skipped 2 group(s) with disabled wall: 4, 8", SkippedSummary([]int64{4, 8}))
}

func TestDedupIDs(t *testing.T) {
	assert.Equal(t, []int64{3, 1, 2}, DedupIDs([]int64{3, 1, 3, 2, 1}))
	assert.Empty(t, DedupIDs(nil))
}

func TestTaskStatusIsTerminal(t *testing.T) {
	assert.True(t, TaskStatusDone.IsTerminal())
	assert.True(t, TaskStatusFailed.IsTerminal())
	assert.False(t, TaskStatusRunning.IsTerminal())
	assert.False(t, TaskStatusPending.IsTerminal())
}
