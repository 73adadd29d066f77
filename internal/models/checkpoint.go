package models

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// CheckpointVersion is the schema version written by this build.
// Version 0 is a document persisted before the version field existed.
const CheckpointVersion = 3

// Checkpoint is the progress document attached to a task. It is rewritten
// after every group and at terminal states, and is the only progress artifact
// callers can inspect. Fields are only ever added, never renamed or removed.
//
// ProcessedGroups counts groups that completed or were skipped. Failed groups
// are not counted, so a done task can report fewer processed groups than its
// processedItems, which is set to totalGroups. NextGroupIndex is the position
// in the resolved group list where a resumed run continues and moves past
// failed groups too. It is absent before version 3; ProcessedGroups is used
// then.
type Checkpoint struct {
	Version              int           `json:"version"`
	Scope                TaskScope     `json:"scope"`
	GroupIDs             []int64       `json:"groupIds"`
	PostLimit            int           `json:"postLimit"`
	TotalGroups          int           `json:"totalGroups,omitempty"`
	ProcessedGroups      *int          `json:"processedGroups,omitempty"`
	NextGroupIndex       *int          `json:"nextGroupIndex,omitempty"`
	Stats                *TaskStats    `json:"stats,omitempty"`
	SkippedGroupIDs      []int64       `json:"skippedGroupIds"`
	SkippedGroupsMessage string        `json:"skippedGroupsMessage,omitempty"`
	FailedGroups         []FailedGroup `json:"failedGroups"`
}

// TaskStats accumulates counters over a task run.
type TaskStats struct {
	Groups   int `json:"groups"`
	Posts    int `json:"posts"`
	Comments int `json:"comments"`
	Authors  int `json:"authors"`
}

// FailedGroup records a group whose processing raised a recoverable error.
type FailedGroup struct {
	ExternalID int64  `json:"externalId"`
	Name       string `json:"name"`
	Error      string `json:"error"`
}

// Upgrade fills fields introduced after the document's version so that the
// rest of the code can rely on them. It never drops data.
func (c *Checkpoint) Upgrade() {
	if c.Version < 1 {
		// v1 made the list fields non-null.
		if c.SkippedGroupIDs == nil {
			c.SkippedGroupIDs = []int64{}
		}
		if c.FailedGroups == nil {
			c.FailedGroups = []FailedGroup{}
		}
	}
	// v2 added totalGroups/processedGroups and v3 added nextGroupIndex;
	// absent values are rehydrated from the task row by the orchestrator.
	c.Version = CheckpointVersion
}

// SkippedSummary renders the human-readable line listing skipped groups.
// Returns "" when nothing was skipped.
func SkippedSummary(ids []int64) string {
	if len(ids) == 0 {
		return ""
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return fmt.Sprintf("Skipped %d group(s) with disabled wall: %s", len(ids), strings.Join(parts, ", "))
}

// DedupIDs returns ids without duplicates, preserving first-seen order.
func DedupIDs(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
