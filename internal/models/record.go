package models

import (
	"fmt"
	"time"
)

// Group is an external source community whose wall is collected.
// Owned by the upstream catalog; read-only here.
type Group struct {
	ExternalID  int64  `json:"external_id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	ScreenName  string `json:"screen_name,omitempty" yaml:"screen_name"`
	WallEnabled bool   `json:"wall_enabled" yaml:"wall_enabled"`
}

// OwnerID is the wall owner id used in record keys. Group walls have
// negative owner ids upstream.
func (g Group) OwnerID() int64 {
	if g.ExternalID > 0 {
		return -g.ExternalID
	}
	return g.ExternalID
}

// Attachment is an opaque upstream attachment payload.
type Attachment struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// Post is a wall post.
type Post struct {
	OwnerID     int64        `json:"owner_id"`
	PostID      int64        `json:"post_id"`
	FromID      int64        `json:"from_id"`
	Text        string       `json:"text"`
	Date        time.Time    `json:"date"`
	Attachments []Attachment `json:"attachments,omitempty"`
	// CopyHistory holds the reposted parent posts, outermost first.
	CopyHistory []Post `json:"copy_history,omitempty"`
	IsDeleted   bool   `json:"is_deleted,omitempty"`
}

// Key returns the natural key of the post.
func (p *Post) Key() string { return RecordKey(p.OwnerID, p.PostID) }

// Comment is a comment on a post. Replies to a comment are nested in Thread.
type Comment struct {
	OwnerID        int64        `json:"owner_id"`
	CommentID      int64        `json:"comment_id"`
	PostID         int64        `json:"post_id"`
	FromID         int64        `json:"from_id"`
	Text           string       `json:"text"`
	Date           time.Time    `json:"date"`
	Attachments    []Attachment `json:"attachments,omitempty"`
	ParentsStack   []int64      `json:"parents_stack,omitempty"`
	ReplyToUser    *int64       `json:"reply_to_user,omitempty"`
	ReplyToComment *int64       `json:"reply_to_comment,omitempty"`
	Thread         []Comment    `json:"thread,omitempty"`
	IsDeleted      bool         `json:"is_deleted,omitempty"`
}

// Key returns the natural key of the comment.
func (c *Comment) Key() string { return RecordKey(c.OwnerID, c.CommentID) }

// PostKey returns the natural key of the post the comment belongs to.
func (c *Comment) PostKey() string { return RecordKey(c.OwnerID, c.PostID) }

// RecordKey builds the compound natural key (ownerId, recordId) used as the
// string part of post and comment record ids.
func RecordKey(ownerID, recordID int64) string {
	return fmt.Sprintf("%d_%d", ownerID, recordID)
}

// SaveOptions are stamped onto records on creation only.
type SaveOptions struct {
	Source      string
	ExternalRef *string
}
