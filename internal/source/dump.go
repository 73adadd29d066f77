package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/raphaelgruber/wallharvest/internal/models"
)

// ErrDumpNotFound indicates no wall dump exists for a group.
var ErrDumpNotFound = errors.New("wall dump not found")

// wallDump is the on-disk shape of one group's harvested wall.
type wallDump struct {
	Posts []models.Post `json:"posts"`
	// Comments maps post id to the comment tree of that post.
	Comments map[string][]models.Comment `json:"comments"`
}

// DumpFetcher reads harvested walls from JSON files named
// <dir>/<externalId>.json. A dump is decoded once per group and cached
// until the group's posts are fetched again.
type DumpFetcher struct {
	dir string

	mu    sync.Mutex
	cache map[int64]*wallDump
}

// NewDumpFetcher creates a fetcher reading from dir.
func NewDumpFetcher(dir string) *DumpFetcher {
	return &DumpFetcher{dir: dir, cache: make(map[int64]*wallDump)}
}

// FetchPosts implements service.WallFetcher. limit <= 0 means no limit.
func (f *DumpFetcher) FetchPosts(ctx context.Context, group models.Group, limit int) ([]models.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dump, err := f.read(group.ExternalID)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.cache[group.ExternalID] = dump
	f.mu.Unlock()

	posts := dump.Posts
	if limit > 0 && len(posts) > limit {
		posts = posts[:limit]
	}
	owner := group.OwnerID()
	for i := range posts {
		if posts[i].OwnerID == 0 {
			posts[i].OwnerID = owner
		}
	}
	return posts, nil
}

// FetchComments implements service.WallFetcher.
func (f *DumpFetcher) FetchComments(ctx context.Context, group models.Group, post models.Post) ([]models.Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	dump, ok := f.cache[group.ExternalID]
	f.mu.Unlock()
	if !ok {
		var err error
		if dump, err = f.read(group.ExternalID); err != nil {
			return nil, err
		}
	}

	comments := dump.Comments[strconv.FormatInt(post.PostID, 10)]
	for i := range comments {
		if comments[i].OwnerID == 0 {
			comments[i].OwnerID = post.OwnerID
		}
		if comments[i].PostID == 0 {
			comments[i].PostID = post.PostID
		}
	}
	return comments, nil
}

func (f *DumpFetcher) read(externalID int64) (*wallDump, error) {
	path := filepath.Join(f.dir, strconv.FormatInt(externalID, 10)+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDumpNotFound, path)
		}
		return nil, fmt.Errorf("read dump: %w", err)
	}

	var dump wallDump
	if err := json.Unmarshal(data, &dump); err != nil {
		return nil, fmt.Errorf("decode dump %s: %w", path, err)
	}
	return &dump, nil
}
