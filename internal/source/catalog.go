// Package source provides the group catalog and wall fetcher used by the
// ingestion pipeline.
package source

import (
	"context"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/raphaelgruber/wallharvest/internal/models"
	"github.com/raphaelgruber/wallharvest/internal/service"
)

// catalogFile is the on-disk shape of the group catalog.
type catalogFile struct {
	Groups []models.Group `yaml:"groups"`
}

// Catalog resolves groups from a YAML file. The file is re-read on every
// call so edits apply to the next task run.
type Catalog struct {
	path string
}

// NewCatalog creates a catalog backed by path.
func NewCatalog(path string) *Catalog {
	return &Catalog{path: path}
}

// Load reads every group in the catalog.
func (c *Catalog) Load() ([]models.Group, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes a YAML catalog document.
func ParseCatalog(data []byte) ([]models.Group, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return f.Groups, nil
}

// ResolveGroups implements service.GroupResolver. ALL returns the whole
// catalog. SELECTED returns the requested groups in request order; an empty
// id list is a bad request and no known id is not-found.
func (c *Catalog) ResolveGroups(_ context.Context, scope models.TaskScope, ids []int64) ([]models.Group, error) {
	groups, err := c.Load()
	if err != nil {
		return nil, err
	}

	switch scope {
	case models.ScopeAll:
		if len(groups) == 0 {
			return nil, fmt.Errorf("%w: catalog is empty", service.ErrGroupsNotFound)
		}
		return groups, nil
	case models.ScopeSelected:
		if len(ids) == 0 {
			return nil, fmt.Errorf("%w: no group ids selected", service.ErrBadGroupRequest)
		}
		var out []models.Group
		for _, id := range models.DedupIDs(ids) {
			i := slices.IndexFunc(groups, func(g models.Group) bool { return g.ExternalID == id })
			if i >= 0 {
				out = append(out, groups[i])
			}
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("%w: none of %v", service.ErrGroupsNotFound, ids)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown scope %q", service.ErrBadGroupRequest, scope)
	}
}
