package db

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/raphaelgruber/wallharvest/internal/models"
)

// ListMatches returns the stored matches of the given source for the given
// records of one kind.
func (c *Client) ListMatches(ctx context.Context, kind models.RecordKind, keys []string, source models.MatchSource) ([]models.KeywordMatch, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	results, err := surrealdb.Query[[]models.KeywordMatch](ctx, c.db, `
		SELECT record_kind, record_key, keyword, source FROM keyword_match
		WHERE record_kind = $kind AND record_key IN $keys AND source = $source
	`, map[string]any{
		"kind":   string(kind),
		"keys":   keys,
		"source": string(source),
	})
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	return firstResult(results), nil
}

// matchRow is the insert shape of a keyword_match row. The id is derived from
// the match identity so that re-inserting an existing match is a no-op.
type matchRow struct {
	ID        surrealmodels.RecordID `json:"id"`
	Kind      string                 `json:"record_kind"`
	RecordKey string                 `json:"record_key"`
	Keyword   string                 `json:"keyword"`
	Source    string                 `json:"source"`
}

func matchRecordID(m models.KeywordMatch) surrealmodels.RecordID {
	return surrealmodels.NewRecordID("keyword_match", m.MatchKey())
}

// ApplyMatchDiff deletes and creates match rows in a single transaction.
// Creating a row that already exists is skipped, not an error.
func (c *Client) ApplyMatchDiff(ctx context.Context, diff models.MatchDiff) error {
	if diff.Empty() {
		return nil
	}

	deleteIDs := make([]surrealmodels.RecordID, len(diff.Delete))
	for i, m := range diff.Delete {
		deleteIDs[i] = matchRecordID(m)
	}
	rows := make([]matchRow, len(diff.Create))
	for i, m := range diff.Create {
		rows[i] = matchRow{
			ID:        matchRecordID(m),
			Kind:      string(m.Kind),
			RecordKey: m.RecordKey,
			Keyword:   m.KeywordID,
			Source:    string(m.Source),
		}
	}

	_, err := surrealdb.Query[any](ctx, c.db, `
		BEGIN TRANSACTION;
		IF array::len($delete_ids) > 0 {
			DELETE keyword_match WHERE id IN $delete_ids RETURN NONE;
		};
		IF array::len($rows) > 0 {
			INSERT IGNORE INTO keyword_match $rows RETURN NONE;
		};
		COMMIT TRANSACTION;
	`, map[string]any{
		"delete_ids": deleteIDs,
		"rows":       rows,
	})
	if err != nil {
		return fmt.Errorf("apply match diff: %w", wrapQueryError(err))
	}

	c.log.Debug("applied match diff", "deleted", len(deleteIDs), "created", len(rows))
	return nil
}

// CountMatches returns the number of stored matches for a keyword.
func (c *Client) CountMatches(ctx context.Context, keywordID string) (int, error) {
	results, err := surrealdb.Query[[]struct {
		Count int `json:"count"`
	}](ctx, c.db, `
		SELECT count() AS count FROM keyword_match WHERE keyword = $keyword GROUP ALL
	`, map[string]any{"keyword": keywordID})
	if err != nil {
		return 0, fmt.Errorf("count matches: %w", err)
	}

	rows := firstResult(results)
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Count, nil
}
