package db

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/raphaelgruber/wallharvest/internal/models"
)

type keywordRow struct {
	ID             surrealmodels.RecordID `json:"id"`
	Word           string                 `json:"word"`
	NormalizedWord string                 `json:"normalized_word"`
	IsPhrase       bool                   `json:"is_phrase"`
}

func (r keywordRow) toKeyword() (models.Keyword, error) {
	id, err := models.RecordIDString(r.ID)
	if err != nil {
		return models.Keyword{}, err
	}
	return models.Keyword{
		ID:             id,
		Word:           r.Word,
		NormalizedWord: r.NormalizedWord,
		IsPhrase:       r.IsPhrase,
	}, nil
}

// ListKeywordCandidates returns every keyword eligible for matching.
func (c *Client) ListKeywordCandidates(ctx context.Context) ([]models.Keyword, error) {
	results, err := surrealdb.Query[[]keywordRow](ctx, c.db, `
		SELECT id, word, normalized_word, is_phrase FROM keyword ORDER BY normalized_word
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("list keywords: %w", err)
	}

	rows := firstResult(results)
	keywords := make([]models.Keyword, 0, len(rows))
	for _, r := range rows {
		k, err := r.toKeyword()
		if err != nil {
			c.log.Warn("skipping keyword with non-string id", "id", r.ID, "error", err)
			continue
		}
		keywords = append(keywords, k)
	}
	return keywords, nil
}

// UpsertKeyword stores a keyword under id. The id is the normalized word so
// importing the same word twice updates the existing row.
func (c *Client) UpsertKeyword(ctx context.Context, k models.Keyword) (*models.Keyword, error) {
	results, err := surrealdb.Query[[]keywordRow](ctx, c.db, `
		UPSERT type::record("keyword", $id) SET
			word = $word,
			normalized_word = $normalized_word,
			is_phrase = $is_phrase
		RETURN AFTER
	`, map[string]any{
		"id":              k.ID,
		"word":            k.Word,
		"normalized_word": k.NormalizedWord,
		"is_phrase":       k.IsPhrase,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert keyword: %w", wrapQueryError(err))
	}

	rows := firstResult(results)
	if len(rows) == 0 {
		return nil, fmt.Errorf("upsert keyword: no result returned")
	}
	out, err := rows[0].toKeyword()
	if err != nil {
		return nil, fmt.Errorf("upsert keyword: %w", err)
	}
	return &out, nil
}

// DeleteKeyword removes a keyword and its matches in one transaction.
func (c *Client) DeleteKeyword(ctx context.Context, id string) (bool, error) {
	results, err := surrealdb.Query[[]keywordRow](ctx, c.db, `
		BEGIN TRANSACTION;
		DELETE keyword_match WHERE keyword = $id RETURN NONE;
		DELETE type::record("keyword", $id) RETURN BEFORE;
		COMMIT TRANSACTION;
	`, map[string]any{"id": id})
	if err != nil {
		return false, fmt.Errorf("delete keyword: %w", wrapQueryError(err))
	}
	if results == nil {
		return false, nil
	}
	for _, r := range *results {
		if len(r.Result) > 0 {
			return true, nil
		}
	}
	return false, nil
}
