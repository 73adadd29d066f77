package matcher

import (
	"slices"

	"github.com/raphaelgruber/wallharvest/internal/models"
)

// Pattern is a compiled keyword.
type Pattern struct {
	KeywordID string
	tokens    []string
	phrase    bool
}

// Compile builds the pattern of a keyword. The stored normalized word is
// re-normalized so that older rows written with a different rule still match
// consistently with candidate text. Returns false for keywords that normalize
// to nothing.
func Compile(k models.Keyword) (Pattern, bool) {
	word := k.NormalizedWord
	if word == "" {
		word = k.Word
	}
	tokens := Tokens(word)
	if len(tokens) == 0 {
		return Pattern{}, false
	}
	return Pattern{KeywordID: k.ID, tokens: tokens, phrase: k.IsPhrase || len(tokens) > 1}, true
}

// Matches reports whether the pattern matches pre-tokenized normalized text.
// A single word must equal a whole token; a phrase must appear as a
// contiguous token subsequence, in order.
func (p Pattern) Matches(text []string) bool {
	if !p.phrase {
		return slices.Contains(text, p.tokens[0])
	}
	n := len(p.tokens)
	for i := 0; i+n <= len(text); i++ {
		if slices.Equal(text[i:i+n], p.tokens) {
			return true
		}
	}
	return false
}

// Set is the compiled candidate keyword set of one sync pass.
type Set struct {
	patterns []Pattern
}

// NewSet compiles keywords, dropping those that normalize to nothing.
func NewSet(keywords []models.Keyword) *Set {
	s := &Set{patterns: make([]Pattern, 0, len(keywords))}
	for _, k := range keywords {
		if p, ok := Compile(k); ok {
			s.patterns = append(s.patterns, p)
		}
	}
	return s
}

// Len returns the number of usable patterns.
func (s *Set) Len() int { return len(s.patterns) }

// Match returns the sorted ids of keywords matching text.
func (s *Set) Match(text string) []string {
	tokens := Tokens(text)
	if len(tokens) == 0 || len(s.patterns) == 0 {
		return nil
	}
	var ids []string
	for _, p := range s.patterns {
		if p.Matches(tokens) {
			ids = append(ids, p.KeywordID)
		}
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}
