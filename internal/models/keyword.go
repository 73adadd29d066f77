package models

// Keyword is a candidate keyword loaded for a sync pass.
type Keyword struct {
	ID             string `json:"id"`
	Word           string `json:"word"`
	NormalizedWord string `json:"normalized_word"`
	IsPhrase       bool   `json:"is_phrase"`
}

// MatchSource says which text governs a keyword match.
type MatchSource string

const (
	// SourceOwn matches are derived from the record's own text.
	SourceOwn MatchSource = "OWN"
	// SourceParent matches are derived from the parent post's text.
	SourceParent MatchSource = "PARENT"
)

// RecordKind distinguishes posts from comments in the match index.
type RecordKind string

const (
	KindPost    RecordKind = "post"
	KindComment RecordKind = "comment"
)

// RecordRef identifies a record in the match index.
type RecordRef struct {
	Kind RecordKind `json:"record_kind"`
	Key  string     `json:"record_key"`
}

// KeywordMatch asserts that a keyword matches a record's governing text.
type KeywordMatch struct {
	Kind      RecordKind  `json:"record_kind"`
	RecordKey string      `json:"record_key"`
	KeywordID string      `json:"keyword"`
	Source    MatchSource `json:"source"`
}

// MatchKey returns a stable identity for the match row, also used as its record id.
func (m KeywordMatch) MatchKey() string {
	return string(m.Kind) + "_" + m.RecordKey + "_" + m.KeywordID + "_" + string(m.Source)
}

// MatchDiff is the delta applied to the match index in one transaction.
type MatchDiff struct {
	Delete []KeywordMatch
	Create []KeywordMatch
}

// Empty reports whether the diff has nothing to apply.
func (d MatchDiff) Empty() bool { return len(d.Delete) == 0 && len(d.Create) == 0 }
