package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/raphaelgruber/wallharvest/internal/models"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases", "Кот В Сапогах", "кот в сапогах"},
		{"strips punctuation", "срочно!!! дешёвая,квартира.", "срочно дешевая квартира"},
		{"collapses whitespace", "  a \t b\n\nc  ", "a b c"},
		{"strips latin diacritics", "Café crème", "cafe creme"},
		{"keeps digits", "2-к квартира 45м2", "2 к квартира 45м2"},
		{"empty", "", ""},
		{"only punctuation", "?!...", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestSingleWordMatchesWholeTokenOnly(t *testing.T) {
	set := NewSet([]models.Keyword{{ID: "k1", Word: "кот", NormalizedWord: Normalize("кот")}})

	assert.Equal(t, []string{"k1"}, set.Match("кот в сапогах"))
	assert.Empty(t, set.Match("котенок"))
	assert.Equal(t, []string{"k1"}, set.Match("Где мой КОТ?"))
}

func TestPhraseMatchesContiguousInOrder(t *testing.T) {
	set := NewSet([]models.Keyword{{ID: "k2", Word: "дешёвая квартира", NormalizedWord: Normalize("дешёвая квартира"), IsPhrase: true}})

	assert.Equal(t, []string{"k2"}, set.Match("срочно! дешёвая квартира рядом"))
	assert.Empty(t, set.Match("квартира дешёвая срочно"))
	assert.Empty(t, set.Match("дешёвая и квартира"))
}

func TestDiacriticsMatchBothWays(t *testing.T) {
	set := NewSet([]models.Keyword{{ID: "k", Word: "ёлка"}})

	assert.Equal(t, []string{"k"}, set.Match("елка в парке"))
	assert.Equal(t, []string{"k"}, set.Match("Ёлка в парке"))
}

func TestMultiTokenWordIsMatchedAsSequence(t *testing.T) {
	set := NewSet([]models.Keyword{{ID: "w", Word: "wi-fi"}})

	assert.Equal(t, []string{"w"}, set.Match("бесплатный Wi-Fi в холле"))
	assert.Empty(t, set.Match("wi без fi"))
}

func TestSetDropsEmptyKeywordsAndSortsIDs(t *testing.T) {
	set := NewSet([]models.Keyword{
		{ID: "b", Word: "кот"},
		{ID: "empty", Word: "!!!"},
		{ID: "a", Word: "сапоги", NormalizedWord: "сапогах"},
	})

	assert.Equal(t, 2, set.Len())
	assert.Equal(t, []string{"a", "b"}, set.Match("кот в сапогах"))
	assert.Nil(t, set.Match(""))
}
