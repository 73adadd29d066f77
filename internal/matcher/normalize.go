// Package matcher implements the text normalization and keyword matching rule
// shared by keyword storage and the match index synchronizer.
package matcher

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize lower-cases s, strips diacritics and punctuation, and collapses
// whitespace so that the result is a single-space-separated token list.
func Normalize(s string) string {
	return strings.Join(Tokens(s), " ")
}

// Tokens returns the normalized tokens of s.
func Tokens(s string) []string {
	if s == "" {
		return nil
	}
	folded := stripMarks(strings.ToLower(s))
	return strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// stripMarks decomposes s and drops non-spacing marks ("ё" -> "е", "é" -> "e").
// A fresh transformer is built per call; transform.Chain is not safe for
// concurrent use.
func stripMarks(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
