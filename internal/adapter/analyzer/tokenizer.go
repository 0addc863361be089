// Package analyzer normalizes free text into terms for lexical features.
package analyzer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Tokenizer lower-cases text, splits it on anything that is not a letter or
// digit, drops stopwords and one-rune terms, and optionally stems ASCII words.
type Tokenizer struct {
	stem bool
}

// NewTokenizer creates a new Tokenizer.
func NewTokenizer(stem bool) *Tokenizer {
	return &Tokenizer{stem: stem}
}

// Tokenize returns the terms of text in order of appearance.
func (t *Tokenizer) Tokenize(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	terms := words[:0]
	for _, w := range words {
		if utf8.RuneCountInString(w) < 2 {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		if t.stem && isASCIIWord(w) {
			w = Stem(w)
		}
		terms = append(terms, w)
	}
	return terms
}

// isASCIIWord reports whether w is made of ASCII letters only. Digits and
// other scripts are left unstemmed.
func isASCIIWord(w string) bool {
	for i := 0; i < len(w); i++ {
		if w[i] < 'a' || w[i] > 'z' {
			return false
		}
	}
	return true
}

var stopwords = func() map[string]struct{} {
	words := []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "for",
		"from", "has", "he", "in", "is", "it", "its", "of", "on",
		"that", "the", "to", "was", "were", "will", "with", "this",
		"have", "had", "but", "not", "you", "your", "we", "our",
		"they", "their", "she", "her", "his", "if", "or", "so",
		"no", "can", "do", "does", "did", "been", "being", "would",
		"could", "should", "may", "might", "must", "shall", "which",
		"who", "whom", "what", "when", "where", "why", "how", "all",
		"each", "every", "both", "few", "more", "most", "other",
		"some", "such", "than", "too", "very", "just", "also",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()
