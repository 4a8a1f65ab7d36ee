// Package analyzer provides text analysis for regulation documents:
// tokenization, stopword filtering and Porter stemming.
package analyzer

import (
	"strings"
	"unicode"
)

// Tokenizer splits regulation text into normalized index terms.
// Clause and diagram references such as "4.1" or "7.2.1" are kept as
// single tokens so queries can match them exactly.
type Tokenizer struct {
	stopwords map[string]struct{}
	useStem   bool
}

func NewTokenizer(useStemming bool) *Tokenizer {
	return &Tokenizer{
		stopwords: defaultStopwords(),
		useStem:   useStemming,
	}
}

// Tokenize lowercases the text, splits it into words and numeric
// references, removes stopwords and optionally stems each word.
func (t *Tokenizer) Tokenize(text string) []string {
	words := splitWords(strings.ToLower(text))

	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) < 2 {
			continue
		}
		if _, ok := t.stopwords[w]; ok {
			continue
		}
		if t.useStem && !containsDigit(w) {
			w = Stem(w)
		}
		tokens = append(tokens, w)
	}

	return tokens
}

// CountTokens estimates the LLM token count of the text. Regulation
// prose averages roughly 1.3 tokens per word.
func (t *Tokenizer) CountTokens(text string) int {
	words := len(strings.Fields(text))
	return int(float64(words) * 1.3)
}

// splitWords breaks text into runs of letters and digits. A period is
// part of a token only when digits surround it, which preserves
// references like "4.1" while dropping sentence punctuation.
func splitWords(text string) []string {
	runes := []rune(text)
	var words []string
	var current strings.Builder

	for i, r := range runes {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			current.WriteRune(r)
		case r == '.' && i > 0 && i+1 < len(runes) &&
			unicode.IsDigit(runes[i-1]) && unicode.IsDigit(runes[i+1]):
			current.WriteRune(r)
		default:
			if current.Len() > 0 {
				words = append(words, current.String())
				current.Reset()
			}
		}
	}
	if current.Len() > 0 {
		words = append(words, current.String())
	}

	return words
}

func containsDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else",
		"when", "at", "by", "for", "with", "about", "against",
		"between", "into", "through", "during", "before", "after",
		"above", "below", "to", "from", "up", "down", "in", "out",
		"on", "off", "over", "under", "again", "further", "once",
		"here", "there", "all", "any", "both", "each", "few", "more",
		"most", "other", "some", "such", "no", "nor", "not", "only",
		"own", "same", "so", "than", "too", "very", "can", "will",
		"just", "should", "now", "is", "are", "was", "were", "be",
		"been", "being", "have", "has", "had", "having", "do", "does",
		"did", "doing", "of", "it", "its", "this", "that", "these",
		"those", "as", "what", "which", "who", "whom", "shall", "must",
		"may", "where", "how",
	}

	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
