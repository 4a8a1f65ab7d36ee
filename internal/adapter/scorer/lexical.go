package scorer

import (
	"context"
	"fmt"
	"strings"

	"firerag/internal/domain"
	"firerag/internal/port"
)

// LexicalScorer rates candidates by the fraction of query terms the
// chunk contains, scaled to the relevance bounds. It needs no network
// and serves as the offline scoring provider.
type LexicalScorer struct {
	tokenizer port.Tokenizer
}

func NewLexicalScorer(tokenizer port.Tokenizer) *LexicalScorer {
	return &LexicalScorer{tokenizer: tokenizer}
}

func (s *LexicalScorer) Score(ctx context.Context, query string, candidates []domain.Candidate) ([]domain.Candidate, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidQuery)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates to score", domain.ErrInvalidQuery)
	}

	querySet := make(map[string]bool)
	for _, tok := range s.tokenizer.Tokenize(query) {
		querySet[tok] = true
	}

	scored := make([]domain.Candidate, len(candidates))
	copy(scored, candidates)

	for i := range scored {
		scored[i].Relevance = s.overlapScore(querySet, scored[i].Chunk)
	}

	sortByRelevance(scored)
	return scored, nil
}

func (s *LexicalScorer) overlapScore(querySet map[string]bool, chunk domain.Chunk) float64 {
	if len(querySet) == 0 {
		return domain.RelevanceMin
	}

	tokens := chunk.Tokens
	if len(tokens) == 0 {
		tokens = s.tokenizer.Tokenize(chunk.Text)
	}

	matched := make(map[string]bool)
	for _, tok := range tokens {
		if querySet[tok] {
			matched[tok] = true
		}
	}

	return float64(len(matched)) / float64(len(querySet)) * domain.RelevanceMax
}

func (s *LexicalScorer) ModelName() string {
	return "lexical"
}
