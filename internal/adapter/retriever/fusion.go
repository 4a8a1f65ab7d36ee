package retriever

import (
	"context"
	"fmt"

	"firerag/internal/domain"
	"firerag/internal/port"
)

// HybridRetriever fuses keyword and vector search with reciprocal rank
// fusion. Either source failing alone degrades to the other; both
// failing is an error.
type HybridRetriever struct {
	keyword       port.CandidateSource
	vector        port.CandidateSource
	rrfK          int
	keywordWeight float64
}

func NewHybridRetriever(keyword, vector port.CandidateSource, rrfK int, keywordWeight float64) *HybridRetriever {
	if rrfK <= 0 {
		rrfK = 60
	}
	if keywordWeight < 0 || keywordWeight > 1 {
		keywordWeight = 0.5
	}

	return &HybridRetriever{
		keyword:       keyword,
		vector:        vector,
		rrfK:          rrfK,
		keywordWeight: keywordWeight,
	}
}

func (r *HybridRetriever) Search(ctx context.Context, query string, k int) ([]domain.Hit, error) {
	// Pull a wider pool from each source so fusion has something to
	// disagree about.
	candidateK := k * 3
	if candidateK < 20 {
		candidateK = 20
	}

	keywordHits, kwErr := r.keyword.Search(ctx, query, candidateK)
	vectorHits, vecErr := r.vector.Search(ctx, query, candidateK)

	if kwErr != nil && vecErr != nil {
		return nil, fmt.Errorf("hybrid search failed: %w", vecErr)
	}
	if vecErr != nil {
		return capHits(keywordHits, k), nil
	}
	if kwErr != nil {
		return capHits(vectorHits, k), nil
	}

	fused := r.rrfFuse(keywordHits, vectorHits)
	return capHits(fused, k), nil
}

// rrfFuse combines ranked lists: each hit contributes
// weight / (rrfK + rank + 1) from every list it appears in.
func (r *HybridRetriever) rrfFuse(keywordHits, vectorHits []domain.Hit) []domain.Hit {
	rrfScores := make(map[string]float64)

	for rank, hit := range keywordHits {
		rrfScores[hit.ChunkID] += r.keywordWeight / float64(r.rrfK+rank+1)
	}

	vectorWeight := 1.0 - r.keywordWeight
	for rank, hit := range vectorHits {
		rrfScores[hit.ChunkID] += vectorWeight / float64(r.rrfK+rank+1)
	}

	fused := make([]domain.Hit, 0, len(rrfScores))
	for id, score := range rrfScores {
		fused = append(fused, domain.Hit{ChunkID: id, Score: score})
	}

	sortHits(fused)
	return fused
}

func capHits(hits []domain.Hit, k int) []domain.Hit {
	if len(hits) > k {
		return hits[:k]
	}
	return hits
}
