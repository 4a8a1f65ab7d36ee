package retriever

import (
	"context"
	"math"
	"sort"

	"firerag/internal/domain"
	"firerag/internal/port"
)

// KeywordRetriever scores chunks with BM25 over the persisted postings.
type KeywordRetriever struct {
	store     port.ChunkStore
	tokenizer port.Tokenizer
	k1        float64
	b         float64
}

func NewKeywordRetriever(store port.ChunkStore, tokenizer port.Tokenizer, k1, b float64) *KeywordRetriever {
	return &KeywordRetriever{
		store:     store,
		tokenizer: tokenizer,
		k1:        k1,
		b:         b,
	}
}

func (r *KeywordRetriever) Search(ctx context.Context, query string, k int) ([]domain.Hit, error) {
	queryTokens := r.tokenizer.Tokenize(query)
	if len(queryTokens) == 0 {
		return nil, nil
	}

	stats, err := r.store.GetStats()
	if err != nil {
		return nil, err
	}
	if stats.TotalChunks == 0 {
		return nil, nil
	}

	avgDl := stats.AvgChunkLen
	if avgDl == 0 {
		avgDl = 1
	}

	chunkScores := make(map[string]float64)
	chunkLengths := make(map[string]int)

	for _, term := range queryTokens {
		postings, err := r.store.GetPostings(term)
		if err != nil {
			continue
		}

		n := float64(len(postings))
		N := float64(stats.TotalChunks)
		idf := math.Log((N-n+0.5)/(n+0.5) + 1)

		for _, posting := range postings {
			if _, exists := chunkLengths[posting.ChunkID]; !exists {
				chunk, err := r.store.GetChunk(posting.ChunkID)
				if err != nil {
					continue
				}
				length := chunk.TokenCount
				if length == 0 {
					length = len(chunk.Tokens)
				}
				chunkLengths[posting.ChunkID] = length
			}

			dl := float64(chunkLengths[posting.ChunkID])
			tf := float64(posting.TF)

			score := idf * (tf * (r.k1 + 1)) / (tf + r.k1*(1-r.b+r.b*dl/avgDl))
			chunkScores[posting.ChunkID] += score
		}
	}

	hits := make([]domain.Hit, 0, len(chunkScores))
	for id, score := range chunkScores {
		hits = append(hits, domain.Hit{ChunkID: id, Score: score})
	}

	sortHits(hits)

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// sortHits orders by score descending with chunk ID as tiebreak, so
// map iteration order never leaks into results.
func sortHits(hits []domain.Hit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
}
