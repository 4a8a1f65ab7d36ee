package retriever

import (
	"context"
	"fmt"

	"firerag/internal/domain"
	"firerag/internal/port"
)

// SemanticRetriever embeds the query and searches the vector index.
type SemanticRetriever struct {
	vectors  port.VectorStore
	embedder port.Embedder
}

func NewSemanticRetriever(vectors port.VectorStore, embedder port.Embedder) *SemanticRetriever {
	return &SemanticRetriever{
		vectors:  vectors,
		embedder: embedder,
	}
}

func (r *SemanticRetriever) Search(ctx context.Context, query string, k int) ([]domain.Hit, error) {
	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("embedding returned empty result")
	}

	hits, err := r.vectors.Search(embeddings[0], k)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	return hits, nil
}
