package port

import (
	"context"

	"firerag/internal/domain"
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates embeddings for the given texts.
	// Returns a slice of vectors, one per input text.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}

// VectorStore stores and searches embedding vectors.
type VectorStore interface {
	// Upsert adds or updates vectors in the store.
	Upsert(items []VectorItem) error

	// Search finds the k nearest vectors to the query, best first.
	// Results are deterministic for a fixed store state and query.
	Search(query []float32, k int) ([]domain.Hit, error)

	// Count returns the number of vectors in the store.
	Count() (int, error)

	Close() error
}

// VectorItem represents a vector to be stored.
type VectorItem struct {
	ID     string    // Chunk ID
	Vector []float32 // Embedding vector
}
