package port

import (
	"context"

	"firerag/internal/domain"
)

// CandidateSource selects candidate chunks for a query. Implementations
// cover vector similarity, keyword (BM25) search, and their fusion; all
// return at most k hits in descending score order without resolving the
// chunk bodies.
type CandidateSource interface {
	Search(ctx context.Context, query string, k int) ([]domain.Hit, error)
}
