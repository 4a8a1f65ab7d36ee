package port

import (
	"context"

	"firerag/internal/domain"
)

// Scorer assigns each candidate a relevance score for the query and
// returns the batch sorted by relevance, best first. Ties keep the
// original similarity-rank order. A failure scoring one candidate
// degrades that candidate to the minimum score and never aborts the
// batch; only a dependency that is unreachable for the whole batch
// surfaces as an error.
type Scorer interface {
	Score(ctx context.Context, query string, candidates []domain.Candidate) ([]domain.Candidate, error)

	// ModelName returns the name of the scoring model.
	ModelName() string
}
