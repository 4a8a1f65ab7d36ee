package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"firerag/internal/adapter/cache"
	"firerag/internal/adapter/retriever"
	"firerag/internal/domain"
	"firerag/internal/port"
)

// Gate policies deciding whether a scored candidate set is relevant
// enough to answer from.
const (
	GatePolicyAny  = "any"
	GatePolicyTop  = "top"
	GatePolicyMean = "mean"
)

// RetrieveOptions tunes the retrieval funnel.
type RetrieveOptions struct {
	// CandidateK is the fan-out requested from the candidate source
	// before reranking.
	CandidateK int
	// TopK is the number of reranked candidates kept for assembly.
	TopK int
	// GatePolicy selects the relevance gate predicate.
	GatePolicy string
	// MinRelevance is the gate threshold on the 0-10 relevance scale.
	MinRelevance float64
	// ChunkOverlap is the ingest-time overlap in characters, used to
	// bound boundary dedup during assembly. Zero disables trimming.
	ChunkOverlap int
	// MaxContextTokens caps the assembled context. Zero means no cap.
	MaxContextTokens int
}

// Retriever runs the two-stage retrieval funnel: candidate selection,
// relevance scoring, gating, and context assembly. It holds no mutable
// state of its own, so one instance serves concurrent requests.
type Retriever struct {
	source    port.CandidateSource
	chunks    port.ChunkStore
	scorer    port.Scorer
	dedup     *retriever.Dedup
	cache     *cache.QueryCache
	tokenizer port.Tokenizer
	opts      RetrieveOptions
	logger    *slog.Logger
}

// NewRetriever creates a retriever. Dedup, queryCache, and tokenizer
// may be nil to disable near-duplicate filtering, result caching, and
// the context token budget respectively.
func NewRetriever(
	source port.CandidateSource,
	chunks port.ChunkStore,
	scorer port.Scorer,
	dedup *retriever.Dedup,
	queryCache *cache.QueryCache,
	tokenizer port.Tokenizer,
	opts RetrieveOptions,
	logger *slog.Logger,
) *Retriever {
	if opts.CandidateK <= 0 {
		opts.CandidateK = 20
	}
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.GatePolicy == "" {
		opts.GatePolicy = GatePolicyAny
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		source:    source,
		chunks:    chunks,
		scorer:    scorer,
		dedup:     dedup,
		cache:     queryCache,
		tokenizer: tokenizer,
		opts:      opts,
		logger:    logger,
	}
}

// Retrieve runs the funnel for one query. A nil result with a nil
// error means the index holds nothing relevant enough to answer from;
// callers must treat that as "no information", not as a failure.
func (r *Retriever) Retrieve(ctx context.Context, query string) (*domain.RetrievalResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidQuery)
	}

	if r.cache != nil {
		if result, ok := r.cache.Get(query, r.opts.TopK); ok {
			r.logger.Debug("query cache hit", "query", query)
			return result, nil
		}
	}

	hits, err := r.source.Search(ctx, query, r.opts.CandidateK)
	if err != nil {
		return nil, fmt.Errorf("candidate selection failed for query %q: %w", query, err)
	}
	if len(hits) == 0 {
		r.logger.Info("no candidates for query", "query", query)
		return r.finish(query, nil), nil
	}

	candidates, err := r.resolve(hits)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		r.logger.Warn("all candidates missing from chunk store", "query", query)
		return r.finish(query, nil), nil
	}

	if r.dedup != nil {
		candidates = r.dedup.Filter(candidates)
	}

	scored, err := r.scorer.Score(ctx, query, candidates)
	if err != nil {
		return nil, fmt.Errorf("relevance scoring failed for query %q: %w", query, err)
	}

	if len(scored) > r.opts.TopK {
		scored = scored[:r.opts.TopK]
	}

	if !r.gatePasses(scored) {
		r.logger.Info("relevance gate rejected candidates",
			"query", query,
			"policy", r.opts.GatePolicy,
			"min_relevance", r.opts.MinRelevance,
			"candidates", len(scored))
		return r.finish(query, nil), nil
	}

	scored = r.enrichTables(scored)

	result := buildResult(scored, r.opts.ChunkOverlap, r.opts.MaxContextTokens, r.tokenizer)
	if result == nil {
		r.logger.Info("no usable text in gated candidates", "query", query)
	}

	return r.finish(query, result), nil
}

// resolve looks up each hit's chunk. A chunk the index names but the
// store lacks is logged and dropped; the pool is probabilistic, so one
// stale entry must not fail the request.
func (r *Retriever) resolve(hits []domain.Hit) ([]domain.Candidate, error) {
	candidates := make([]domain.Candidate, 0, len(hits))
	for _, hit := range hits {
		chunk, err := r.chunks.GetChunk(hit.ChunkID)
		if err != nil {
			if errors.Is(err, domain.ErrChunkNotFound) {
				r.logger.Warn("index references missing chunk", "chunk_id", hit.ChunkID)
				continue
			}
			return nil, fmt.Errorf("failed to resolve chunk %s: %w", hit.ChunkID, err)
		}
		candidates = append(candidates, domain.Candidate{
			Chunk:      chunk,
			Similarity: hit.Score,
			Relevance:  domain.RelevanceUnscored,
			Rank:       len(candidates),
		})
	}
	return candidates, nil
}

// gatePasses applies the configured relevance gate to the truncated
// candidate set. Failing the gate is a designed negative outcome, not
// an error.
func (r *Retriever) gatePasses(candidates []domain.Candidate) bool {
	if len(candidates) == 0 {
		return false
	}

	switch r.opts.GatePolicy {
	case GatePolicyTop:
		return candidates[0].Relevance >= r.opts.MinRelevance
	case GatePolicyMean:
		sum := 0.0
		for _, c := range candidates {
			sum += c.Relevance
		}
		return sum/float64(len(candidates)) >= r.opts.MinRelevance
	default:
		for _, c := range candidates {
			if c.Relevance >= r.opts.MinRelevance {
				return true
			}
		}
		return false
	}
}

// finish records the outcome in the cache. Empty results are cached
// too, so repeated hopeless queries skip the scoring stage.
func (r *Retriever) finish(query string, result *domain.RetrievalResult) *domain.RetrievalResult {
	if r.cache != nil {
		r.cache.Put(query, r.opts.TopK, result)
	}
	return result
}
