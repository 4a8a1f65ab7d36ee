package domain

import "errors"

// Sentinel errors for the retrieval pipeline. Callers classify with
// errors.Is; adapters wrap these with stage and query context.
var (
	// ErrInvalidQuery rejects empty or unusable caller input. Surfaced
	// immediately, never retried.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrIndexUnavailable means the persisted index pair (vector index
	// plus chunk metadata) cannot be loaded. Fatal for the request; the
	// service should report itself unready.
	ErrIndexUnavailable = errors.New("index unavailable")

	// ErrChunkNotFound means a chunk ID known to the index is missing
	// from the chunk store. The orchestrator drops the candidate and
	// continues; the error only reaches callers of the store directly.
	ErrChunkNotFound = errors.New("chunk not found")

	// ErrScoringUnavailable means the relevance-scoring dependency was
	// unreachable for the whole batch. Retryable by the caller, unlike a
	// per-candidate scoring failure, which degrades that candidate only.
	ErrScoringUnavailable = errors.New("scoring dependency unavailable")
)
