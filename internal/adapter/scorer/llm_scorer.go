package scorer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"firerag/internal/adapter/llm"
	"firerag/internal/domain"
	"firerag/internal/port"
	"firerag/internal/prompt"
)

// maxPassageLen bounds the chunk text shown to the scoring model.
const maxPassageLen = 1000

// LLMScorer assigns each candidate a relevance score with one model
// call per candidate. Calls run concurrently up to a bounded limit and
// results are written back by index, so completion order never affects
// the output. A failed call degrades that one candidate to the minimum
// score; only a batch where every call failed because the dependency is
// unreachable surfaces as an error.
type LLMScorer struct {
	llm         port.LLM
	concurrency int
	timeout     time.Duration
	logger      *slog.Logger
}

func NewLLMScorer(llmClient port.LLM, concurrency int, timeout time.Duration, logger *slog.Logger) *LLMScorer {
	if concurrency <= 0 {
		concurrency = 4
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &LLMScorer{
		llm:         llmClient,
		concurrency: concurrency,
		timeout:     timeout,
		logger:      logger,
	}
}

func (s *LLMScorer) Score(ctx context.Context, query string, candidates []domain.Candidate) ([]domain.Candidate, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidQuery)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates to score", domain.ErrInvalidQuery)
	}

	scored := make([]domain.Candidate, len(candidates))
	copy(scored, candidates)
	failures := make([]error, len(candidates))

	var wg sync.WaitGroup
	sem := make(chan struct{}, s.concurrency)

	for i := range scored {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			score, err := s.scoreOne(ctx, query, scored[i].Chunk)
			if err != nil {
				failures[i] = err
				scored[i].Relevance = domain.RelevanceMin
				s.logger.Warn("scoring failed, degrading candidate to minimum relevance",
					"chunk", scored[i].Chunk.ID, "error", err)
				return
			}
			scored[i].Relevance = score
		}(i)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := batchFailure(failures); err != nil {
		return nil, fmt.Errorf("failed to score candidates for query %q: %w", query, err)
	}

	sortByRelevance(scored)
	return scored, nil
}

func (s *LLMScorer) scoreOne(ctx context.Context, query string, chunk domain.Chunk) (float64, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	userPrompt, err := prompt.ScoringUser(query, truncate(chunk.Text, maxPassageLen))
	if err != nil {
		return 0, err
	}

	reply, err := s.llm.Generate(callCtx, prompt.ScoringSystem(), userPrompt)
	if err != nil {
		return 0, err
	}
	return parseScore(reply)
}

func (s *LLMScorer) ModelName() string {
	return s.llm.ModelName()
}

// batchFailure decides whether a batch outcome is a dependency outage.
// Any successful candidate, or any failure that is merely a timeout or
// a malformed reply, means the batch proceeds with degraded scores.
func batchFailure(failures []error) error {
	var first error
	for _, err := range failures {
		if err == nil {
			return nil
		}
		if !dependencyUnreachable(err) {
			return nil
		}
		if first == nil {
			first = err
		}
	}
	return fmt.Errorf("%w: %v", domain.ErrScoringUnavailable, first)
}

// dependencyUnreachable classifies a scoring failure. Auth rejections,
// rate limits and server errors that survived retries, and transport
// errors other than timeouts all point at the dependency itself rather
// than at one candidate's call.
func dependencyUnreachable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}

	var statusErr *llm.StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusUnauthorized,
			statusErr.StatusCode == http.StatusForbidden,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= 500:
			return true
		}
		return false
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return !urlErr.Timeout()
	}
	return false
}

var scoreRe = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// parseScore extracts the first numeric substring from a model reply
// and clamps it to the score bounds.
func parseScore(reply string) (float64, error) {
	match := scoreRe.FindString(reply)
	if match == "" {
		return 0, fmt.Errorf("no numeric score in reply %q", truncate(reply, 80))
	}

	score, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse score %q: %w", match, err)
	}

	if score < domain.RelevanceMin {
		score = domain.RelevanceMin
	}
	if score > domain.RelevanceMax {
		score = domain.RelevanceMax
	}
	return score, nil
}

// sortByRelevance orders candidates by relevance descending, ties
// broken by the original similarity rank.
func sortByRelevance(candidates []domain.Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Relevance != candidates[j].Relevance {
			return candidates[i].Relevance > candidates[j].Relevance
		}
		return candidates[i].Rank < candidates[j].Rank
	})
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
