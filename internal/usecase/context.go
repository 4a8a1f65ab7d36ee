package usecase

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"firerag/internal/domain"
	"firerag/internal/port"
)

const (
	blockSeparator = "\n\n---\n\n"

	// Boundary text shorter than this is ordinary repetition, not a
	// chunking artifact, and is left alone.
	minTrimOverlap = 20
)

// buildResult assembles the final context from gated candidates in
// relevance order. Consecutive blocks that share boundary text from
// the chunking overlap have the duplicate prefix trimmed from the
// later chunk. Pages and media come only from chunks that contribute
// text to the context.
func buildResult(candidates []domain.Candidate, chunkOverlap, maxTokens int, tokenizer port.Tokenizer) *domain.RetrievalResult {
	blocks := make([]string, 0, len(candidates))
	contributing := make([]domain.Candidate, 0, len(candidates))

	usedTokens := 0
	prevText := ""
	for _, c := range candidates {
		text := strings.TrimSpace(c.Chunk.Text)
		if text == "" {
			continue
		}

		original := text
		if prevText != "" && chunkOverlap > 0 {
			text = trimBoundaryOverlap(prevText, text, chunkOverlap)
			if text == "" {
				continue
			}
		}

		if maxTokens > 0 && tokenizer != nil {
			cost := tokenizer.CountTokens(text)
			if len(blocks) > 0 && usedTokens+cost > maxTokens {
				break
			}
			usedTokens += cost
		}

		blocks = append(blocks, fmt.Sprintf("[Page %d]\n%s", c.Chunk.Page, text))
		contributing = append(contributing, c)
		prevText = original
	}

	if len(blocks) == 0 {
		return nil
	}

	return &domain.RetrievalResult{
		Context:  strings.Join(blocks, blockSeparator),
		Pages:    collectPages(contributing),
		Media:    collectMedia(contributing),
		Diagrams: collectDiagrams(contributing),
	}
}

// trimBoundaryOverlap removes from next the longest prefix that
// exactly matches a suffix of prev, bounded by the configured chunk
// overlap. Matching is exact so assembly stays deterministic.
func trimBoundaryOverlap(prev, next string, maxOverlap int) string {
	limit := maxOverlap
	if len(next) < limit {
		limit = len(next)
	}
	if len(prev) < limit {
		limit = len(prev)
	}

	for n := limit; n >= minTrimOverlap; n-- {
		if n < len(next) && !utf8.RuneStart(next[n]) {
			continue
		}
		if strings.HasSuffix(prev, next[:n]) {
			return strings.TrimSpace(next[n:])
		}
	}

	return next
}

// collectPages returns distinct page numbers in first-appearance order.
func collectPages(candidates []domain.Candidate) []int {
	seen := make(map[int]struct{}, len(candidates))
	pages := make([]int, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := seen[c.Chunk.Page]; ok {
			continue
		}
		seen[c.Chunk.Page] = struct{}{}
		pages = append(pages, c.Chunk.Page)
	}
	return pages
}

// collectMedia returns distinct media references in first-appearance order.
func collectMedia(candidates []domain.Candidate) []string {
	seen := make(map[string]struct{})
	media := make([]string, 0)
	for _, c := range candidates {
		for _, m := range c.Chunk.Media {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			media = append(media, m)
		}
	}
	return media
}

// collectDiagrams returns the distinct diagram references cited by
// contributing chunks, sorted for stable output.
func collectDiagrams(candidates []domain.Candidate) []string {
	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, c := range candidates {
		for _, id := range c.Chunk.DiagramIDs {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
