package retriever

import (
	"firerag/internal/domain"
)

// Dedup filters near-duplicate candidates before scoring. Overlapping
// chunk windows from adjacent positions can both land in the pool;
// keeping only the earlier-ranked of any pair above the Jaccard
// threshold stops the context filling up with repeats.
type Dedup struct {
	threshold float64
}

// NewDedup creates a duplicate filter. A threshold of 0 or less
// disables filtering.
func NewDedup(threshold float64) *Dedup {
	return &Dedup{threshold: threshold}
}

func (d *Dedup) Filter(candidates []domain.Candidate) []domain.Candidate {
	if d.threshold <= 0 || len(candidates) < 2 {
		return candidates
	}

	kept := make([]domain.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if len(c.Chunk.Tokens) == 0 {
			kept = append(kept, c)
			continue
		}

		dup := false
		for _, sel := range kept {
			if jaccardSimilarity(c.Chunk.Tokens, sel.Chunk.Tokens) > d.threshold {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, c)
		}
	}
	return kept
}

// jaccardSimilarity computes the Jaccard similarity between two token sets.
func jaccardSimilarity(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	setA := make(map[string]struct{}, len(a))
	for _, t := range a {
		setA[t] = struct{}{}
	}

	setB := make(map[string]struct{}, len(b))
	for _, t := range b {
		setB[t] = struct{}{}
	}

	intersection := 0
	for t := range setA {
		if _, exists := setB[t]; exists {
			intersection++
		}
	}

	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0.0
	}

	return float64(intersection) / float64(union)
}
