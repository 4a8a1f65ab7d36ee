// Package eval computes ranking-quality metrics for retrieval runs
// against a known set of relevant pages.
package eval

import "math"

// PrecisionAtK is the fraction of retrieved pages that are relevant.
func PrecisionAtK(retrieved, relevant []int) float64 {
	if len(retrieved) == 0 {
		return 0
	}
	relevantSet := toSet(relevant)
	hits := 0
	for _, p := range retrieved {
		if relevantSet[p] {
			hits++
		}
	}
	return float64(hits) / float64(len(retrieved))
}

// RecallAtK is the fraction of relevant pages that were retrieved.
func RecallAtK(retrieved, relevant []int) float64 {
	if len(relevant) == 0 {
		return 0
	}
	relevantSet := toSet(relevant)
	hits := 0
	for _, p := range retrieved {
		if relevantSet[p] {
			hits++
		}
	}
	return float64(hits) / float64(len(relevant))
}

// ReciprocalRank is 1/rank of the first relevant page in the retrieved
// order, 0 when none of the relevant pages were retrieved.
func ReciprocalRank(retrieved, relevant []int) float64 {
	relevantSet := toSet(relevant)
	for i, p := range retrieved {
		if relevantSet[p] {
			return 1.0 / float64(i+1)
		}
	}
	return 0
}

// NDCG compares a relevance ordering against the ideal ordering of the
// same scores.
func NDCG(scores, ideal []float64) float64 {
	dcg := discountedGain(scores)
	idcg := discountedGain(ideal)
	if idcg == 0 {
		return 0
	}
	return dcg / idcg
}

func discountedGain(scores []float64) float64 {
	gain := 0.0
	for i, score := range scores {
		gain += score / math.Log2(float64(i+2))
	}
	return gain
}

func toSet(pages []int) map[int]bool {
	set := make(map[int]bool, len(pages))
	for _, p := range pages {
		set[p] = true
	}
	return set
}
