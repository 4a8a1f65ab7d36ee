package usecase

import "firerag/internal/domain"

// Tables on a contributing page usually hold the numeric limits the
// surrounding prose refers to, so a few are pulled in even when the
// funnel missed them.
const maxTableEnrichment = 3

// enrichTables appends table chunks from pages already contributing to
// the result. Appended chunks rank below every scored candidate, so
// the relevance ordering of the context is preserved and no new pages
// are introduced.
func (r *Retriever) enrichTables(candidates []domain.Candidate) []domain.Candidate {
	have := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		have[c.Chunk.ID] = struct{}{}
	}

	added := 0
	for _, page := range collectPages(candidates) {
		if added == maxTableEnrichment {
			break
		}

		chunks, err := r.chunks.GetChunksByPage(page)
		if err != nil {
			r.logger.Warn("failed to load page chunks for table enrichment", "page", page, "error", err)
			continue
		}

		for _, chunk := range chunks {
			if !chunk.IsTable {
				continue
			}
			if _, ok := have[chunk.ID]; ok {
				continue
			}
			candidates = append(candidates, domain.Candidate{
				Chunk:     chunk,
				Relevance: domain.RelevanceMin,
				Rank:      len(candidates),
			})
			have[chunk.ID] = struct{}{}
			added++
			if added == maxTableEnrichment {
				break
			}
		}
	}

	return candidates
}
