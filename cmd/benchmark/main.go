package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"firerag/config"
	"firerag/internal/adapter/analyzer"
	"firerag/internal/adapter/retriever"
	"firerag/internal/adapter/scorer"
	"firerag/internal/adapter/store"
	"firerag/internal/domain"
	"firerag/internal/eval"
)

func main() {
	dataDir := flag.String("data", "data", "Index data directory")
	query := flag.String("q", "", "Question to test")
	topK := flag.Int("k", 10, "Number of candidates to inspect")
	expect := flag.String("expect", "", "Comma-separated pages that should be retrieved")
	flag.Parse()

	if *query == "" {
		fmt.Println("Usage: go run cmd/benchmark/main.go -data ./data -q \"question\" [-expect 12,40]")
		fmt.Println("\nRuns keyword retrieval and the offline lexical scorer against the")
		fmt.Println("current index, without any API calls:")
		fmt.Println("  1. Candidate selection (BM25 over the persisted postings)")
		fmt.Println("  2. Relevance scoring (term overlap, scale 0-10)")
		fmt.Println("  3. Ranking quality against the expected pages, if given")
		os.Exit(1)
	}

	cfg, err := config.LoadFromDir(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	ix, err := store.OpenIndex(*dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening index: %v\n", err)
		os.Exit(1)
	}
	defer ix.Close()

	fmt.Println("RETRIEVAL BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Index generation: %d\n", ix.Manifest.Generation)
	fmt.Printf("Chunks indexed:   %d\n", ix.Manifest.TotalChunks)
	fmt.Printf("Embedding model:  %s\n", ix.Manifest.EmbeddingModel)
	fmt.Println()

	fmt.Printf("Query: \"%s\"\n", *query)
	fmt.Println(strings.Repeat("-", 70))

	tokenizer := analyzer.NewTokenizer(cfg.Ingest.Stemming)
	keyword := retriever.NewKeywordRetriever(ix.Chunks, tokenizer, cfg.Retrieve.K1, cfg.Retrieve.B)
	lexical := scorer.NewLexicalScorer(tokenizer)

	ctx := context.Background()

	hits, err := keyword.Search(ctx, *query, *topK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
		os.Exit(1)
	}
	if len(hits) == 0 {
		fmt.Println("No candidates found.")
		os.Exit(0)
	}

	candidates := make([]domain.Candidate, 0, len(hits))
	for _, hit := range hits {
		chunk, err := ix.Chunks.GetChunk(hit.ChunkID)
		if err != nil {
			continue
		}
		candidates = append(candidates, domain.Candidate{
			Chunk:      chunk,
			Similarity: hit.Score,
			Relevance:  domain.RelevanceUnscored,
			Rank:       len(candidates),
		})
	}

	scored, err := lexical.Score(ctx, *query, candidates)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Scoring error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Top %d candidates by relevance:\n\n", len(scored))

	totalRelevance := 0.0
	for i, c := range scored {
		preview := strings.ReplaceAll(c.Chunk.Text, "\n", " ")
		if len(preview) > 150 {
			preview = preview[:150] + "..."
		}

		totalRelevance += c.Relevance

		rating := "LOW"
		if c.Relevance > 7 {
			rating = "HIGH"
		} else if c.Relevance > 5 {
			rating = "GOOD"
		} else if c.Relevance > 3 {
			rating = "OK"
		}

		kind := ""
		if c.Chunk.IsTable {
			kind = " [table]"
		}

		fmt.Printf("%d. [%s %.1f] page %d (bm25 %.3f)%s\n", i+1, rating, c.Relevance, c.Chunk.Page, c.Similarity, kind)
		fmt.Printf("   %s\n\n", preview)
	}

	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("QUALITY METRICS:\n")
	fmt.Printf("  Mean relevance:  %.2f\n", totalRelevance/float64(len(scored)))
	fmt.Printf("  Top-1 relevance: %.2f\n", scored[0].Relevance)

	threshold := cfg.Retrieve.Gate.MinRelevance
	if scored[0].Relevance >= threshold {
		fmt.Printf("  Gate (>= %.1f):  PASS - this question would be answered\n", threshold)
	} else {
		fmt.Printf("  Gate (>= %.1f):  FAIL - this question would get no_information\n", threshold)
	}

	if *expect != "" {
		relevant, err := parsePages(*expect)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid -expect list: %v\n", err)
			os.Exit(1)
		}
		retrieved := retrievedPages(scored)

		scores := make([]float64, len(scored))
		for i, c := range scored {
			scores[i] = c.Relevance
		}
		ideal := append([]float64(nil), scores...)
		sort.Sort(sort.Reverse(sort.Float64Slice(ideal)))

		fmt.Printf("\nRANKING vs expected pages %v:\n", relevant)
		fmt.Printf("  Precision@%d: %.3f\n", len(retrieved), eval.PrecisionAtK(retrieved, relevant))
		fmt.Printf("  Recall@%d:    %.3f\n", len(retrieved), eval.RecallAtK(retrieved, relevant))
		fmt.Printf("  MRR:          %.3f\n", eval.ReciprocalRank(retrieved, relevant))
		fmt.Printf("  NDCG:         %.3f\n", eval.NDCG(scores, ideal))
	}
}

func parsePages(list string) ([]int, error) {
	parts := strings.Split(list, ",")
	pages := make([]int, 0, len(parts))
	for _, part := range parts {
		page, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("bad page number %q", part)
		}
		pages = append(pages, page)
	}
	return pages, nil
}

// retrievedPages lists the distinct pages in rank order.
func retrievedPages(scored []domain.Candidate) []int {
	seen := make(map[int]struct{})
	pages := make([]int, 0, len(scored))
	for _, c := range scored {
		if _, ok := seen[c.Chunk.Page]; ok {
			continue
		}
		seen[c.Chunk.Page] = struct{}{}
		pages = append(pages, c.Chunk.Page)
	}
	return pages
}
