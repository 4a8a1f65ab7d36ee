//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"syscall/js"

	"firerag/internal/adapter/analyzer"
	"firerag/internal/adapter/chunker"
	"firerag/internal/adapter/memstore"
	"firerag/internal/adapter/retriever"
	"firerag/internal/adapter/scorer"
	"firerag/internal/domain"
	"firerag/internal/port"
	"firerag/internal/usecase"
)

var (
	store       *memstore.MemoryStore
	tokenizer   *analyzer.Tokenizer
	textChunker *chunker.TextChunker
	keyword     *retriever.KeywordRetriever
	lexical     *scorer.LexicalScorer
	funnel      *usecase.Retriever

	totalTokens int
	totalChunks int
	totalTables int
)

func init() {
	tokenizer = analyzer.NewTokenizer(true)
	textChunker = chunker.NewTextChunker(1000, 150, tokenizer)
	lexical = scorer.NewLexicalScorer(tokenizer)
	reset()
}

// reset rebuilds everything that holds the store pointer.
func reset() {
	store = memstore.NewMemoryStore()
	keyword = retriever.NewKeywordRetriever(store, tokenizer, 1.2, 0.75)
	funnel = usecase.NewRetriever(keyword, store, lexical, nil, nil, tokenizer,
		usecase.RetrieveOptions{MinRelevance: 5.0, ChunkOverlap: 150},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	totalTokens = 0
	totalChunks = 0
	totalTables = 0
}

func main() {
	c := make(chan struct{})

	js.Global().Set("fireragIndex", js.FuncOf(indexPage))
	js.Global().Set("fireragQuery", js.FuncOf(queryPages))
	js.Global().Set("fireragContext", js.FuncOf(buildContext))
	js.Global().Set("fireragClear", js.FuncOf(clearIndex))
	js.Global().Set("fireragStats", js.FuncOf(getStats))

	<-c
}

func indexPage(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return makeError("usage: fireragIndex(page, text)")
	}

	pageNum := args[0].Int()
	text := args[1].String()

	parsed := &chunker.ParsedPage{Number: pageNum, Text: text}
	chunks := textChunker.ChunkPage(parsed, nil)
	if len(chunks) == 0 {
		return makeError(fmt.Sprintf("no content on page %d", pageNum))
	}

	page := port.IndexedPage{
		Page:     domain.Page{Number: pageNum, ChunkIDs: make([]string, len(chunks))},
		Chunks:   chunks,
		Postings: make(map[string]map[string]int),
	}
	for i, chunk := range chunks {
		page.Page.ChunkIDs[i] = chunk.ID
		if chunk.IsTable {
			totalTables++
		}
		totalTokens += len(chunk.Tokens)
		for _, token := range chunk.Tokens {
			if page.Postings[token] == nil {
				page.Postings[token] = make(map[string]int)
			}
			page.Postings[token][chunk.ID]++
		}
	}

	if err := store.BatchIndex([]port.IndexedPage{page}); err != nil {
		return makeError("indexing failed: " + err.Error())
	}
	totalChunks += len(chunks)

	pages, _ := store.ListPages()
	store.UpdateStats(domain.Stats{
		TotalPages:  len(pages),
		TotalChunks: totalChunks,
		TotalTables: totalTables,
		AvgChunkLen: float64(totalTokens) / float64(totalChunks),
	})

	return makeResult(map[string]interface{}{
		"success": true,
		"page":    pageNum,
		"chunks":  len(chunks),
	})
}

func queryPages(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeError("usage: fireragQuery(question, [topK])")
	}

	question := args[0].String()
	topK := 5
	if len(args) > 1 {
		topK = args[1].Int()
	}

	hits, err := keyword.Search(context.Background(), question, topK*2)
	if err != nil {
		return makeError("search failed: " + err.Error())
	}
	if len(hits) == 0 {
		return makeResult(map[string]interface{}{
			"results":  []interface{}{},
			"question": question,
		})
	}

	candidates := make([]domain.Candidate, 0, len(hits))
	for _, hit := range hits {
		chunk, err := store.GetChunk(hit.ChunkID)
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

	scored, err := lexical.Score(context.Background(), question, candidates)
	if err != nil {
		return makeError("scoring failed: " + err.Error())
	}
	if len(scored) > topK {
		scored = scored[:topK]
	}

	output := make([]map[string]interface{}, 0, len(scored))
	for _, c := range scored {
		output = append(output, map[string]interface{}{
			"page":      c.Chunk.Page,
			"text":      c.Chunk.Text,
			"relevance": c.Relevance,
			"bm25":      c.Similarity,
			"table":     c.Chunk.IsTable,
		})
	}

	return makeResult(map[string]interface{}{
		"results":  output,
		"question": question,
	})
}

// buildContext runs the full funnel for a question and returns the
// context block an answer model would receive, or found=false when the
// relevance gate declines.
func buildContext(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return makeError("usage: fireragContext(question)")
	}

	result, err := funnel.Retrieve(context.Background(), args[0].String())
	if err != nil {
		return makeError("retrieval failed: " + err.Error())
	}
	if result == nil {
		return makeResult(map[string]interface{}{
			"found": false,
		})
	}

	return makeResult(map[string]interface{}{
		"found":    true,
		"context":  result.Context,
		"pages":    result.Pages,
		"diagrams": result.Diagrams,
	})
}

func clearIndex(this js.Value, args []js.Value) interface{} {
	reset()
	return makeResult(map[string]interface{}{
		"success": true,
	})
}

func getStats(this js.Value, args []js.Value) interface{} {
	stats, _ := store.GetStats()
	pages, _ := store.ListPages()

	numbers := make([]int, len(pages))
	for i, page := range pages {
		numbers[i] = page.Number
	}

	return makeResult(map[string]interface{}{
		"totalPages":  stats.TotalPages,
		"totalChunks": stats.TotalChunks,
		"totalTables": stats.TotalTables,
		"avgChunkLen": stats.AvgChunkLen,
		"pages":       numbers,
	})
}

func makeError(msg string) interface{} {
	result, _ := json.Marshal(map[string]interface{}{
		"error": msg,
	})
	return string(result)
}

func makeResult(data map[string]interface{}) interface{} {
	result, _ := json.Marshal(data)
	return string(result)
}
