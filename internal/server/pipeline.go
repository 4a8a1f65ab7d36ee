package server

import (
	"fmt"
	"log/slog"
	"time"

	"firerag/config"
	"firerag/internal/adapter/analyzer"
	"firerag/internal/adapter/cache"
	"firerag/internal/adapter/embedding"
	"firerag/internal/adapter/llm"
	"firerag/internal/adapter/retriever"
	"firerag/internal/adapter/scorer"
	"firerag/internal/adapter/store"
	"firerag/internal/port"
	"firerag/internal/usecase"
)

// BuildRetriever wires the retrieval funnel over an open index pair:
// candidate source per retrieve.mode, relevance scorer per
// rerank.provider, optional near-duplicate filter and query cache.
func BuildRetriever(cfg *config.Config, ix *store.Index, topK int, queryCache *cache.QueryCache, logger *slog.Logger) (*usecase.Retriever, error) {
	if hash := store.ComputeConfigHash(cfg); ix.Manifest.ConfigHash != hash {
		logger.Warn("index was built with different settings, consider re-running ingest",
			"index_hash", ix.Manifest.ConfigHash, "config_hash", hash)
	}

	tokenizer := analyzer.NewTokenizer(cfg.Ingest.Stemming)

	source, err := buildSource(cfg, ix, tokenizer)
	if err != nil {
		return nil, err
	}

	scoring, err := buildScorer(cfg, tokenizer, logger)
	if err != nil {
		return nil, err
	}

	var dedup *retriever.Dedup
	if cfg.Retrieve.DedupJaccard > 0 {
		dedup = retriever.NewDedup(cfg.Retrieve.DedupJaccard)
	}

	opts := usecase.RetrieveOptions{
		CandidateK:       cfg.Retrieve.CandidateK,
		TopK:             topK,
		GatePolicy:       cfg.Retrieve.Gate.Policy,
		MinRelevance:     cfg.Retrieve.Gate.MinRelevance,
		ChunkOverlap:     cfg.Ingest.ChunkOverlap,
		MaxContextTokens: cfg.Retrieve.MaxContextTokens,
	}

	return usecase.NewRetriever(source, ix.Chunks, scoring, dedup, queryCache, tokenizer, opts, logger), nil
}

// BuildGenerator wires the full answer pipeline: the retrieval funnel
// plus the chat model that turns gated context into structured answers.
func BuildGenerator(cfg *config.Config, ix *store.Index, queryCache *cache.QueryCache, logger *slog.Logger) (*usecase.Generator, error) {
	ret, err := BuildRetriever(cfg, ix, cfg.Retrieve.TopK, queryCache, logger)
	if err != nil {
		return nil, err
	}

	chat, err := buildLLM(cfg)
	if err != nil {
		return nil, err
	}

	return usecase.NewGenerator(ret, chat, logger), nil
}

// BuildEmbedder creates the configured embedding provider. When a
// manifest is given, the provider's dimension must match the one the
// index was built with.
func BuildEmbedder(cfg *config.Config, manifest *store.Manifest) (port.Embedder, error) {
	var embedder port.Embedder

	switch cfg.Embedding.Provider {
	case "mock":
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimension)
	case "openai", "":
		var err error
		embedder, err = embedding.NewOpenAIEmbedder(cfg.Embedding.BaseURL, cfg.Embedding.APIKey,
			cfg.Embedding.Model, cfg.Embedding.Dimension, cfg.Embedding.BatchSize)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Embedding.Provider)
	}

	if manifest != nil && embedder.Dimension() != manifest.Dimension {
		return nil, fmt.Errorf("embedding dimension %d does not match index dimension %d, re-run ingest",
			embedder.Dimension(), manifest.Dimension)
	}
	return embedder, nil
}

func buildSource(cfg *config.Config, ix *store.Index, tokenizer port.Tokenizer) (port.CandidateSource, error) {
	keyword := retriever.NewKeywordRetriever(ix.Chunks, tokenizer, cfg.Retrieve.K1, cfg.Retrieve.B)

	switch cfg.Retrieve.Mode {
	case "keyword":
		return keyword, nil
	case "vector", "":
		embedder, err := BuildEmbedder(cfg, ix.Manifest)
		if err != nil {
			return nil, err
		}
		return retriever.NewSemanticRetriever(ix.Vectors, embedder), nil
	case "hybrid":
		embedder, err := BuildEmbedder(cfg, ix.Manifest)
		if err != nil {
			return nil, err
		}
		semantic := retriever.NewSemanticRetriever(ix.Vectors, embedder)
		return retriever.NewHybridRetriever(keyword, semantic, cfg.Retrieve.RRFK, cfg.Retrieve.KeywordWeight), nil
	default:
		return nil, fmt.Errorf("unsupported retrieve mode: %s", cfg.Retrieve.Mode)
	}
}

func buildScorer(cfg *config.Config, tokenizer port.Tokenizer, logger *slog.Logger) (port.Scorer, error) {
	switch cfg.Rerank.Provider {
	case "lexical":
		return scorer.NewLexicalScorer(tokenizer), nil
	case "llm", "":
		client, err := buildLLM(cfg)
		if err != nil {
			return nil, err
		}
		timeout := time.Duration(cfg.Rerank.TimeoutMS) * time.Millisecond
		return scorer.NewLLMScorer(client, cfg.Rerank.Concurrency, timeout, logger), nil
	default:
		return nil, fmt.Errorf("unsupported rerank provider: %s", cfg.Rerank.Provider)
	}
}

func buildLLM(cfg *config.Config) (port.LLM, error) {
	return llm.NewClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model,
		time.Duration(cfg.LLM.TimeoutMS)*time.Millisecond, cfg.LLM.MaxRetries, cfg.LLM.Temperature)
}
