package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Ingest.ChunkSize != 1000 {
		t.Errorf("expected ChunkSize=1000, got %d", cfg.Ingest.ChunkSize)
	}
	if cfg.Ingest.ChunkOverlap != 150 {
		t.Errorf("expected ChunkOverlap=150, got %d", cfg.Ingest.ChunkOverlap)
	}
	if cfg.Retrieve.CandidateK != 20 {
		t.Errorf("expected CandidateK=20, got %d", cfg.Retrieve.CandidateK)
	}
	if cfg.Retrieve.TopK != 5 {
		t.Errorf("expected TopK=5, got %d", cfg.Retrieve.TopK)
	}
	if cfg.Retrieve.Gate.Policy != "any" {
		t.Errorf("expected gate policy=any, got %s", cfg.Retrieve.Gate.Policy)
	}
	if cfg.Retrieve.Gate.MinRelevance != 5.0 {
		t.Errorf("expected MinRelevance=5.0, got %f", cfg.Retrieve.Gate.MinRelevance)
	}
	if cfg.Rerank.TimeoutMS != 3000 {
		t.Errorf("expected rerank timeout 3000ms, got %d", cfg.Rerank.TimeoutMS)
	}
	if cfg.LLM.MaxRetries != 2 {
		t.Errorf("expected MaxRetries=2, got %d", cfg.LLM.MaxRetries)
	}
	if cfg.LLM.Temperature != 0 {
		t.Errorf("expected Temperature=0, got %f", cfg.LLM.Temperature)
	}
	if cfg.Embedding.BatchSize != 64 {
		t.Errorf("expected embed BatchSize=64, got %d", cfg.Embedding.BatchSize)
	}
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/firerag.yaml")
	if err != nil {
		t.Errorf("expected no error for non-existent file, got %v", err)
	}
	if cfg == nil {
		t.Error("expected default config, got nil")
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "firerag.yaml")

	content := `
retrieve:
  candidate_k: 30
  top_k: 3
  gate:
    policy: top
    min_relevance: 6.5
rerank:
  provider: lexical
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Retrieve.CandidateK != 30 {
		t.Errorf("expected CandidateK=30, got %d", cfg.Retrieve.CandidateK)
	}
	if cfg.Retrieve.TopK != 3 {
		t.Errorf("expected TopK=3, got %d", cfg.Retrieve.TopK)
	}
	if cfg.Retrieve.Gate.Policy != "top" {
		t.Errorf("expected gate policy=top, got %s", cfg.Retrieve.Gate.Policy)
	}
	if cfg.Retrieve.Gate.MinRelevance != 6.5 {
		t.Errorf("expected MinRelevance=6.5, got %f", cfg.Retrieve.Gate.MinRelevance)
	}
	if cfg.Rerank.Provider != "lexical" {
		t.Errorf("expected rerank provider=lexical, got %s", cfg.Rerank.Provider)
	}

	// Untouched sections keep their defaults.
	if cfg.Ingest.ChunkSize != 1000 {
		t.Errorf("expected default ChunkSize=1000, got %d", cfg.Ingest.ChunkSize)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FIRERAG_RETRIEVE_MODE", "hybrid")
	t.Setenv("GROQ_API_KEY", "test-key")
	t.Setenv("FIRERAG_ADDR", ":9999")

	cfg, err := Load("/nonexistent/path/firerag.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Retrieve.Mode != "hybrid" {
		t.Errorf("expected mode=hybrid from env, got %s", cfg.Retrieve.Mode)
	}
	if cfg.LLM.APIKey != "test-key" {
		t.Errorf("expected API key from env, got %q", cfg.LLM.APIKey)
	}
	if cfg.Server.Addr != ":9999" {
		t.Errorf("expected addr=:9999 from env, got %s", cfg.Server.Addr)
	}
}

func TestLoadFromDir(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "firerag.yaml")

	content := `
server:
  addr: ":7070"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Addr != ":7070" {
		t.Errorf("expected addr=:7070, got %s", cfg.Server.Addr)
	}
}
