package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the firerag service. Values come
// from defaults, then an optional YAML file, then FIRERAG_* environment
// variables (API keys are environment-only).
type Config struct {
	Ingest    IngestConfig    `yaml:"ingest"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	Rerank    RerankConfig    `yaml:"rerank"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// IngestConfig holds ingestion configuration.
type IngestConfig struct {
	Includes     []string `yaml:"includes"`
	Excludes     []string `yaml:"excludes"`
	ChunkSize    int      `yaml:"chunk_size"`    // characters per chunk window
	ChunkOverlap int      `yaml:"chunk_overlap"` // characters shared between neighbors
	Stemming     bool     `yaml:"stemming"`
}

// RetrieveConfig holds candidate selection and context assembly configuration.
type RetrieveConfig struct {
	Mode             string     `yaml:"mode" env:"FIRERAG_RETRIEVE_MODE"` // "vector", "keyword", "hybrid"
	CandidateK       int        `yaml:"candidate_k"`
	TopK             int        `yaml:"top_k"`
	DedupJaccard     float64    `yaml:"dedup_jaccard"` // near-duplicate candidate filter (0 = disabled)
	RRFK             int        `yaml:"rrf_k"`
	KeywordWeight    float64    `yaml:"keyword_weight"`
	K1               float64    `yaml:"k1"`
	B                float64    `yaml:"b"`
	MaxContextTokens int        `yaml:"max_context_tokens"` // 0 = unlimited
	Gate             GateConfig `yaml:"gate"`
	CacheSize        int        `yaml:"cache_size"`
	CacheTTLSeconds  int        `yaml:"cache_ttl_seconds"`
}

// GateConfig holds the relevance-gate predicate. The gate decides
// whether a scored candidate set becomes an answer context or a
// "no information found" outcome.
type GateConfig struct {
	Policy       string  `yaml:"policy"` // "any", "top", "mean"
	MinRelevance float64 `yaml:"min_relevance"`
}

// RerankConfig holds relevance-scoring configuration.
type RerankConfig struct {
	Provider    string `yaml:"provider"` // "llm", "lexical"
	Concurrency int    `yaml:"concurrency"`
	TimeoutMS   int    `yaml:"timeout_ms"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"` // "openai" (OpenAI-compatible), "mock"
	BaseURL   string `yaml:"base_url" env:"FIRERAG_EMBED_BASE_URL"`
	Model     string `yaml:"model"`
	APIKey    string `yaml:"-" env:"OPENAI_API_KEY"`
	Dimension int    `yaml:"dimension"`
	BatchSize int    `yaml:"batch_size"`
}

// LLMConfig holds the chat-completion configuration shared by the
// relevance scorer and the answer generator.
type LLMConfig struct {
	BaseURL     string  `yaml:"base_url" env:"FIRERAG_LLM_BASE_URL"`
	Model       string  `yaml:"model" env:"FIRERAG_LLM_MODEL"`
	APIKey      string  `yaml:"-" env:"GROQ_API_KEY"`
	TimeoutMS   int     `yaml:"timeout_ms"`
	MaxRetries  int     `yaml:"max_retries"`
	Temperature float64 `yaml:"temperature"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr             string `yaml:"addr" env:"FIRERAG_ADDR"`
	MediaDir         string `yaml:"media_dir" env:"FIRERAG_MEDIA_DIR"`
	RequestTimeoutMS int    `yaml:"request_timeout_ms"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"FIRERAG_LOG_LEVEL"`
	Format string `yaml:"format" env:"FIRERAG_LOG_FORMAT"` // "json", "pretty"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Ingest: IngestConfig{
			Includes:     []string{"**/page_*.html", "**/page_*.htm"},
			Excludes:     []string{"**/.*/**"},
			ChunkSize:    1000,
			ChunkOverlap: 150,
			Stemming:     true,
		},
		Retrieve: RetrieveConfig{
			Mode:          "vector",
			CandidateK:    20,
			TopK:          5,
			DedupJaccard:  0, // disabled unless tuned
			RRFK:          60,
			KeywordWeight: 0.5,
			K1:            1.2,
			B:             0.75,
			Gate: GateConfig{
				Policy:       "any",
				MinRelevance: 5.0,
			},
			CacheSize:       100,
			CacheTTLSeconds: 300,
		},
		Rerank: RerankConfig{
			Provider:    "llm",
			Concurrency: 4,
			TimeoutMS:   3000,
		},
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			BaseURL:   "https://api.openai.com/v1",
			Model:     "text-embedding-3-small",
			Dimension: 1536,
			BatchSize: 64,
		},
		LLM: LLMConfig{
			BaseURL:     "https://api.groq.com/openai/v1",
			Model:       "llama-3.1-8b-instant",
			TimeoutMS:   30000,
			MaxRetries:  2,
			Temperature: 0,
		},
		Server: ServerConfig{
			Addr:             ":8080",
			MediaDir:         "media",
			RequestTimeoutMS: 60000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a YAML file and applies environment
// overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, applyEnv(cfg)
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return cfg, applyEnv(cfg)
}

// LoadFromDir loads configuration from a directory (looks for firerag.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "firerag.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".firerag", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	cfg := DefaultConfig()
	return cfg, applyEnv(cfg)
}

func applyEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("failed to apply environment overrides: %w", err)
	}
	return nil
}

// ManifestPath returns the path to the index-pair manifest.
func ManifestPath(dataDir string) string {
	return filepath.Join(dataDir, "manifest.json")
}

// EnsureDataDir ensures the data directory exists.
func EnsureDataDir(dataDir string) error {
	return os.MkdirAll(dataDir, 0755)
}
