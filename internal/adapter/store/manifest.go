package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"firerag/config"
	"firerag/internal/domain"
)

// CurrentSchemaVersion is the on-disk index format version.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 1

// Manifest names the current index generation: which vector index file
// and chunk store file belong together, and the settings they were
// built with. Ingestion writes the pair first and the manifest last via
// a same-directory rename, so a reader either sees the previous
// complete pair or the new one, never a half-written index.
type Manifest struct {
	SchemaVersion  int       `json:"schema_version"`
	Generation     int64     `json:"generation"`
	IndexFile      string    `json:"index_file"`
	ChunksFile     string    `json:"chunks_file"`
	EmbeddingModel string    `json:"embedding_model"`
	Dimension      int       `json:"dimension"`
	ConfigHash     string    `json:"config_hash"`
	BuiltAt        time.Time `json:"built_at"`
	TotalChunks    int       `json:"total_chunks"`
}

// IndexFileName returns the vector index filename for a generation.
func IndexFileName(generation int64) string {
	return fmt.Sprintf("index-%d.db", generation)
}

// ChunksFileName returns the chunk store filename for a generation.
func ChunksFileName(generation int64) string {
	return fmt.Sprintf("chunks-%d.db", generation)
}

// LoadManifest reads the manifest file. A missing or unreadable
// manifest means no complete ingestion run has finished yet.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: no manifest at %s, run ingest first", domain.ErrIndexUnavailable, path)
		}
		return nil, fmt.Errorf("%w: failed to read manifest: %v", domain.ErrIndexUnavailable, err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: corrupt manifest: %v", domain.ErrIndexUnavailable, err)
	}
	if m.SchemaVersion > CurrentSchemaVersion {
		return nil, fmt.Errorf("%w: index built by a newer version (schema v%d > v%d)", domain.ErrIndexUnavailable, m.SchemaVersion, CurrentSchemaVersion)
	}
	return &m, nil
}

// Save writes the manifest atomically: to a temp file in the same
// directory, then renamed over the target.
func (m *Manifest) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to swap manifest: %w", err)
	}
	return nil
}

// ComputeConfigHash computes a hash of index-relevant configuration.
// A mismatch between this hash and the manifest's indicates the index
// was built with different settings and should be rebuilt.
func ComputeConfigHash(cfg *config.Config) string {
	relevant := struct {
		ChunkSize    int     `json:"chunk_size"`
		ChunkOverlap int     `json:"chunk_overlap"`
		Stemming     bool    `json:"stemming"`
		K1           float64 `json:"k1"`
		B            float64 `json:"b"`
		EmbProvider  string  `json:"emb_provider"`
		EmbModel     string  `json:"emb_model"`
		EmbDimension int     `json:"emb_dimension"`
	}{
		ChunkSize:    cfg.Ingest.ChunkSize,
		ChunkOverlap: cfg.Ingest.ChunkOverlap,
		Stemming:     cfg.Ingest.Stemming,
		K1:           cfg.Retrieve.K1,
		B:            cfg.Retrieve.B,
		EmbProvider:  cfg.Embedding.Provider,
		EmbModel:     cfg.Embedding.Model,
		EmbDimension: cfg.Embedding.Dimension,
	}

	data, _ := json.Marshal(relevant)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:8])
}

// Index is an open index pair together with the manifest that named it.
type Index struct {
	Manifest *Manifest
	Chunks   *BoltChunkStore
	Vectors  *BoltVectorIndex
}

// OpenIndex opens the index pair the manifest currently points at.
// Either file missing or unopenable counts as no index at all, since a
// pair is only usable whole.
func OpenIndex(dataDir string) (*Index, error) {
	m, err := LoadManifest(config.ManifestPath(dataDir))
	if err != nil {
		return nil, err
	}

	chunksPath := filepath.Join(dataDir, m.ChunksFile)
	if _, err := os.Stat(chunksPath); err != nil {
		return nil, fmt.Errorf("%w: chunk store %s missing", domain.ErrIndexUnavailable, m.ChunksFile)
	}
	indexPath := filepath.Join(dataDir, m.IndexFile)
	if _, err := os.Stat(indexPath); err != nil {
		return nil, fmt.Errorf("%w: vector index %s missing", domain.ErrIndexUnavailable, m.IndexFile)
	}

	chunks, err := NewBoltChunkStore(chunksPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	vectors, err := OpenBoltVectorIndex(indexPath)
	if err != nil {
		chunks.Close()
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}

	return &Index{Manifest: m, Chunks: chunks, Vectors: vectors}, nil
}

// Close closes both halves of the pair.
func (ix *Index) Close() error {
	var firstErr error
	if err := ix.Vectors.Close(); err != nil {
		firstErr = err
	}
	if err := ix.Chunks.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// CleanStaleGenerations removes index pair files from earlier
// generations. Called after a successful manifest swap; a reader may
// still hold the old files open, and unlink leaves open handles usable.
func CleanStaleGenerations(dataDir string, keep int64) error {
	for _, prefix := range []string{"index-", "chunks-"} {
		matches, err := filepath.Glob(filepath.Join(dataDir, prefix+"*.db"))
		if err != nil {
			return err
		}
		for _, path := range matches {
			base := filepath.Base(path)
			gen, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(base, prefix), ".db"), 10, 64)
			if err != nil || gen == keep {
				continue
			}
			if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("failed to remove stale %s: %w", base, err)
			}
		}
	}
	return nil
}
