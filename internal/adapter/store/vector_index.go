package store

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.etcd.io/bbolt"

	"firerag/internal/domain"
	"firerag/internal/port"
)

var (
	bucketVectors    = []byte("vectors")
	bucketVectorMeta = []byte("meta")
	keyVectorMeta    = []byte("index_meta")
)

// BoltVectorIndex is the vector half of the index pair: chunk embeddings
// in their own bbolt file, searched brute-force with cosine similarity.
// The corpus is a few thousand chunks, so a linear scan over an
// in-memory copy beats maintaining an ANN structure.
type BoltVectorIndex struct {
	db        *bbolt.DB
	dimension int
	model     string

	mu      sync.RWMutex
	vectors map[string][]float32
}

type storedVector struct {
	Vector []float32 `json:"v"`
}

type vectorIndexMeta struct {
	Dimension int    `json:"dimension"`
	Model     string `json:"model"`
}

// NewBoltVectorIndex creates a vector index file for ingestion, stamping
// it with the embedding model and dimension.
func NewBoltVectorIndex(path string, dimension int, model string) (*BoltVectorIndex, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector index: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketVectors); err != nil {
			return err
		}
		meta, err := tx.CreateBucketIfNotExists(bucketVectorMeta)
		if err != nil {
			return err
		}
		data, err := json.Marshal(vectorIndexMeta{Dimension: dimension, Model: model})
		if err != nil {
			return err
		}
		return meta.Put(keyVectorMeta, data)
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}

	s := &BoltVectorIndex{
		db:        db,
		dimension: dimension,
		model:     model,
		vectors:   make(map[string][]float32),
	}
	if err := s.loadVectors(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load vectors: %w", err)
	}
	return s, nil
}

// OpenBoltVectorIndex opens an existing vector index for serving and
// reads back the model stamp written at build time. A missing meta
// record means the file was not produced by a completed ingestion run.
func OpenBoltVectorIndex(path string) (*BoltVectorIndex, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector index: %w", err)
	}

	var meta vectorIndexMeta
	err = db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectorMeta)
		if b == nil {
			return fmt.Errorf("vector index has no meta bucket")
		}
		data := b.Get(keyVectorMeta)
		if data == nil {
			return fmt.Errorf("vector index has no meta record")
		}
		return json.Unmarshal(data, &meta)
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &BoltVectorIndex{
		db:        db,
		dimension: meta.Dimension,
		model:     meta.Model,
		vectors:   make(map[string][]float32),
	}
	if err := s.loadVectors(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load vectors: %w", err)
	}
	return s, nil
}

// loadVectors loads all vectors from disk into memory for search.
func (s *BoltVectorIndex) loadVectors() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		if b == nil {
			return nil
		}

		return b.ForEach(func(k, v []byte) error {
			var stored storedVector
			if err := json.Unmarshal(v, &stored); err != nil {
				return nil // skip corrupted entries
			}
			s.vectors[string(k)] = stored.Vector
			return nil
		})
	})
}

// Upsert adds or updates vectors in the index.
func (s *BoltVectorIndex) Upsert(items []port.VectorItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		if b == nil {
			return fmt.Errorf("vectors bucket not found")
		}

		for _, item := range items {
			if len(item.Vector) != s.dimension {
				return fmt.Errorf("vector dimension mismatch: expected %d, got %d", s.dimension, len(item.Vector))
			}

			data, err := json.Marshal(storedVector{Vector: item.Vector})
			if err != nil {
				return err
			}
			if err := b.Put([]byte(item.ID), data); err != nil {
				return err
			}

			s.vectors[item.ID] = item.Vector
		}

		return nil
	})
}

// Search finds the k nearest vectors to the query using cosine
// similarity. Equal scores are ordered by chunk ID so a fixed index
// always returns the same ranking for a query.
func (s *BoltVectorIndex) Search(query []float32, k int) ([]domain.Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(query) != s.dimension {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", s.dimension, len(query))
	}

	if len(s.vectors) == 0 {
		return nil, nil
	}

	hits := make([]domain.Hit, 0, len(s.vectors))
	for id, vec := range s.vectors {
		hits = append(hits, domain.Hit{
			ChunkID: id,
			Score:   cosineSimilarity(query, vec),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})

	if k < len(hits) {
		hits = hits[:k]
	}

	return hits, nil
}

// Count returns the number of vectors in the index.
func (s *BoltVectorIndex) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors), nil
}

// Dimension returns the embedding dimension the index was built with.
func (s *BoltVectorIndex) Dimension() int {
	return s.dimension
}

// Model returns the embedding model the index was built with.
func (s *BoltVectorIndex) Model() string {
	return s.model
}

func (s *BoltVectorIndex) Close() error {
	return s.db.Close()
}

// cosineSimilarity calculates the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
