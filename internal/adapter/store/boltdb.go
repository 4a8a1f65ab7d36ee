package store

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"firerag/internal/domain"
	"firerag/internal/port"
)

var (
	bucketChunks = []byte("chunks")
	bucketBlobs  = []byte("blobs")
	bucketPages  = []byte("pages")
	bucketTerms  = []byte("terms")
	bucketStats  = []byte("stats")
	keyStats     = []byte("corpus_stats")
)

// BoltChunkStore is the chunk-metadata half of the index pair: chunk
// records keyed by ID, page groupings, keyword postings, and corpus
// stats, all in one bbolt file.
type BoltChunkStore struct {
	db *bbolt.DB
}

func NewBoltChunkStore(path string) (*BoltChunkStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open chunk store: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		buckets := [][]byte{bucketChunks, bucketBlobs, bucketPages, bucketTerms, bucketStats}
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltChunkStore{db: db}, nil
}

// chunkMeta is the persisted chunk record minus the text blob, which is
// stored separately so postings scans stay small.
type chunkMeta struct {
	Page       int      `json:"page"`
	Tokens     []string `json:"tokens,omitempty"`
	TokenCount int      `json:"token_count"`
	DiagramIDs []string `json:"diagram_ids,omitempty"`
	Media      []string `json:"media,omitempty"`
	IsTable    bool     `json:"is_table,omitempty"`
}

func pageKey(number int) []byte {
	return []byte(fmt.Sprintf("%08d", number))
}

func (s *BoltChunkStore) PutChunk(chunk domain.Chunk) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := putChunkTx(tx, chunk); err != nil {
			return err
		}

		pages := tx.Bucket(bucketPages)
		var page domain.Page
		if existing := pages.Get(pageKey(chunk.Page)); existing != nil {
			json.Unmarshal(existing, &page)
		}
		page.Number = chunk.Page
		page.ChunkIDs = append(page.ChunkIDs, chunk.ID)
		data, err := json.Marshal(page)
		if err != nil {
			return err
		}
		return pages.Put(pageKey(chunk.Page), data)
	})
}

func putChunkTx(tx *bbolt.Tx, chunk domain.Chunk) error {
	meta := chunkMeta{
		Page:       chunk.Page,
		Tokens:     chunk.Tokens,
		TokenCount: chunk.TokenCount,
		DiagramIDs: chunk.DiagramIDs,
		Media:      chunk.Media,
		IsTable:    chunk.IsTable,
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	if err := tx.Bucket(bucketChunks).Put([]byte(chunk.ID), data); err != nil {
		return err
	}
	return tx.Bucket(bucketBlobs).Put([]byte(chunk.ID), []byte(chunk.Text))
}

func (s *BoltChunkStore) GetChunk(id string) (domain.Chunk, error) {
	var chunk domain.Chunk
	err := s.db.View(func(tx *bbolt.Tx) error {
		c, err := getChunkTx(tx, id)
		if err != nil {
			return err
		}
		chunk = c
		return nil
	})
	return chunk, err
}

func getChunkTx(tx *bbolt.Tx, id string) (domain.Chunk, error) {
	data := tx.Bucket(bucketChunks).Get([]byte(id))
	if data == nil {
		return domain.Chunk{}, fmt.Errorf("%w: %s", domain.ErrChunkNotFound, id)
	}
	var meta chunkMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return domain.Chunk{}, err
	}
	text := tx.Bucket(bucketBlobs).Get([]byte(id))
	return domain.Chunk{
		ID:         id,
		Page:       meta.Page,
		Text:       string(text),
		Tokens:     meta.Tokens,
		TokenCount: meta.TokenCount,
		DiagramIDs: meta.DiagramIDs,
		Media:      meta.Media,
		IsTable:    meta.IsTable,
	}, nil
}

func (s *BoltChunkStore) PutPage(page domain.Page) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(page)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketPages).Put(pageKey(page.Number), data)
	})
}

func (s *BoltChunkStore) GetPage(number int) (domain.Page, error) {
	var page domain.Page
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketPages).Get(pageKey(number))
		if data == nil {
			return fmt.Errorf("page not found: %d", number)
		}
		return json.Unmarshal(data, &page)
	})
	return page, err
}

func (s *BoltChunkStore) GetChunksByPage(number int) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketPages).Get(pageKey(number))
		if data == nil {
			return nil
		}
		var page domain.Page
		if err := json.Unmarshal(data, &page); err != nil {
			return err
		}
		for _, id := range page.ChunkIDs {
			chunk, err := getChunkTx(tx, id)
			if err != nil {
				continue
			}
			chunks = append(chunks, chunk)
		}
		return nil
	})
	return chunks, err
}

func (s *BoltChunkStore) ListPages() ([]domain.Page, error) {
	var pages []domain.Page
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketPages)
		return b.ForEach(func(k, v []byte) error {
			var page domain.Page
			if err := json.Unmarshal(v, &page); err != nil {
				return err
			}
			pages = append(pages, page)
			return nil
		})
	})
	return pages, err
}

func (s *BoltChunkStore) PutPosting(term string, chunkID string, tf int) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketTerms)
		var postings []domain.Posting
		if data := b.Get([]byte(term)); data != nil {
			json.Unmarshal(data, &postings)
		}

		found := false
		for i := range postings {
			if postings[i].ChunkID == chunkID {
				postings[i].TF = tf
				found = true
				break
			}
		}
		if !found {
			postings = append(postings, domain.Posting{ChunkID: chunkID, TF: tf})
		}
		data, err := json.Marshal(postings)
		if err != nil {
			return err
		}
		return b.Put([]byte(term), data)
	})
}

func (s *BoltChunkStore) GetPostings(term string) ([]domain.Posting, error) {
	var postings []domain.Posting
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketTerms).Get([]byte(term))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &postings)
	})
	return postings, err
}

func (s *BoltChunkStore) GetStats() (domain.Stats, error) {
	var stats domain.Stats
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketStats).Get(keyStats)
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &stats)
	})
	return stats, err
}

func (s *BoltChunkStore) UpdateStats(stats domain.Stats) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(stats)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketStats).Put(keyStats, data)
	})
}

func (s *BoltChunkStore) Close() error {
	return s.db.Close()
}

// BatchIndex writes one ingestion batch (pages with their chunks and
// postings) in a single transaction.
func (s *BoltChunkStore) BatchIndex(pages []port.IndexedPage) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		pagesBucket := tx.Bucket(bucketPages)
		termsBucket := tx.Bucket(bucketTerms)

		allPostings := make(map[string][]domain.Posting)

		for _, entry := range pages {
			chunkIDs := make([]string, 0, len(entry.Chunks))
			for _, chunk := range entry.Chunks {
				if err := putChunkTx(tx, chunk); err != nil {
					return err
				}
				chunkIDs = append(chunkIDs, chunk.ID)
			}

			page := entry.Page
			page.ChunkIDs = chunkIDs
			data, err := json.Marshal(page)
			if err != nil {
				return err
			}
			if err := pagesBucket.Put(pageKey(page.Number), data); err != nil {
				return err
			}

			for term, chunkTFs := range entry.Postings {
				for chunkID, tf := range chunkTFs {
					allPostings[term] = append(allPostings[term], domain.Posting{
						ChunkID: chunkID,
						TF:      tf,
					})
				}
			}
		}

		for term, newPostings := range allPostings {
			var existing []domain.Posting
			if data := termsBucket.Get([]byte(term)); data != nil {
				json.Unmarshal(data, &existing)
			}
			existing = append(existing, newPostings...)
			data, err := json.Marshal(existing)
			if err != nil {
				return err
			}
			if err := termsBucket.Put([]byte(term), data); err != nil {
				return err
			}
		}

		return nil
	})
}
