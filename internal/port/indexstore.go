package port

import "firerag/internal/domain"

// ChunkStore is the persisted chunk-metadata half of the index pair:
// chunk records, page groupings, keyword postings, and corpus stats.
// Written once per ingestion generation, read-only while serving.
type ChunkStore interface {
	PutChunk(chunk domain.Chunk) error

	GetChunk(id string) (domain.Chunk, error)

	PutPage(page domain.Page) error

	GetPage(number int) (domain.Page, error)

	GetChunksByPage(number int) ([]domain.Chunk, error)

	ListPages() ([]domain.Page, error)

	PutPosting(term string, chunkID string, tf int) error

	GetPostings(term string) ([]domain.Posting, error)

	GetStats() (domain.Stats, error)

	UpdateStats(stats domain.Stats) error

	BatchIndex(pages []IndexedPage) error

	Close() error
}

// IndexedPage bundles one page's chunks and postings for batch writes
// during ingestion.
type IndexedPage struct {
	Page     domain.Page
	Chunks   []domain.Chunk
	Postings map[string]map[string]int
}
