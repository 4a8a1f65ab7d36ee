// Package memstore is an in-memory ChunkStore for tests and the
// offline example. It mirrors the bolt-backed store's behavior without
// touching disk.
package memstore

import (
	"fmt"
	"sort"
	"sync"

	"firerag/internal/domain"
	"firerag/internal/port"
)

type MemoryStore struct {
	mu         sync.RWMutex
	chunks     map[string]domain.Chunk
	pages      map[int]domain.Page
	pageChunks map[int][]string
	postings   map[string][]domain.Posting
	stats      domain.Stats
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		chunks:     make(map[string]domain.Chunk),
		pages:      make(map[int]domain.Page),
		pageChunks: make(map[int][]string),
		postings:   make(map[string][]domain.Posting),
	}
}

func (s *MemoryStore) PutChunk(chunk domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks[chunk.ID] = chunk
	s.pageChunks[chunk.Page] = append(s.pageChunks[chunk.Page], chunk.ID)
	return nil
}

func (s *MemoryStore) GetChunk(id string) (domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunk, ok := s.chunks[id]
	if !ok {
		return domain.Chunk{}, fmt.Errorf("%w: %s", domain.ErrChunkNotFound, id)
	}
	return chunk, nil
}

func (s *MemoryStore) PutPage(page domain.Page) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[page.Number] = page
	return nil
}

func (s *MemoryStore) GetPage(number int) (domain.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	page, ok := s.pages[number]
	if !ok {
		return domain.Page{}, fmt.Errorf("page not found: %d", number)
	}
	return page, nil
}

func (s *MemoryStore) GetChunksByPage(number int) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunkIDs := s.pageChunks[number]
	chunks := make([]domain.Chunk, 0, len(chunkIDs))
	for _, id := range chunkIDs {
		if chunk, ok := s.chunks[id]; ok {
			chunks = append(chunks, chunk)
		}
	}
	return chunks, nil
}

func (s *MemoryStore) ListPages() ([]domain.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pages := make([]domain.Page, 0, len(s.pages))
	for _, page := range s.pages {
		pages = append(pages, page)
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Number < pages[j].Number })
	return pages, nil
}

func (s *MemoryStore) PutPosting(term string, chunkID string, tf int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.postings[term] = append(s.postings[term], domain.Posting{
		ChunkID: chunkID,
		TF:      tf,
	})
	return nil
}

func (s *MemoryStore) GetPostings(term string) ([]domain.Posting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.postings[term], nil
}

func (s *MemoryStore) GetStats() (domain.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats, nil
}

func (s *MemoryStore) UpdateStats(stats domain.Stats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = stats
	return nil
}

func (s *MemoryStore) BatchIndex(pages []port.IndexedPage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, page := range pages {
		s.pages[page.Page.Number] = page.Page

		for _, chunk := range page.Chunks {
			s.chunks[chunk.ID] = chunk
			s.pageChunks[chunk.Page] = append(s.pageChunks[chunk.Page], chunk.ID)
		}

		for term, chunkPostings := range page.Postings {
			for chunkID, tf := range chunkPostings {
				s.postings[term] = append(s.postings[term], domain.Posting{
					ChunkID: chunkID,
					TF:      tf,
				})
			}
		}
	}

	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
