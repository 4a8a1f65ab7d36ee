package usecase

import (
	"context"
	"errors"
	"fmt"
	iofs "io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"firerag/config"
	"firerag/internal/adapter/chunker"
	"firerag/internal/adapter/store"
	"firerag/internal/domain"
	"firerag/internal/port"
)

// ProgressFunc reports ingest progress for a named stage ("pages" or
// "embeddings").
type ProgressFunc func(stage string, processed, total int)

// Ingestor builds a fresh index generation from a directory of page
// files and publishes it via the manifest. Every run is a full
// rebuild; readers keep serving the previous generation until the
// manifest swap.
type Ingestor struct {
	walker   port.PageWalker
	parser   *chunker.PageParser
	chunker  *chunker.TextChunker
	embedder port.Embedder
	cfg      *config.Config
	dataDir  string
	mediaDir string
	logger   *slog.Logger
}

// NewIngestor creates an ingestor writing index generations under
// dataDir. mediaDir holds pre-rendered page images and may be empty.
func NewIngestor(
	walker port.PageWalker,
	parser *chunker.PageParser,
	textChunker *chunker.TextChunker,
	embedder port.Embedder,
	cfg *config.Config,
	dataDir string,
	mediaDir string,
	logger *slog.Logger,
) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		walker:   walker,
		parser:   parser,
		chunker:  textChunker,
		embedder: embedder,
		cfg:      cfg,
		dataDir:  dataDir,
		mediaDir: mediaDir,
		logger:   logger,
	}
}

// IngestResult summarizes one ingestion run.
type IngestResult struct {
	Generation int64
	Pages      int
	Chunks     int
	Tables     int
	Embeddings int
	Duration   time.Duration
	Errors     []string
}

// Run ingests every page file under sourceDir into a new index
// generation. The manifest is written only after both index files are
// complete, so a crash mid-run leaves the previous generation live.
func (u *Ingestor) Run(ctx context.Context, sourceDir string, progress ProgressFunc) (*IngestResult, error) {
	start := time.Now()

	files, err := u.walker.Walk(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", sourceDir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no page files found under %s", sourceDir)
	}

	if err := config.EnsureDataDir(u.dataDir); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	// Bump past any generation from the same second still on disk.
	gen := time.Now().Unix()
	for {
		if _, err := os.Stat(filepath.Join(u.dataDir, store.ChunksFileName(gen))); errors.Is(err, iofs.ErrNotExist) {
			break
		}
		gen++
	}
	chunksPath := filepath.Join(u.dataDir, store.ChunksFileName(gen))
	indexPath := filepath.Join(u.dataDir, store.IndexFileName(gen))

	chunkStore, err := store.NewBoltChunkStore(chunksPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create chunk store: %w", err)
	}
	vectors, err := store.NewBoltVectorIndex(indexPath, u.embedder.Dimension(), u.embedder.ModelName())
	if err != nil {
		chunkStore.Close()
		os.Remove(chunksPath)
		return nil, fmt.Errorf("failed to create vector index: %w", err)
	}

	// Partial generation files are useless without a manifest entry.
	abort := func() {
		chunkStore.Close()
		vectors.Close()
		os.Remove(chunksPath)
		os.Remove(indexPath)
	}

	result := &IngestResult{Generation: gen}

	indexed := make([]port.IndexedPage, 0, len(files))
	var allChunks []domain.Chunk
	totalTokens := 0

	for i, file := range files {
		if err := ctx.Err(); err != nil {
			abort()
			return nil, err
		}

		chunks, media, perr := u.processPage(file)
		if perr != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", file.Path, perr))
			continue
		}
		if progress != nil {
			progress("pages", i+1, len(files))
		}
		if len(chunks) == 0 {
			continue
		}

		page := port.IndexedPage{
			Page: domain.Page{
				Number:   file.Page,
				ChunkIDs: make([]string, len(chunks)),
				Media:    media,
			},
			Chunks:   chunks,
			Postings: make(map[string]map[string]int),
		}
		for j, chunk := range chunks {
			page.Page.ChunkIDs[j] = chunk.ID
			if chunk.IsTable {
				result.Tables++
			}
			totalTokens += len(chunk.Tokens)
			for _, token := range chunk.Tokens {
				if page.Postings[token] == nil {
					page.Postings[token] = make(map[string]int)
				}
				page.Postings[token][chunk.ID]++
			}
		}

		indexed = append(indexed, page)
		allChunks = append(allChunks, chunks...)
		result.Pages++
	}

	if len(allChunks) == 0 {
		abort()
		return nil, fmt.Errorf("no content extracted from %d page files", len(files))
	}
	result.Chunks = len(allChunks)

	if err := chunkStore.BatchIndex(indexed); err != nil {
		abort()
		return nil, fmt.Errorf("failed to write chunk store: %w", err)
	}

	avgChunkLen := float64(totalTokens) / float64(len(allChunks))
	stats := domain.Stats{
		TotalPages:  result.Pages,
		TotalChunks: len(allChunks),
		TotalTables: result.Tables,
		AvgChunkLen: avgChunkLen,
	}
	if err := chunkStore.UpdateStats(stats); err != nil {
		abort()
		return nil, fmt.Errorf("failed to update stats: %w", err)
	}

	if err := u.embedChunks(ctx, vectors, allChunks, result, progress); err != nil {
		abort()
		return nil, err
	}

	if err := chunkStore.Close(); err != nil {
		vectors.Close()
		return nil, fmt.Errorf("failed to close chunk store: %w", err)
	}
	if err := vectors.Close(); err != nil {
		return nil, fmt.Errorf("failed to close vector index: %w", err)
	}

	manifest := store.Manifest{
		SchemaVersion:  store.CurrentSchemaVersion,
		Generation:     gen,
		IndexFile:      store.IndexFileName(gen),
		ChunksFile:     store.ChunksFileName(gen),
		EmbeddingModel: u.embedder.ModelName(),
		Dimension:      u.embedder.Dimension(),
		ConfigHash:     store.ComputeConfigHash(u.cfg),
		BuiltAt:        time.Now().UTC(),
		TotalChunks:    len(allChunks),
	}
	if err := manifest.Save(config.ManifestPath(u.dataDir)); err != nil {
		return nil, fmt.Errorf("failed to publish manifest: %w", err)
	}

	if err := store.CleanStaleGenerations(u.dataDir, gen); err != nil {
		u.logger.Warn("failed to remove stale index generations", "error", err)
	}

	result.Duration = time.Since(start)
	u.logger.Info("ingest complete",
		"generation", gen,
		"pages", result.Pages,
		"chunks", result.Chunks,
		"tables", result.Tables,
		"duration", result.Duration)

	return result, nil
}

// processPage parses one page file into chunks plus its media list.
func (u *Ingestor) processPage(file port.PageFile) ([]domain.Chunk, []string, error) {
	content, err := os.ReadFile(file.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read page: %w", err)
	}

	parsed, err := u.parser.Parse(content, file.Page)
	if err != nil {
		return nil, nil, err
	}

	media := u.pageMedia(file.Page, parsed.Images)
	return u.chunker.ChunkPage(parsed, media), media, nil
}

// pageMedia builds the media references for a page: the page render if
// it exists under the media directory, then any embedded images.
func (u *Ingestor) pageMedia(pageNum int, images []string) []string {
	media := make([]string, 0, len(images)+1)
	seen := make(map[string]struct{}, len(images)+1)

	if u.mediaDir != "" {
		render := fmt.Sprintf("page_%d.png", pageNum)
		if _, err := os.Stat(filepath.Join(u.mediaDir, render)); err == nil {
			ref := domain.PageLink(pageNum)
			media = append(media, ref)
			seen[ref] = struct{}{}
		}
	}

	for _, img := range images {
		ref := "/media/" + img
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		media = append(media, ref)
	}

	return media
}

// embedChunks embeds all chunk texts in batches and stores the vectors.
func (u *Ingestor) embedChunks(ctx context.Context, vectors *store.BoltVectorIndex, chunks []domain.Chunk, result *IngestResult, progress ProgressFunc) error {
	batchSize := u.cfg.Embedding.BatchSize
	if batchSize <= 0 {
		batchSize = 64
	}

	for i := 0; i < len(chunks); i += batchSize {
		end := i + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[i:end]

		texts := make([]string, len(batch))
		for j, chunk := range batch {
			texts[j] = chunk.Text
		}

		embeddings, err := u.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding batch failed: %w", err)
		}
		if len(embeddings) != len(batch) {
			return fmt.Errorf("embedder returned %d vectors for %d texts", len(embeddings), len(batch))
		}

		items := make([]port.VectorItem, len(batch))
		for j, chunk := range batch {
			items[j] = port.VectorItem{ID: chunk.ID, Vector: embeddings[j]}
		}
		if err := vectors.Upsert(items); err != nil {
			return fmt.Errorf("failed to store vectors: %w", err)
		}

		result.Embeddings += len(batch)
		if progress != nil {
			progress("embeddings", result.Embeddings, len(chunks))
		}
	}

	return nil
}
