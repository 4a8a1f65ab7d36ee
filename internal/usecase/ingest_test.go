package usecase

import (
	"context"
	"os"
	"reflect"
	"strings"
	"testing"

	"firerag/config"
	"firerag/internal/adapter/analyzer"
	"firerag/internal/adapter/chunker"
	"firerag/internal/adapter/embedding"
	"firerag/internal/adapter/fs"
	"firerag/internal/adapter/store"
)

const ingestPage1 = `<!DOCTYPE html>
<html><head><title>Approved Document B</title></head>
<body>
<h1>Fire doors</h1>
<p>Fire doors must be self-closing. See Diagram 2.1 for the door assembly.
The gap between door and frame must not exceed 3mm.</p>
<img src="page_1_img_0.png">
<table>
<tr><th>Door type</th><th>Max gap</th></tr>
<tr><td>FD30</td><td>3mm</td></tr>
</table>
</body></html>`

const ingestPage2 = `<!DOCTYPE html>
<html><body>
<p>Hydrants must be installed within ninety metres of the building entrance
and marked with an indicator plate.</p>
</body></html>`

func fixtureIngestor(dataDir, mediaDir string) *Ingestor {
	tok := analyzer.NewTokenizer(true)
	return NewIngestor(
		fs.NewPageWalker(nil, nil),
		chunker.NewPageParser(),
		chunker.NewTextChunker(500, 50, tok),
		embedding.NewMockEmbedder(8),
		config.DefaultConfig(),
		dataDir,
		mediaDir,
		discardLogger(),
	)
}

func TestIngestorRun(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "ingest_test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	srcDir := tmpDir + "/pages"
	dataDir := tmpDir + "/data"
	mediaDir := tmpDir + "/media"
	for _, dir := range []string{srcDir, mediaDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
	}

	if err := os.WriteFile(srcDir+"/page_1.html", []byte(ingestPage1), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(srcDir+"/page_2.html", []byte(ingestPage2), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(mediaDir+"/page_1.png", []byte("png"), 0644); err != nil {
		t.Fatal(err)
	}

	ing := fixtureIngestor(dataDir, mediaDir)
	result, err := ing.Run(context.Background(), srcDir, nil)
	if err != nil {
		t.Fatal(err)
	}

	if result.Pages != 2 {
		t.Errorf("expected 2 pages, got %d", result.Pages)
	}
	if result.Tables != 1 {
		t.Errorf("expected 1 table chunk, got %d", result.Tables)
	}
	if result.Chunks != 3 {
		t.Errorf("expected 3 chunks, got %d", result.Chunks)
	}
	if result.Embeddings != result.Chunks {
		t.Errorf("expected every chunk embedded, got %d of %d", result.Embeddings, result.Chunks)
	}
	if len(result.Errors) != 0 {
		t.Errorf("expected no page errors, got %v", result.Errors)
	}

	ix, err := store.OpenIndex(dataDir)
	if err != nil {
		t.Fatal(err)
	}
	defer ix.Close()

	if ix.Manifest.TotalChunks != result.Chunks {
		t.Errorf("expected manifest to report %d chunks, got %d", result.Chunks, ix.Manifest.TotalChunks)
	}
	if ix.Manifest.EmbeddingModel != "mock" {
		t.Errorf("expected embedding model recorded, got %q", ix.Manifest.EmbeddingModel)
	}

	count, err := ix.Vectors.Count()
	if err != nil {
		t.Fatal(err)
	}
	if count != result.Chunks {
		t.Errorf("expected %d vectors, got %d", result.Chunks, count)
	}

	page, err := ix.Chunks.GetPage(1)
	if err != nil {
		t.Fatal(err)
	}
	expectedMedia := []string{"/media/page_1.png", "/media/page_1_img_0.png"}
	if !reflect.DeepEqual(page.Media, expectedMedia) {
		t.Errorf("expected page media %v, got %v", expectedMedia, page.Media)
	}

	chunks, err := ix.Chunks.GetChunksByPage(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks on page 1, got %d", len(chunks))
	}
	if !chunks[0].IsTable || !strings.Contains(chunks[0].Text, "FD30") {
		t.Errorf("expected the table chunk first, got %+v", chunks[0])
	}
	if !reflect.DeepEqual(chunks[1].DiagramIDs, []string{"2.1"}) {
		t.Errorf("expected diagram reference extracted, got %v", chunks[1].DiagramIDs)
	}

	page2, err := ix.Chunks.GetPage(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page2.Media) != 0 {
		t.Errorf("expected no media for page 2, got %v", page2.Media)
	}

	stats, err := ix.Chunks.GetStats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalPages != 2 || stats.TotalChunks != 3 || stats.TotalTables != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if stats.AvgChunkLen <= 0 {
		t.Errorf("expected positive average chunk length, got %f", stats.AvgChunkLen)
	}
}

func TestIngestorGenerationSwap(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "ingest_test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	srcDir := tmpDir + "/pages"
	dataDir := tmpDir + "/data"
	if err := os.MkdirAll(srcDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(srcDir+"/page_1.html", []byte(ingestPage2), 0644); err != nil {
		t.Fatal(err)
	}

	ing := fixtureIngestor(dataDir, "")

	first, err := ing.Run(context.Background(), srcDir, nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := ing.Run(context.Background(), srcDir, nil)
	if err != nil {
		t.Fatal(err)
	}

	if second.Generation <= first.Generation {
		t.Errorf("expected a newer generation, got %d then %d", first.Generation, second.Generation)
	}

	entries, err := os.ReadDir(dataDir)
	if err != nil {
		t.Fatal(err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	if len(names) != 3 {
		t.Fatalf("expected only the live pair and manifest, got %v", names)
	}

	m, err := store.LoadManifest(config.ManifestPath(dataDir))
	if err != nil {
		t.Fatal(err)
	}
	if m.Generation != second.Generation {
		t.Errorf("expected manifest generation %d, got %d", second.Generation, m.Generation)
	}
}

func TestIngestorProgress(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "ingest_test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	srcDir := tmpDir + "/pages"
	if err := os.MkdirAll(srcDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(srcDir+"/page_1.html", []byte(ingestPage2), 0644); err != nil {
		t.Fatal(err)
	}

	stages := make(map[string]int)
	progress := func(stage string, processed, total int) {
		stages[stage]++
	}

	ing := fixtureIngestor(tmpDir+"/data", "")
	if _, err := ing.Run(context.Background(), srcDir, progress); err != nil {
		t.Fatal(err)
	}

	if stages["pages"] == 0 || stages["embeddings"] == 0 {
		t.Errorf("expected progress for both stages, got %v", stages)
	}
}

func TestIngestorNoPages(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "ingest_test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	ing := fixtureIngestor(tmpDir+"/data", "")
	if _, err := ing.Run(context.Background(), tmpDir, nil); err == nil {
		t.Fatal("expected an error for a directory without page files")
	}
}
