package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"firerag/internal/adapter/analyzer"
	"firerag/internal/adapter/chunker"
	"firerag/internal/adapter/fs"
	"firerag/internal/server"
	"firerag/internal/usecase"
)

var (
	ingestSources string
	ingestMedia   string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Build a fresh index generation from extracted page files",
	Long: `Ingest a directory of per-page exports (page_<N>.html) into a new
index generation. The previous generation keeps serving until the new
pair is complete and the manifest is swapped.

Examples:
  firerag ingest --sources ./export/pages --media ./export/media
  firerag ingest -s ./export/pages -d /var/lib/firerag`,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVarP(&ingestSources, "sources", "s", "", "directory of page_<N>.html exports (required)")
	ingestCmd.Flags().StringVarP(&ingestMedia, "media", "m", "", "directory of page renders and images (default from config)")
	ingestCmd.MarkFlagRequired("sources")
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	sources, err := filepath.Abs(ingestSources)
	if err != nil {
		return fmt.Errorf("invalid sources path: %w", err)
	}
	info, err := os.Stat(sources)
	if err != nil {
		return fmt.Errorf("sources path does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("sources path is not a directory: %s", sources)
	}

	mediaDir := ingestMedia
	if mediaDir == "" {
		mediaDir = cfg.Server.MediaDir
	}

	embedder, err := server.BuildEmbedder(cfg, nil)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	tokenizer := analyzer.NewTokenizer(cfg.Ingest.Stemming)
	walker := fs.NewPageWalker(cfg.Ingest.Includes, cfg.Ingest.Excludes)
	parser := chunker.NewPageParser()
	textChunker := chunker.NewTextChunker(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap, tokenizer)

	ingestor := usecase.NewIngestor(walker, parser, textChunker, embedder, cfg, GetDataDir(), mediaDir, GetLogger())

	fmt.Printf("Scanning %s...\n", sources)

	// One bar per stage; a stage change finishes the old bar and starts
	// a new one sized for the new total.
	var bar *progressbar.ProgressBar
	var barStage string
	var barMu sync.Mutex
	var startTime time.Time

	progress := func(stage string, processed, total int) {
		barMu.Lock()
		defer barMu.Unlock()

		if bar == nil || stage != barStage {
			if bar != nil {
				bar.Finish()
			}
			startTime = time.Now()
			barStage = stage
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription(stageLabel(stage)),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}

		bar.Set(processed)

		if processed > 0 && processed < total {
			elapsed := time.Since(startTime)
			rate := float64(processed) / elapsed.Seconds()
			if rate > 0 {
				eta := time.Duration(float64(total-processed)/rate) * time.Second
				bar.Describe(fmt.Sprintf("%s ETA: %s", stageLabel(stage), formatDuration(eta)))
			}
		}
	}

	result, err := ingestor.Run(cmd.Context(), sources, progress)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	fmt.Printf("\nIngest complete:\n")
	fmt.Printf("  Pages indexed:  %d\n", result.Pages)
	fmt.Printf("  Chunks created: %d\n", result.Chunks)
	fmt.Printf("  Table chunks:   %d\n", result.Tables)
	fmt.Printf("  Embeddings:     %d\n", result.Embeddings)
	fmt.Printf("  Duration:       %s\n", formatDuration(result.Duration))

	if len(result.Errors) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}

	fmt.Printf("\nIndex generation %d stored in: %s\n", result.Generation, GetDataDir())
	return nil
}

func stageLabel(stage string) string {
	if stage == "embeddings" {
		return "[cyan]Embedding[reset]"
	}
	return "[cyan]Indexing[reset]"
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
