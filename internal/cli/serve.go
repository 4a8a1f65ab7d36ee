package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"firerag/config"
	"firerag/internal/adapter/watch"
	"firerag/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the question-answering HTTP API",
	Long: `Start the HTTP service: POST /chat/answer for structured answers,
GET /health for readiness, GET /media/ for page renders and images.

The server watches the data directory and swaps in new index
generations as ingest runs publish them, without a restart.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// The watcher needs the directory to exist even before first ingest.
	if err := config.EnsureDataDir(GetDataDir()); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	srv, err := server.New(GetConfig(), GetDataDir(), GetLogger().With("component", "server"))
	if err != nil {
		return err
	}

	watcher, err := watch.NewManifestWatcher(config.ManifestPath(GetDataDir()), srv.Reload, GetLogger().With("component", "watcher"))
	if err != nil {
		return fmt.Errorf("failed to watch data directory: %w", err)
	}
	watcher.Start()
	defer watcher.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx)
}
