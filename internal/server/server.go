// Package server is the HTTP surface of the question-answering
// service: the answer endpoint, health reporting, and static media,
// over a serving pipeline that can be swapped when ingestion publishes
// a new index generation.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"firerag/config"
	"firerag/internal/adapter/cache"
	"firerag/internal/adapter/store"
	"firerag/internal/domain"
	"firerag/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

// Server owns the serving pipeline for the current index generation.
// Requests hold the read lock for their whole duration, so Reload can
// close the outgoing index pair only once no request is using it.
type Server struct {
	cfg     *config.Config
	dataDir string
	logger  *slog.Logger
	cache   *cache.QueryCache

	mu        sync.RWMutex
	index     *store.Index
	generator *usecase.Generator
}

// New creates the server and loads the current index generation. A
// missing index is not fatal: the server starts unready and becomes
// ready when the manifest watcher sees the first ingest complete.
func New(cfg *config.Config, dataDir string, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ttl := time.Duration(cfg.Retrieve.CacheTTLSeconds) * time.Second
	s := &Server{
		cfg:     cfg,
		dataDir: dataDir,
		logger:  logger,
		cache:   cache.NewQueryCache(cfg.Retrieve.CacheSize, ttl),
	}

	if err := s.Reload(); err != nil {
		if !errors.Is(err, domain.ErrIndexUnavailable) {
			return nil, err
		}
		logger.Warn("starting without an index", "error", err)
	}
	return s, nil
}

// Reload opens the index pair the manifest currently names, rebuilds
// the pipeline on it and swaps it in. On any failure the previous
// generation keeps serving.
func (s *Server) Reload() error {
	ix, err := store.OpenIndex(s.dataDir)
	if err != nil {
		return err
	}

	generator, err := BuildGenerator(s.cfg, ix, s.cache, s.logger)
	if err != nil {
		ix.Close()
		return fmt.Errorf("failed to build pipeline: %w", err)
	}

	s.mu.Lock()
	old := s.index
	s.index = ix
	s.generator = generator
	if old != nil {
		old.Close()
	}
	s.mu.Unlock()

	s.cache.Invalidate()
	s.logger.Info("serving index generation",
		"generation", ix.Manifest.Generation,
		"chunks", ix.Manifest.TotalChunks,
		"embedding_model", ix.Manifest.EmbeddingModel)
	return nil
}

// Ready reports whether an index generation is loaded.
func (s *Server) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generator != nil
}

// Run serves HTTP until ctx is cancelled, then drains in-flight
// requests and closes the index pair.
func (s *Server) Run(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()

	s.logger.Info("listening", "addr", s.cfg.Server.Addr)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index != nil {
		s.index.Close()
		s.index = nil
		s.generator = nil
	}
	return nil
}
