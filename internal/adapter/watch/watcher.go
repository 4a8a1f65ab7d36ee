// Package watch reloads the serving index when the ingest job swaps in
// a new manifest.
package watch

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounceDelay = 100 * time.Millisecond

// ManifestWatcher watches the data directory and fires a reload
// callback when manifest.json is replaced. It watches the directory
// rather than the file because the swap renames a new file into place.
type ManifestWatcher struct {
	watcher      *fsnotify.Watcher
	manifestPath string
	reloadFn     func() error
	logger       *slog.Logger
	done         chan struct{}
}

func NewManifestWatcher(manifestPath string, reloadFn func() error, logger *slog.Logger) (*ManifestWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	manifestPath = filepath.Clean(manifestPath)
	dir := filepath.Dir(manifestPath)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	return &ManifestWatcher{
		watcher:      watcher,
		manifestPath: manifestPath,
		reloadFn:     reloadFn,
		logger:       logger,
		done:         make(chan struct{}),
	}, nil
}

func (w *ManifestWatcher) Start() {
	go w.watch()
}

func (w *ManifestWatcher) Stop() {
	close(w.done)
	w.watcher.Close()
}

func (w *ManifestWatcher) watch() {
	// Debounce so one swap (tmp write + rename) triggers one reload.
	var debounce *time.Timer

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.manifestPath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDelay, func() {
				if err := w.reloadFn(); err != nil {
					w.logger.Error("index reload failed", "manifest", w.manifestPath, "error", err)
					return
				}
				w.logger.Info("index reloaded", "manifest", w.manifestPath)
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err)

		case <-w.done:
			if debounce != nil {
				debounce.Stop()
			}
			return
		}
	}
}
