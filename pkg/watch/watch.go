// Package watch re-ingests the docs directory when source files change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/releaselens/releaselens/pkg/ingest"
)

// DefaultDebounce is how long the watcher waits after the last relevant
// event before triggering ingestion. A copy of several spreadsheets fires a
// burst of events; the debounce collapses them into one run.
const DefaultDebounce = 2 * time.Second

// Watcher triggers ingestion runs on docs-directory changes.
type Watcher struct {
	dir      string
	debounce time.Duration
	runner   *ingest.Runner
	logger   *zap.Logger
}

// New creates a watcher over dir. debounce <= 0 uses DefaultDebounce.
func New(dir string, debounce time.Duration, runner *ingest.Runner, logger *zap.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		dir:      dir,
		debounce: debounce,
		runner:   runner,
		logger:   logger,
	}
}

// relevant reports whether an event concerns a loadable source file.
func relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
		return false
	}
	switch strings.ToLower(filepath.Ext(event.Name)) {
	case ".xlsx", ".csv":
		return true
	default:
		return false
	}
}

// Run watches until ctx is canceled. Each debounced burst of relevant events
// triggers at most one ingestion run; "already running" is logged and
// dropped.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}

	w.logger.Info("watching docs directory",
		zap.String("dir", w.dir),
		zap.Duration("debounce", w.debounce),
	)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			w.logger.Debug("source file changed",
				zap.String("file", event.Name),
				zap.String("op", event.Op.String()),
			)
			if pending && !timer.Stop() {
				<-timer.C
			}
			timer.Reset(w.debounce)
			pending = true

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", zap.Error(err))

		case <-timer.C:
			pending = false
			// Ingestion can take minutes; keep draining events while it
			// runs.
			go func() {
				if _, err := w.runner.Run(ctx); err != nil {
					if errors.Is(err, ingest.ErrAlreadyRunning) {
						w.logger.Info("change detected during ingestion, trigger dropped")
						return
					}
					w.logger.Error("triggered ingestion failed", zap.Error(err))
				}
			}()
		}
	}
}
