package registry

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/eastgrand/geoinsight/internal/infrastructure/monitoring/logging"
)

// Watcher hot-reloads the registry document.  A modified file is re-parsed
// and re-validated; only a fully valid document is swapped in.  An invalid
// edit keeps the active snapshot and logs a warning, so a bad deploy never
// takes routing down.
type Watcher struct {
	path     string
	registry *Registry
	logger   logging.Logger
	fsw      *fsnotify.Watcher

	// onSwap, when non-nil, is invoked after each successful swap.  The
	// result cache registers here so stale fingerprints age out immediately.
	onSwap func(*Snapshot)
}

// NewWatcher constructs a Watcher for the document at path.
func NewWatcher(path string, reg *Registry, log logging.Logger, onSwap func(*Snapshot)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the parent directory: editors and config maps replace the file
	// rather than writing it in place.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}
	return &Watcher{
		path:     path,
		registry: reg,
		logger:   log.Named("registry.watcher"),
		fsw:      fsw,
		onSwap:   onSwap,
	}, nil
}

// Run blocks processing filesystem events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.reload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("filesystem watcher error", logging.Err(err))
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != filepath.Clean(w.path) {
		return false
	}
	return event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Rename)
}

func (w *Watcher) reload() {
	snap, err := LoadFile(w.path)
	if err != nil {
		w.logger.Warn("registry reload rejected, keeping active snapshot",
			logging.String("path", w.path),
			logging.Err(err),
		)
		return
	}
	w.registry.Swap(snap)
	if w.onSwap != nil {
		w.onSwap(snap)
	}
}
