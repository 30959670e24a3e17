package loader

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/standardbeagle/crag/internal/rcu"
)

// Watcher re-ingests dump files as the build regenerates them. Events
// are debounced: a burst of writes to the same files becomes one batch.
type Watcher struct {
	loader   *Loader
	log      *zap.Logger
	debounce time.Duration
}

// NewWatcher creates a watcher over the loader's project root.
func NewWatcher(l *Loader, log *zap.Logger) *Watcher {
	return &Watcher{
		loader:   l,
		log:      log,
		debounce: time.Duration(l.cfg.Loader.WatchDebounceMs) * time.Millisecond,
	}
}

// Run blocks until the context is cancelled, re-parsing changed dump
// files as batches.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	// Watch every directory under the root; fsnotify is not recursive.
	err = filepath.WalkDir(w.loader.Root(), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	h := rcu.Register()
	defer h.Unregister()

	pending := make(map[string]bool)
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				// New directories must be added by hand; fsnotify does
				// not recurse.
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					_ = fsw.Add(ev.Name)
					continue
				}
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !w.matches(ev.Name) {
				continue
			}
			pending[ev.Name] = true
			timer.Reset(w.debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", zap.Error(err))

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			batch := make([]string, 0, len(pending))
			for p := range pending {
				batch = append(batch, p)
				delete(pending, p)
			}
			w.log.Info("re-ingesting changed dumps", zap.Int("files", len(batch)))
			for _, p := range batch {
				if err := w.loader.LoadFile(h, p); err != nil {
					w.log.Warn("re-ingest failed", zap.String("path", p), zap.Error(err))
				}
			}
		}
	}
}

func (w *Watcher) matches(path string) bool {
	rel, err := filepath.Rel(w.loader.Root(), path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	return matchAny(w.loader.cfg.Loader.Include, rel) &&
		!matchAny(w.loader.cfg.Loader.Exclude, rel)
}
