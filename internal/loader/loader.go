// Package loader ingests GCC RTL dump files into a call graph. Many
// files are parsed in parallel; each worker goroutine owns its own RCU
// reader handle for the duration of one file.
package loader

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/crag/internal/config"
	cragerrors "github.com/standardbeagle/crag/internal/errors"
	"github.com/standardbeagle/crag/internal/graph"
	"github.com/standardbeagle/crag/internal/rcu"
	"github.com/standardbeagle/crag/pkg/pathutil"
)

// Stats summarises one ingestion run.
type Stats struct {
	Files    int
	Failed   int
	Nodes    uint64
	Duration time.Duration
}

// Loader drives parallel ingestion into one graph.
type Loader struct {
	graph *graph.Graph
	cfg   *config.Config
	log   *zap.Logger
	root  string
}

// New creates a loader for the configured project root.
func New(g *graph.Graph, cfg *config.Config, log *zap.Logger) *Loader {
	root, err := filepath.Abs(cfg.Project.Root)
	if err != nil {
		root = cfg.Project.Root
	}
	return &Loader{graph: g, cfg: cfg, log: log, root: root}
}

// Root returns the absolute project root.
func (l *Loader) Root() string { return l.root }

// Discover scans the project root for dump files per the configured
// globs.
func (l *Loader) Discover() ([]string, error) {
	return Scan(l.root, l.cfg.Loader.Include, l.cfg.Loader.Exclude)
}

// Run parses the given files with a bounded worker pool. Per-file parse
// failures are logged and counted, not fatal; the context cancels the
// whole run.
func (l *Loader) Run(ctx context.Context, paths []string) (Stats, error) {
	start := time.Now()

	var parsed, failed atomic.Int64
	grp, ctx := errgroup.WithContext(ctx)
	grp.SetLimit(l.cfg.EffectiveWorkers())
	for _, path := range paths {
		grp.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			h := rcu.Register()
			defer h.Unregister()
			if err := l.parseFile(h, path); err != nil {
				failed.Add(1)
				l.log.Warn("dump file skipped", zap.String("path", path), zap.Error(err))
				return nil
			}
			parsed.Add(1)
			return nil
		})
	}
	err := grp.Wait()

	stats := Stats{
		Files:    int(parsed.Load()),
		Failed:   int(failed.Load()),
		Nodes:    l.graph.NodeCount(),
		Duration: time.Since(start),
	}
	l.log.Info("ingestion finished",
		zap.Int("files", stats.Files),
		zap.Int("failed", stats.Failed),
		zap.Uint64("nodes", stats.Nodes),
		zap.Duration("took", stats.Duration))
	return stats, err
}

// LoadFile parses a single dump file on the given handle. Used by the
// watcher for incremental re-ingestion.
func (l *Loader) LoadFile(h *rcu.Handle, path string) error {
	return l.parseFile(h, path)
}

func (l *Loader) parseFile(h *rcu.Handle, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return cragerrors.NewLoadError("open", path, err)
	}
	defer f.Close()

	p := &fileParser{g: l.graph, h: h, log: l.log}
	display := pathutil.ToRelative(path, l.root)
	if err := p.parse(display, f); err != nil {
		return cragerrors.NewLoadError("parse", path, err)
	}
	return nil
}
