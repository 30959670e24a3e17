package loader

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/standardbeagle/crag/internal/config"
	"github.com/standardbeagle/crag/internal/graph"
	"github.com/standardbeagle/crag/internal/rcu"
)

func TestWatcherIngestsNewDump(t *testing.T) {
	root := t.TempDir()

	cfg := config.Default()
	cfg.Project.Root = root
	cfg.Loader.WatchDebounceMs = 20

	g := graph.New()
	l := New(g, cfg, zap.NewNop())
	w := NewWatcher(l, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx)
	}()

	// Give the watcher a moment to install its watches.
	time.Sleep(100 * time.Millisecond)
	writeDump(t, root, "fresh.expand", "watched_fn", "ext")

	h := rcu.Register()
	defer h.Unregister()
	require.Eventually(t, func() bool {
		return g.GetNode(h, "watched_fn") != graph.None
	}, 5*time.Second, 25*time.Millisecond, "watcher never ingested the new dump")

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestWatcherIgnoresNonMatchingFiles(t *testing.T) {
	root := t.TempDir()

	cfg := config.Default()
	cfg.Project.Root = root
	cfg.Loader.WatchDebounceMs = 20

	g := graph.New()
	l := New(g, cfg, zap.NewNop())
	w := NewWatcher(l, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx)
	}()

	time.Sleep(100 * time.Millisecond)
	writeDump(t, root, "notes.txt", "ignored_fn", "ext")
	time.Sleep(200 * time.Millisecond)

	h := rcu.Register()
	defer h.Unregister()
	assert.Equal(t, graph.None, g.GetNode(h, "ignored_fn"))

	cancel()
	<-done
}
