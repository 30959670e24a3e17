package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/standardbeagle/crag/internal/config"
	"github.com/standardbeagle/crag/internal/graph"
	"github.com/standardbeagle/crag/internal/loader"
	"github.com/standardbeagle/crag/internal/version"
)

func main() {
	app := &cli.App{
		Name:                   "crag",
		Usage:                  "Concurrent call-graph explorer for compiler RTL dumps",
		Version:                version.Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path",
				Value:   config.DefaultConfigFile,
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Project root to scan for dump files (overrides config)",
			},
			&cli.StringSliceFlag{
				Name:  "include",
				Usage: "Include dump files matching glob patterns (e.g. --include 'build/**/*.expand')",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Exclude dump files matching glob patterns",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Parallel parser workers (0 = auto)",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Verbose logging",
			},
		},
		Commands: []*cli.Command{
			loadCommand(),
			nodeCommand(),
			edgeCommand("callers", "List the nodes calling or referencing NAME"),
			edgeCommand("callees", "List the nodes NAME calls"),
			edgeCommand("refs", "List the nodes NAME references without calling"),
			filesCommand(),
			labelsCommand(),
			pathsCommand(),
			dotCommand(),
			watchCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfigWithOverrides loads configuration and applies CLI flag
// overrides.
func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	configPath := c.String("config")

	// With an explicit root and the default config path, look for the
	// config next to the root.
	if rootFlag := c.String("root"); rootFlag != "" && configPath == config.DefaultConfigFile {
		configPath = filepath.Join(rootFlag, config.DefaultConfigFile)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
	}

	if includeFlags := c.StringSlice("include"); len(includeFlags) > 0 {
		cfg.Loader.Include = includeFlags
	}
	if excludeFlags := c.StringSlice("exclude"); len(excludeFlags) > 0 {
		cfg.Loader.Exclude = append(cfg.Loader.Exclude, excludeFlags...)
	}
	if rootFlag := c.String("root"); rootFlag != "" {
		absRoot, err := filepath.Abs(rootFlag)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve root path %q: %w", rootFlag, err)
		}
		cfg.Project.Root = absRoot
	}
	if workers := c.Int("workers"); workers > 0 {
		cfg.Loader.Workers = workers
	}
	return cfg, nil
}

func newLogger(c *cli.Context) (*zap.Logger, error) {
	if c.Bool("verbose") {
		return zap.NewDevelopment()
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	return zc.Build()
}

// buildGraph loads the configured dumps into a fresh graph.
func buildGraph(c *cli.Context) (*graph.Graph, *loader.Loader, loader.Stats, error) {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return nil, nil, loader.Stats{}, err
	}
	log, err := newLogger(c)
	if err != nil {
		return nil, nil, loader.Stats{}, err
	}

	g := graph.New()
	l := loader.New(g, cfg, log)

	paths, err := l.Discover()
	if err != nil {
		return nil, nil, loader.Stats{}, err
	}
	stats, err := l.Run(c.Context, paths)
	if err != nil {
		return nil, nil, stats, err
	}
	return g, l, stats, nil
}
